package gateway

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"receivables-conciliation-backend/internal/conciliation"
)

var encodings = map[string]encoding.Encoding{
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso8859-1":    charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
}

// ToUTF8 wraps file so its content is read as UTF-8. Bank and ERP exports
// are often Latin-1 or Windows-1252; "" and "utf-8" leave file untouched.
func ToUTF8(file conciliation.File, enc string) (conciliation.File, error) {
	name := strings.ToLower(strings.TrimSpace(enc))
	switch name {
	case "", "utf-8", "utf8":
		return file, nil
	}

	e, ok := encodings[name]
	if !ok {
		return file, fmt.Errorf("unsupported file encoding %q", enc)
	}
	file.Content = transform.NewReader(file.Content, e.NewDecoder())
	return file, nil
}
