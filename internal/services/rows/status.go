package rows

import (
	"fmt"
	"strings"
)

// Status classifies a view row. The set is closed; every switch over it
// must handle all three values.
type Status uint8

const (
	StatusMatched Status = iota + 1
	StatusPendingReceivable
	StatusUnlinkedPayment
)

var statusNames = map[Status]string{
	StatusMatched:           "matched",
	StatusPendingReceivable: "pending_receivable",
	StatusUnlinkedPayment:   "unlinked_payment",
}

// aliases accepted on input, including the tags used by the web front end
var statusAliases = map[string]Status{
	"matched":            StatusMatched,
	"conciliado":         StatusMatched,
	"pending_receivable": StatusPendingReceivable,
	"pending":            StatusPendingReceivable,
	"pendente":           StatusPendingReceivable,
	"unlinked_payment":   StatusUnlinkedPayment,
	"unlinked":           StatusUnlinkedPayment,
	"sem_recebivel":      StatusUnlinkedPayment,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid row status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return 0, fmt.Errorf("unknown row status %q", s)
}

// StatusFilter selects either every row or rows of a single status.
type StatusFilter struct {
	status Status
}

// All keeps every row.
var All = StatusFilter{}

func Only(s Status) StatusFilter {
	return StatusFilter{status: s}
}

func (f StatusFilter) IsAll() bool {
	return f.status == 0
}

func (f StatusFilter) Status() (Status, bool) {
	return f.status, f.status != 0
}

func (f StatusFilter) String() string {
	if f.IsAll() {
		return "all"
	}
	return f.status.String()
}

// ParseFilter accepts "", "all" or any status name.
func ParseFilter(s string) (StatusFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return All, nil
	}
	st, err := ParseStatus(s)
	if err != nil {
		return All, err
	}
	return Only(st), nil
}
