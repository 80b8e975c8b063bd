package conciliation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidPayload = errors.New("invalid conciliation payload")

// Fallback messages shown when a gateway failure carries no readable detail.
const (
	MsgUploadFailed       = "could not process the file, check the format and try again"
	MsgConciliateFailed   = "could not run the conciliation, try again"
	MsgExportFailed       = "could not export the report"
	MsgAuthFailed         = "could not authenticate, try again"
	MsgServiceUnreachable = "conciliation service unreachable"
)

// GatewayError is a failed call to the remote service. Message is the
// human-readable text extracted from the error payload, if any.
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// UserMessage derives the text shown to the operator for err. Structured
// gateway messages win; anything else falls back to the given default.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && strings.TrimSpace(gwErr.Message) != "" {
		return gwErr.Message
	}
	return fallback
}

// ExtractErrorMessage reads an error body in any of the shapes the service
// produces: {"detail": "..."}, {"detail": [{"msg": "..."}]} or
// {"message": "..."}. It returns "" when none applies.
func ExtractErrorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail != "" {
			return detail
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(payload.Detail, &items); err == nil {
			for _, it := range items {
				if it.Msg != "" {
					return it.Msg
				}
			}
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
