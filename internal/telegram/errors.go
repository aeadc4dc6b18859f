package telegram

import (
	"encoding/json"
	"fmt"
)

// APIError is the uniform failure kind for every remote API call.
// Code is zero when Telegram did not return a numeric error code.
type APIError struct {
	Method      string
	Code        int
	Description string
	Raw         json.RawMessage
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("telegram api: %s: %s (code %d)", e.Method, e.Description, e.Code)
	}
	if e.Method != "" {
		return fmt.Sprintf("telegram api: %s: %s", e.Method, e.Description)
	}
	return fmt.Sprintf("telegram api: %s", e.Description)
}
