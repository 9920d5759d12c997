package client

import (
	"encoding/json"
	"fmt"
)

// APIError is a failed call to the verification API. StatusCode is 0 when
// the server answered with a body that could not be decoded.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// HTTPStatus returns the response status, 0 if there was none.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// ServerDetail returns the human-readable message sent by the server.
func (e *APIError) ServerDetail() string {
	return e.Detail
}

type errorBody struct {
	Detail string `json:"detail"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

// parseDetail reads the detail of an error body, falling back to
// error.message. Bodies that are not JSON yield no detail.
func parseDetail(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error.Message
}
