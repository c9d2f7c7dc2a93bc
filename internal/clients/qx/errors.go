package qx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-OK response from the Quantum Experience API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("qx API returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("qx API returned status %d", e.StatusCode)
}

// AuthError indicates the client could not obtain an access token.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "qx authentication failed: " + e.Reason
}

// errorBody is the error envelope the API wraps failures in.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// newAPIError builds an APIError from a response, pulling the server's
// message out of the body when one is present.
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
