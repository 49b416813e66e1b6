package graphapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// InvalidTokenCode is the Graph API error code for an invalid or expired access token.
const InvalidTokenCode = 190

// UpstreamError describes a failed Graph API call.
// Status is zero when no HTTP response was received.
type UpstreamError struct {
	Status  int
	Code    int
	Subcode int
	Type    string
	Message string
	TraceID string
	Err     error
}

func (upstream *UpstreamError) Error() string {
	if upstream.Status == 0 {
		return fmt.Sprintf("graph_api.transport: %s", upstream.Message)
	}
	if upstream.Code != 0 {
		return fmt.Sprintf("graph_api.status_%d.code_%d: %s", upstream.Status, upstream.Code, upstream.Message)
	}
	return fmt.Sprintf("graph_api.status_%d: %s", upstream.Status, upstream.Message)
}

func (upstream *UpstreamError) Unwrap() error {
	return upstream.Err
}

// IsInvalidToken reports whether the upstream rejected the access token.
func (upstream *UpstreamError) IsInvalidToken() bool {
	return upstream.Code == InvalidTokenCode
}

// Envelope returns the upstream error object for passthrough to callers.
func (upstream *UpstreamError) Envelope() ErrorEnvelope {
	return ErrorEnvelope{
		Message: upstream.Message,
		Type:    upstream.Type,
		Code:    upstream.Code,
		Subcode: upstream.Subcode,
		TraceID: upstream.TraceID,
	}
}

// ErrorEnvelope mirrors the Graph API {"error": {...}} object.
type ErrorEnvelope struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    int    `json:"code,omitempty"`
	Subcode int    `json:"error_subcode,omitempty"`
	TraceID string `json:"fbtrace_id,omitempty"`
}

type errorResponse struct {
	Error *ErrorEnvelope `json:"error"`
}

func newStatusError(status int, body []byte) *UpstreamError {
	upstream := &UpstreamError{
		Status:  status,
		Message: http.StatusText(status),
	}
	var decoded errorResponse
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != nil {
		if decoded.Error.Message != "" {
			upstream.Message = decoded.Error.Message
		}
		upstream.Type = decoded.Error.Type
		upstream.Code = decoded.Error.Code
		upstream.Subcode = decoded.Error.Subcode
		upstream.TraceID = decoded.Error.TraceID
	}
	return upstream
}

func newTransportError(err error) *UpstreamError {
	return &UpstreamError{Message: err.Error(), Err: err}
}

// NewMalformedResponseError reports a 2xx response that lacks required content.
func NewMalformedResponseError(status int, message string, cause error) *UpstreamError {
	return &UpstreamError{Status: status, Message: message, Err: cause}
}
