package types

// Error types used on structured error responses. Chat and legacy completion
// failures never use these; they render in-band via NewErrorChatCompletion.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeNotSupported   = "not_supported_error"
	ErrorTypeServer         = "server_error"
)

// Error is the structured error detail for endpoints that have no completion
// body to embed failures in (embeddings, moderations). Param and Code are
// always serialized, as null when unset, matching what strict clients expect.
type Error struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

// Error implements the error interface for Error, returning the error message.
func (e *Error) Error() string {
	return e.Message
}

// ErrorResponse wraps Error in the envelope clients expect: {"error": {...}}.
// Model echoes the request's model id so callers can correlate failures.
type ErrorResponse struct {
	Err   Error  `json:"error"`
	Model string `json:"model"`
}

// Error implements the error interface for ErrorResponse, returning the
// underlying error message. This allows ErrorResponse to be used directly in
// error returns.
func (e *ErrorResponse) Error() string {
	return e.Err.Message
}

// NewErrorResponse builds a structured error envelope of the given type.
func NewErrorResponse(errType, message, model string) *ErrorResponse {
	return &ErrorResponse{
		Err: Error{
			Message: message,
			Type:    errType,
		},
		Model: modelOrUnknown(model),
	}
}
