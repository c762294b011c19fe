// Package httputil holds the JSON response and error-envelope helpers shared
// by every handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "kycgate/pkg/domain-errors"
)

// maxJSONBody bounds JSON request bodies. Multipart uploads set their own
// limit.
const maxJSONBody = 1 << 20

// ErrorResponse is the error envelope returned for every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Details    string `json:"details,omitempty"`
}

// Validatable is implemented by request bodies that check and normalize
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// ErrorOption tweaks how WriteError renders an error.
type ErrorOption func(*errorOptions)

type errorOptions struct {
	details bool
}

// WithDetails exposes the underlying cause of internal errors. Only enabled
// when the service runs with the insecure default secret.
func WithDetails(enabled bool) ErrorOption {
	return func(o *errorOptions) {
		o.details = enabled
	}
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest, dErrors.CodeConflict:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case dErrors.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case dErrors.CodeInvalidState:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as an error envelope. Errors without a code are
// reported as internal errors with a generic message.
func WriteError(w http.ResponseWriter, err error, opts ...ErrorOption) {
	var o errorOptions
	for _, opt := range opts {
		opt(&o)
	}

	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	message := dErrors.MessageOf(err)
	if message == "" || code == dErrors.CodeInternal {
		message = "internal server error"
	}

	resp := ErrorResponse{
		Error:      string(code),
		Message:    message,
		StatusCode: status,
	}
	if o.details && status >= http.StatusInternalServerError && err != nil {
		resp.Details = err.Error()
	}
	WriteJSON(w, status, resp)
}

// DecodeAndPrepare decodes a JSON body into T and runs its Validate method.
// On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		if errors.Is(err, io.EOF) {
			WriteError(w, dErrors.New(dErrors.CodeValidation, "request body is required"))
			return nil, false
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if err := PT(&req).Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
