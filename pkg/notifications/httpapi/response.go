package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Envelope is the body of every JSON response.
type Envelope[T any] struct {
	Data  T            `json:"data"`
	Meta  *Meta        `json:"meta,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// Meta accompanies list responses. UnreadCount covers every notification of
// the caller; Total counts the items in data after filtering.
type Meta struct {
	UnreadCount int `json:"unread_count"`
	Total       int `json:"total"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Item is a notification as rendered by the API.
type Item struct {
	notifications.Notification
	Tone notifications.Tone `json:"tone"`
	Age  string             `json:"age"`
}

// MarkAllResult is the data of PATCH /notifications/read.
type MarkAllResult struct {
	Updated int `json:"updated"`
}

// CreateRequest is the body of POST /internal/notifications.
type CreateRequest struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error codes carried in ErrorDetail.Code.
const (
	CodeNotFound      = "not_found"
	CodeForbidden     = "forbidden"
	CodeInvalidType   = "invalid_type"
	CodeInvalidFilter = "invalid_filter"
	CodeInvalidUserID = "invalid_user_id"
	CodeDuplicateID   = "duplicate_id"
	CodeUnauthorized  = "unauthorized"
	CodeRateLimited   = "rate_limited"
	CodeBadRequest    = "bad_request"
	CodeUnavailable   = "stream_unavailable"
	CodeInternal      = "internal_error"
)

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{notifications.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{notifications.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{notifications.ErrInvalidType, http.StatusUnprocessableEntity, CodeInvalidType},
	{notifications.ErrInvalidFilter, http.StatusUnprocessableEntity, CodeInvalidFilter},
	{notifications.ErrInvalidUserID, http.StatusUnprocessableEntity, CodeInvalidUserID},
	{notifications.ErrDuplicateID, http.StatusConflict, CodeDuplicateID},
}

// StatusFor maps err to its HTTP status and error code.
// Anything outside the domain errors is a 500.
func StatusFor(err error) (int, string) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.status, d.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

// ErrorForCode returns the domain error behind code, or nil for codes that
// do not correspond to one.
func ErrorForCode(code string) error {
	for _, d := range domainErrors {
		if d.code == code {
			return d.err
		}
	}
	return nil
}

func writeJSON[T any](w http.ResponseWriter, status int, body Envelope[T]) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error ErrorDetail `json:"error"`
	}{ErrorDetail{Code: code, Message: message}})
}
