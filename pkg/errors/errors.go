package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"

	CodeLeadTimeViolation = "LEAD_TIME_VIOLATION"
	CodeRangeConflict     = "RANGE_CONFLICT"
	CodeAuctionEnded      = "AUCTION_ENDED"
	CodeBidTooLow         = "BID_TOO_LOW"
	CodeAlreadyFinalized  = "ALREADY_FINALIZED"
	CodeLockContention    = "LOCK_CONTENTION"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *AppError) Retryable() bool {
	return e.Code == CodeLockContention || e.Code == CodeTimeout || e.Code == CodeUnavailable
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func LeadTimeViolation(leadTimeDays int, earliestStart string) *AppError {
	return &AppError{
		Code:       CodeLeadTimeViolation,
		Message:    fmt.Sprintf("auction must open at least %d day(s) before check-in", leadTimeDays),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"lead_time_days": leadTimeDays,
			"earliest_start": earliestStart,
		},
	}
}

func RangeConflict(message string) *AppError {
	return &AppError{
		Code:       CodeRangeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func AuctionEnded(uid string) *AppError {
	return &AppError{
		Code:       CodeAuctionEnded,
		Message:    "auction is no longer accepting bids",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"auction_uid": uid,
		},
	}
}

func BidTooLow(minimumBid, currentPrice, bidIncrement int64) *AppError {
	return &AppError{
		Code:       CodeBidTooLow,
		Message:    fmt.Sprintf("bid must be at least %d", minimumBid),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"minimum_bid":   minimumBid,
			"current_price": currentPrice,
			"bid_increment": bidIncrement,
		},
	}
}

func AlreadyFinalized(resource, status string) *AppError {
	return &AppError{
		Code:       CodeAlreadyFinalized,
		Message:    fmt.Sprintf("%s is already %s", resource, status),
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"resource": resource,
			"status":   status,
		},
	}
}

func LockContention(err error) *AppError {
	return &AppError{
		Code:       CodeLockContention,
		Message:    "resource is busy, retry shortly",
		HTTPStatus: http.StatusLocked,
		Details: map[string]any{
			"retryable": true,
		},
		Err: err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}

func IsRetryable(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Retryable()
}
