package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotAMember        = "NOT_A_MEMBER"
	CodeNotFound          = "NOT_FOUND"
	CodeRoomDeleted       = "ROOM_DELETED"
	CodeRoomClosed        = "ROOM_CLOSED"
	CodeTransientConflict = "TRANSIENT_CONFLICT"
	CodeTooManyRequests   = "TOO_MANY_REQUESTS"
	CodeDeliveryFailure   = "DELIVERY_FAILURE"
	CodeInternal          = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func InvalidRequest(message string, err error) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest, err)
}

func Unauthorized(message string, err error) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

func Forbidden(message string, err error) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden, err)
}

func NotAMember(roomID string) *AppError {
	return New(CodeNotAMember, fmt.Sprintf("not a member of room %s", roomID), http.StatusForbidden, nil)
}

func NotFound(resource string, err error) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

func RoomDeleted(roomID string) *AppError {
	return New(CodeRoomDeleted, fmt.Sprintf("room %s has been deleted", roomID), http.StatusNotFound, nil)
}

func RoomClosed(roomID string) *AppError {
	return New(CodeRoomClosed, fmt.Sprintf("room %s is closed", roomID), http.StatusConflict, nil)
}

func TransientConflict(message string, err error) *AppError {
	return New(CodeTransientConflict, message, http.StatusConflict, err)
}

func TooManyRequests(message string) *AppError {
	return New(CodeTooManyRequests, message, http.StatusTooManyRequests, nil)
}

// DeliveryFailure is logged by the dispatcher and never returned to a writer.
func DeliveryFailure(channel string, err error) *AppError {
	return New(CodeDeliveryFailure, fmt.Sprintf("%s delivery failed", channel), http.StatusBadGateway, err)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError, err)
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
