package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrCodeGateway       ErrorCode = "GATEWAY_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeNotConfigured:
		return http.StatusServiceUnavailable
	case ErrCodeGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

func IsConflict(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && (appErr.Code == ErrCodeConflict || appErr.Code == ErrCodeInvalidState)
}

var (
	ErrProjectNotFound     = New(ErrCodeNotFound, "проект не найден")
	ErrStageNotFound       = New(ErrCodeNotFound, "этап оплаты не найден")
	ErrNegotiationNotFound = New(ErrCodeNotFound, "переговоры не найдены")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials  = New(ErrCodeUnauthorized, "неверные учетные данные")

	// ErrInvalidStageState возвращается при операции над этапом в
	// неподходящем статусе (например, выпуск ссылки для этапа не в available).
	ErrInvalidStageState = New(ErrCodeInvalidState, "этап оплаты не доступен для этой операции")

	// ErrNegotiationResolved возвращается при повторном ответе на уже
	// завершённые переговоры: цена проекта не должна мутироваться дважды.
	ErrNegotiationResolved = New(ErrCodeInvalidState, "переговоры уже завершены")

	// ErrNegotiationPending возвращается при попытке открыть второе
	// параллельное предложение по тому же проекту.
	ErrNegotiationPending = New(ErrCodeConflict, "по проекту уже есть открытое предложение")
)
