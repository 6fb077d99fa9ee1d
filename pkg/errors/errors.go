package errors

import (
	stderrors "errors"
	"fmt"
)

const (
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidReq          = "INVALID_REQUEST"
	ErrCodeProviderTransient   = "PROVIDER_TRANSIENT"
	ErrCodeProviderRateLimited = "PROVIDER_RATE_LIMITED"
	ErrCodeProviderAuth        = "PROVIDER_AUTH"
	ErrCodeSynthesisShape      = "SYNTHESIS_SHAPE"
	ErrCodeSynthesisUpstream   = "SYNTHESIS_UPSTREAM"
	ErrCodeImageGen            = "IMAGE_GEN_ERROR"
	ErrCodeAssembly            = "ASSEMBLY_ERROR"
	ErrCodeStorage             = "STORAGE_ERROR"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeNotFound            = "NOT_FOUND"
)

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Newf(code, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether any AppError in the chain carries the given code.
func Is(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// CodeOf returns the code of the outermost AppError in the chain, or
// ErrCodeInternal if err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
