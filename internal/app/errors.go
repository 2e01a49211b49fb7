package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/andrearcaina/uofthacks-2026/internal/auth"
	"github.com/andrearcaina/uofthacks-2026/internal/session"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func mapError(err error) (status int, code, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message
	}
	if errors.Is(err, session.ErrUnauthenticated) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "No session found"
	}
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found"
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}
