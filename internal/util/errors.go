package util

import (
	"context"
	"errors"
	"net/http"

	"numainda/pkg/domain"
)

// HTTPStatus maps domain error kinds to response codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage hides internal failure detail from 5xx responses.
func PublicMessage(err error) string {
	status := HTTPStatus(err)
	if status < http.StatusInternalServerError {
		return err.Error()
	}
	switch status {
	case http.StatusBadGateway:
		return "model service unavailable"
	case http.StatusServiceUnavailable:
		return "storage unavailable"
	case http.StatusGatewayTimeout:
		return "request timed out"
	default:
		return "internal error"
	}
}
