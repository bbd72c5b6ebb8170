package api

import (
	"errors"
	"net/http"

	"github.com/framelab/frame-extraction-service/internal/domain/entity"
)

// statusFor translates a pipeline error into an HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch entity.KindOf(err) {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindSizeLimit:
		return http.StatusRequestEntityTooLarge
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindDecode:
		return http.StatusUnprocessableEntity
	case entity.KindConflict:
		return http.StatusConflict
	case entity.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
