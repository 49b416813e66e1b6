package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/instagate/internal/apperrors"
	"github.com/tyemirov/instagate/internal/graphapi"
	"go.uber.org/zap"
)

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody renders err as the single JSON error object returned to callers.
// fallbackMessage is used when err carries no caller-facing message.
func ErrorBody(err error, fallbackMessage string) gin.H {
	var failure *apperrors.Error
	if errors.As(err, &failure) {
		body := gin.H{"error": failure.Message}
		if failure.Details != nil {
			body["details"] = failure.Details
		}
		return body
	}
	var upstream *graphapi.UpstreamError
	if errors.As(err, &upstream) {
		return gin.H{"error": fallbackMessage, "details": upstream.Envelope()}
	}
	if err != nil {
		return gin.H{"error": fallbackMessage, "details": err.Error()}
	}
	return gin.H{"error": fallbackMessage}
}

// RespondError logs err and aborts the request with its JSON error body.
func RespondError(contextGin *gin.Context, logger *zap.Logger, err error, fallbackMessage string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	status := StatusFor(err)
	fields := []zap.Field{
		zap.String("code", "http.request_failed"),
		zap.String("path", contextGin.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		logger.Error(fallbackMessage, fields...)
	} else {
		logger.Warn(fallbackMessage, fields...)
	}
	contextGin.AbortWithStatusJSON(status, ErrorBody(err, fallbackMessage))
}
