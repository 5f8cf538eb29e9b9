package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/logging"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindInvalidSignature:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindGatewayUnreachable, apperr.KindGatewayRejected:
		return http.StatusBadGateway
	case apperr.KindGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a JSON error response. Internal failures are logged in
// full and returned without detail.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = &apperr.Error{Kind: apperr.KindInternal, Code: "internal_error", Err: err}
	}
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError && e.Kind != apperr.KindGatewayTimeout {
		log.Error("request failed",
			slog.String("request_id", logging.RequestID(c)),
			slog.String("path", c.FullPath()),
			slog.Any("error", err))
		if e.Kind == apperr.KindStorage || e.Kind == apperr.KindInternal {
			c.AbortWithStatusJSON(status, gin.H{"error": "internal_error", "message": "something went wrong, please try again"})
			return
		}
	}
	c.AbortWithStatusJSON(status, gin.H{"error": e.Code, "message": e.Message})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": message})
}

// uintParam parses a positive numeric path parameter, answering 400 otherwise.
func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return uint(n), true
}
