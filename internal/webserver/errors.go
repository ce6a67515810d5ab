package webserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/funkostack/funkostore/internal/service"
)

// Error envelope taxonomy.
const (
	typeValidation   = "ValidationError"
	typeNotFound     = "NotFoundError"
	typeConflict     = "ConflictError"
	typeUnauthorized = "UnauthorizedError"
	typeInternal     = "InternalError"
)

// ErrorResponse is the REST error envelope.
type ErrorResponse struct {
	ErrorID   string   `json:"errorId"`
	Message   string   `json:"message"`
	ErrorType string   `json:"errorType"`
	Timestamp string   `json:"timestamp"`
	Path      string   `json:"path"`
	Method    string   `json:"method"`
	Errors    []string `json:"errors"`
}

// httpErrorHandler is the single outermost translation point: expected
// service failures map to their status and type, everything else becomes a
// correlated InternalError without leaking internal messages.
func (s *WebServer) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	errorID := s.errNode.Generate().String()
	status := http.StatusInternalServerError
	errorType := typeInternal
	message := "internal server error"

	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			errorType = typeUnauthorized
		case http.StatusNotFound, http.StatusMethodNotAllowed:
			errorType = typeNotFound
		default:
			if status < 500 {
				errorType = typeValidation
			}
		}
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(status)
		}
	} else {
		switch service.KindOf(err) {
		case service.KindNotFound:
			status, errorType, message = http.StatusNotFound, typeNotFound, err.Error()
		case service.KindValidation:
			status, errorType, message = http.StatusBadRequest, typeValidation, err.Error()
		case service.KindStorage:
			// file I/O failures surface as a client-visible 400
			status, errorType, message = http.StatusBadRequest, typeValidation, err.Error()
		case service.KindConflict:
			status, errorType, message = http.StatusConflict, typeConflict, err.Error()
		case service.KindUnauthorized:
			status, errorType, message = http.StatusUnauthorized, typeUnauthorized, err.Error()
		default:
			zap.L().Error("unhandled request error",
				zap.String("error_id", errorID),
				zap.String("path", c.Request().URL.Path),
				zap.String("method", c.Request().Method),
				zap.Error(err))
		}
	}

	details := []string{}
	var se *service.Error
	if errors.As(err, &se) && len(se.Details) > 0 {
		details = se.Details
	}

	resp := ErrorResponse{
		ErrorID:   errorID,
		Message:   message,
		ErrorType: errorType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      c.Request().URL.Path,
		Method:    c.Request().Method,
		Errors:    details,
	}
	if err := c.JSON(status, resp); err != nil {
		zap.L().Error("failed to write error response", zap.Error(err))
	}
}
