package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/database/types"
	"github.com/gaborage/go-tiledmap/httpclient"
	"github.com/gaborage/go-tiledmap/tile"
	"github.com/gaborage/go-tiledmap/tilequery"
	"github.com/gaborage/go-tiledmap/windshaft"
)

// Error codes sent in the response envelope.
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInvalidTile         = "INVALID_TILE"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeRendererError       = "RENDERER_ERROR"
	CodeRendererUnavailable = "RENDERER_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failure.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// classify maps domain errors onto an HTTP status and error code.
func classify(err error) (status int, code, message string) {
	var (
		he   *echo.HTTPError
		rerr *windshaft.RendererError
	)
	switch {
	case errors.As(err, &he):
		return he.Code, codeForStatus(he.Code), httpErrorMessage(he)
	case errors.Is(err, tilequery.ErrMissingResource),
		errors.Is(err, tilequery.ErrUnknownStyle),
		errors.Is(err, types.ErrDisallowedCharacters):
		return http.StatusBadRequest, CodeInvalidRequest, err.Error()
	case errors.Is(err, tile.ErrInvalidCoord), errors.Is(err, tile.ErrInvalidPath):
		return http.StatusBadRequest, CodeInvalidTile, err.Error()
	case config.IsNotConfigured(err):
		return http.StatusServiceUnavailable, CodeNotConfigured, err.Error()
	case errors.As(err, &rerr):
		return http.StatusBadGateway, CodeRendererError, rerr.Message
	case httpclient.IsErrorType(err, httpclient.NetworkError):
		return http.StatusBadGateway, CodeRendererUnavailable, "Renderer unavailable"
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound, status == http.StatusMethodNotAllowed:
		return CodeNotFound
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= http.StatusInternalServerError:
		return CodeInternal
	default:
		return CodeInvalidRequest
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	default:
		return fmt.Sprint(m)
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.WithContext(c.Request().Context()).Error().
			Err(err).
			Str("path", c.Request().URL.Path).
			Int("status", status).
			Msg("Request failed")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		Status:    status,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}})
}
