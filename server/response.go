package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tgcasino/service"
)

// ErrorDetail describes a failed request
type ErrorDetail struct {
	Timestamp    string `json:"timestamp"`
	Path         string `json:"path"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    string `json:"error_code"`
}

// ErrorResponse is the envelope for failed requests
type ErrorResponse struct {
	StatusCode int         `json:"status_code"`
	IsSuccess  bool        `json:"is_success"`
	Error      ErrorDetail `json:"error"`
}

// SuccessResponse is the envelope for successful requests
type SuccessResponse struct {
	StatusCode int  `json:"status_code"`
	IsSuccess  bool `json:"is_success"`
	Data       any  `json:"data"`
}

// OK sends a 200 response wrapped in the success envelope
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{
		StatusCode: http.StatusOK,
		IsSuccess:  true,
		Data:       data,
	})
}

type errorMapping struct {
	target error
	status int
	code   string
}

// first match wins
var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{service.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{service.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{service.ErrRoundAlreadyActive, http.StatusConflict, "round_already_active"},
	{service.ErrNoActiveRound, http.StatusConflict, "no_active_round"},
	{service.ErrCellAlreadyRevealed, http.StatusConflict, "cell_already_revealed"},
	{service.ErrCannotCashout, http.StatusConflict, "cannot_cashout"},
	{service.ErrDuplicateRequest, http.StatusConflict, "duplicate_request"},
	{service.ErrExternalProvider, http.StatusBadGateway, "external_provider"},
	{service.ErrBankNotFound, http.StatusInternalServerError, "bank_not_found"},
	{service.ErrConfiguration, http.StatusInternalServerError, "configuration"},
}

func classify(err error) (int, string) {
	// a deadline only counts as a provider timeout when the provider call hit it
	if errors.Is(err, service.ErrExternalProvider) && errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "provider_timeout"
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// Error maps err to a status code and sends the error envelope. Server-side
// failures are logged and their message is not exposed.
func Error(c *gin.Context, err error) {
	status, code := classify(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		entry := log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"code":   code,
		}).WithError(err)
		if status == http.StatusInternalServerError {
			entry.Error("Request failed")
			message = http.StatusText(status)
		} else {
			entry.Warn("Provider request failed")
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		StatusCode: status,
		IsSuccess:  false,
		Error: ErrorDetail{
			Timestamp:    time.Now().Format(time.RFC3339),
			Path:         c.Request.URL.Path,
			ErrorMessage: message,
			ErrorCode:    code,
		},
	})
}
