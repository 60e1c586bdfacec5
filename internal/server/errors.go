package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	electiondomain "github.com/smallbiznis/escrutinio/internal/election/domain"
	geographydomain "github.com/smallbiznis/escrutinio/internal/geography/domain"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	votereportdomain "github.com/smallbiznis/escrutinio/internal/votereport/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Code    string            `json:"code,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := sentinelCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
			Code:    sentinelCode(err),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
			Code:    sentinelCode(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code logged with a request.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if payload.Code != "" {
		return payload.Type, payload.Code
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, ""
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, mesadomain.ErrInvalidID),
		errors.Is(err, mesadomain.ErrInvalidNumber),
		errors.Is(err, mesadomain.ErrInvalidElectors),
		errors.Is(err, electiondomain.ErrInvalidID),
		errors.Is(err, electiondomain.ErrInvalidName),
		errors.Is(err, electiondomain.ErrInvalidSlug),
		errors.Is(err, votereportdomain.ErrInvalidID),
		errors.Is(err, votereportdomain.ErrInvalidVotes),
		errors.Is(err, votereportdomain.ErrEmptyBatch),
		errors.Is(err, geographydomain.ErrInvalidID),
		errors.Is(err, geographydomain.ErrInvalidName),
		errors.Is(err, geographydomain.ErrInvalidNumber),
		errors.Is(err, geographydomain.ErrInvalidPoint):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, mesadomain.ErrNotFound),
		errors.Is(err, electiondomain.ErrNotFound),
		errors.Is(err, electiondomain.ErrOptionNotFound),
		errors.Is(err, electiondomain.ErrPartyNotFound),
		errors.Is(err, electiondomain.ErrNoCurrentElection),
		errors.Is(err, geographydomain.ErrSectionNotFound),
		errors.Is(err, geographydomain.ErrCircuitNotFound),
		errors.Is(err, geographydomain.ErrVotingPlaceNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, mesadomain.ErrMesaNotInElection),
		errors.Is(err, mesadomain.ErrElectionInactive),
		errors.Is(err, mesadomain.ErrNothingToConfirm),
		errors.Is(err, votereportdomain.ErrMesaNotInElection),
		errors.Is(err, votereportdomain.ErrOptionNotInElection),
		errors.Is(err, geographydomain.ErrMesaWithoutGeography):
		return true
	default:
		return false
	}
}

// sentinelCode is the snake_case text of the innermost error.
func sentinelCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_batch":
		return "at least one vote report is required"
	default:
		return "invalid value"
	}
}
