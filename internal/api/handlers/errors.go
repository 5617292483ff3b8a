package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/messaging"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/numbering"
	"example.com/backstage/invoicing/internal/repositories"
	"example.com/backstage/invoicing/internal/search"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error represents an API error
type Error struct {
	Message    string
	StatusCode int
	Code       string
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Message
}

// Common API errors
var (
	ErrInvalidRequest     = &Error{Message: "Invalid request", StatusCode: http.StatusBadRequest, Code: "INVALID_REQUEST"}
	ErrNotFound           = &Error{Message: "Resource not found", StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
	ErrInternalServer     = &Error{Message: "Internal server error", StatusCode: http.StatusInternalServerError, Code: "INTERNAL_ERROR"}
	ErrUnauthorized       = &Error{Message: "Unauthorized", StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED"}
	ErrConflict           = &Error{Message: "Conflicting state", StatusCode: http.StatusConflict, Code: "CONFLICT"}
	ErrServiceUnavailable = &Error{Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable, Code: "SERVICE_UNAVAILABLE"}
)

func newError(base *Error, message string) *Error {
	return &Error{Message: message, StatusCode: base.StatusCode, Code: base.Code}
}

// classify maps domain and repository errors onto API errors
func classify(err error) *Error {
	var apiError *Error
	if stderrors.As(err, &apiError) {
		return apiError
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		return &Error{Message: verrs.Error(), StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
	}

	switch {
	case stderrors.Is(err, repositories.ErrNotFound):
		return newError(ErrNotFound, err.Error())
	case stderrors.Is(err, repositories.ErrDuplicateKey),
		stderrors.Is(err, repositories.ErrConflict),
		stderrors.Is(err, services.ErrQuoteNotConvertible):
		return newError(ErrConflict, err.Error())
	case stderrors.Is(err, dto.ErrInvalidRequest),
		stderrors.Is(err, models.ErrInvalidLine),
		stderrors.Is(err, models.ErrInvalidInstallments),
		stderrors.Is(err, models.ErrInvalidSchedule),
		stderrors.Is(err, models.ErrInvalidDocument),
		stderrors.Is(err, numbering.ErrUnknownDocumentType),
		stderrors.Is(err, messaging.ErrUnknownCommand):
		return &Error{Message: err.Error(), StatusCode: http.StatusBadRequest, Code: "VALIDATION_ERROR"}
	case stderrors.Is(err, services.ErrInvalidCredentials):
		return newError(ErrUnauthorized, err.Error())
	case stderrors.Is(err, search.ErrSearchDisabled):
		return newError(ErrServiceUnavailable, err.Error())
	}
	return nil
}

// writeError writes an error response and attaches err to the gin context
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	if apiError := classify(err); apiError != nil {
		c.JSON(apiError.StatusCode, ErrorResponse{Message: apiError.Message, Code: apiError.Code})
		return
	}

	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Message: ErrInternalServer.Message,
		Code:    ErrInternalServer.Code,
	})
}

// bindJSON decodes the body into req and runs its Validate method
func bindJSON(c *gin.Context, req interface{ Validate() error }) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, newError(ErrInvalidRequest, err.Error()))
		return false
	}
	if err := req.Validate(); err != nil {
		writeError(c, err)
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		writeError(c, newError(ErrInvalidRequest, "invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
