package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wellmom/wellmom-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error writes err as a JSON error response, mapping application error
// codes onto HTTP statuses. Unknown errors become a generic 500 so
// internals never leak to clients.
func Error(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
		return
	}

	status := httpStatus(appErr.Code)
	if appErr.Code == apperrors.ErrRateLimited && appErr.RetryAfterSeconds > 0 {
		c.Header("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
	}
	c.JSON(status, NewErrorResponse(appErr.Message))
}

func httpStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrPatientNotAssignedToClinic,
		apperrors.ErrNurseClinicMismatch:
		return http.StatusUnprocessableEntity
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrClinicUnavailable,
		apperrors.ErrNurseUnavailable,
		apperrors.ErrNoClinicAvailable,
		apperrors.ErrCapacityRaceLost:
		return http.StatusConflict
	case apperrors.ErrRateLimited,
		apperrors.ErrUserQuotaExceeded,
		apperrors.ErrGlobalQuotaExceeded:
		return http.StatusTooManyRequests
	case apperrors.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
