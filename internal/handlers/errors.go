package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/logger"
	"github.com/mentorhub/backend/pkg/response"
)

// fail maps service and feedback errors onto API errors. Validation failures
// carry no notice so the client just disables the control; persistence and
// stale-reference failures ask for a toast.
func fail(c *gin.Context, err error) {
	response.Error(c, toAppError(err))
}

func toAppError(err error) *response.AppError {
	var appErr *response.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case feedback.IsValidation(err):
		return response.NewBadRequest(err.Error())
	case feedback.IsStaleReference(err):
		return response.NewNotFound(err.Error()).WithNotice("info")
	case feedback.IsPersistence(err):
		return response.NewBadGateway(err.Error()).WithNotice("error")
	case errors.Is(err, feedback.ErrClosed), errors.Is(err, services.ErrSessionNotFound):
		return response.NewGone(err.Error())
	case errors.Is(err, services.ErrDocumentAccess),
		errors.Is(err, services.ErrSessionRole),
		errors.Is(err, services.ErrReviewDenied),
		errors.Is(err, services.ErrSelfModify),
		errors.Is(err, services.ErrPasswordManaged):
		return response.NewForbidden(err.Error())
	case errors.Is(err, services.ErrDocumentNotFound),
		errors.Is(err, services.ErrVersionNotFound),
		errors.Is(err, services.ErrFeedbackNotFound),
		errors.Is(err, services.ErrRunNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrLLMConfigNotFound),
		errors.Is(err, services.ErrDigestNotFound):
		return response.NewNotFound(err.Error())
	case errors.Is(err, services.ErrRunInFlight), errors.Is(err, services.ErrUserExists):
		return response.NewConflict(err.Error()).WithNotice("info")
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserDisabled),
		errors.Is(err, services.ErrInvalidRefreshToken):
		return response.NewUnauthorized(err.Error())
	case errors.Is(err, services.ErrInvalidAuthType):
		return response.NewBadRequest(err.Error())
	case errors.Is(err, services.ErrEmailDisabled), errors.Is(err, services.ErrLDAPDisabled):
		return response.NewBadRequest(err.Error()).WithNotice("info")
	}
	logger.Errorf("[API] Unhandled error: %v", err)
	return response.NewServerError("internal error").WithNotice("error")
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
