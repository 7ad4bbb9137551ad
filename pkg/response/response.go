package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the unified API response format.
// Notice tells the client to raise a toast of that level ("error" or "info");
// errors without a notice are meant to disable the triggering control quietly.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Notice  string      `json:"notice,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Page wraps one page of a list endpoint.
type Page struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// AppError is an application error with an HTTP status, an error code and an
// optional client notice level.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Notice     string
}

func (e *AppError) Error() string {
	return e.Message
}

// WithNotice returns a copy of e that asks the client to show a notice.
func (e *AppError) WithNotice(level string) *AppError {
	cp := *e
	cp.Notice = level
	return &cp
}

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError   { return newAppError(http.StatusBadRequest, msg) }
func NewUnauthorized(msg string) *AppError { return newAppError(http.StatusUnauthorized, msg) }
func NewForbidden(msg string) *AppError    { return newAppError(http.StatusForbidden, msg) }
func NewNotFound(msg string) *AppError     { return newAppError(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError     { return newAppError(http.StatusConflict, msg) }
func NewGone(msg string) *AppError         { return newAppError(http.StatusGone, msg) }
func NewTooManyRequests(msg string) *AppError {
	return newAppError(http.StatusTooManyRequests, msg)
}
func NewServerError(msg string) *AppError  { return newAppError(http.StatusInternalServerError, msg) }

// NewBadGateway reports a failure of a downstream store or provider.
func NewBadGateway(msg string) *AppError { return newAppError(http.StatusBadGateway, msg) }

// --- Gin response helpers ---

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: 0, Message: "created", Data: data})
}

// Accepted sends a 202 response for work queued in the background.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{Code: 0, Message: "accepted", Data: data})
}

// Paged sends one page of a list.
func Paged(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	Success(c, Page{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// Error sends an error response. If err is an *AppError, its code and status
// are used; otherwise a generic 500 internal server error is returned.
func Error(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Response{
			Code:    appErr.Code,
			Message: appErr.Message,
			Notice:  appErr.Notice,
		})
		return
	}
	c.JSON(http.StatusInternalServerError, Response{Code: 500, Message: err.Error(), Notice: "error"})
}

func BadRequest(c *gin.Context, msg string)   { Error(c, NewBadRequest(msg)) }
func Unauthorized(c *gin.Context, msg string) { Error(c, NewUnauthorized(msg)) }
func Forbidden(c *gin.Context, msg string)    { Error(c, NewForbidden(msg)) }
func NotFound(c *gin.Context, msg string)     { Error(c, NewNotFound(msg)) }
func ServerError(c *gin.Context, msg string)  { Error(c, NewServerError(msg)) }
