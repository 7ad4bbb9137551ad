package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mentorhub/backend/internal/middleware"
	"github.com/mentorhub/backend/internal/services"
	"github.com/mentorhub/backend/pkg/response"
)

type DigestHandler struct {
	digests  *services.DigestService
	holidays *services.HolidayService
}

func NewDigestHandler(digests *services.DigestService, holidays *services.HolidayService) *DigestHandler {
	return &DigestHandler{digests: digests, holidays: holidays}
}

// Mine lists the caller's daily digests
// GET /api/digests
func (h *DigestHandler) Mine(c *gin.Context) {
	page, pageSize := pageParams(c)
	items, total, err := h.digests.List(c.Request.Context(), middleware.GetUserID(c), page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, items, total, page, pageSize)
}

// List lists every user's digests, or one user's with ?user_id=
// GET /api/admin/digests
func (h *DigestHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	var userID uint
	if c.Query("user_id") != "" {
		id, ok := queryID(c, "user_id")
		if !ok {
			return
		}
		userID = id
	}
	items, total, err := h.digests.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	response.Paged(c, items, total, page, pageSize)
}

// Resend
// POST /api/admin/digests/:id/resend
func (h *DigestHandler) Resend(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := h.digests.Resend(c.Request.Context(), id)
	if err != nil && d == nil {
		fail(c, err)
		return
	}
	if err != nil {
		response.Error(c, response.NewBadGateway("digest mail failed: "+err.Error()).WithNotice("error"))
		return
	}
	response.Success(c, d)
}

// Run generates and sends today's digests now
// POST /api/admin/digests/run
func (h *DigestHandler) Run(c *gin.Context) {
	sent, err := h.digests.Run(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"sent": sent})
}

// Countries lists the holiday calendars digests can follow
// GET /api/admin/holidays/countries
func (h *DigestHandler) Countries(c *gin.Context) {
	response.Success(c, h.holidays.Countries())
}

// Workday answers whether a date is a workday in the given countries
// GET /api/admin/holidays/workday?date=2026-10-01&country=CN
func (h *DigestHandler) Workday(c *gin.Context) {
	day := time.Now()
	if s := c.Query("date"); s != "" {
		parsed, err := time.Parse("2006-01-02", s)
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	countries := c.QueryArray("country")
	response.Success(c, gin.H{
		"date":      day.Format("2006-01-02"),
		"countries": countries,
		"workday":   h.holidays.IsWorkday(day, countries...),
	})
}
