package event

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zatyrani/zatyrani-backend/middleware"
	"github.com/zatyrani/zatyrani-backend/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// ===========================
// 📋 List Events - GET /api/events
// @Summary List calendar events
// @Tags Events
// @Produce json
// @Success 200 {array} Event
// @Router /api/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.Service.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ===========================
// 🎯 Create Event - POST /api/events
// @Summary Add a calendar event
// @Tags Events
// @Accept json
// @Produce json
// @Param body body EventRequest true "Event"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,409 {object} map[string]interface{}
// @Router /api/events [post]
func (h *Handler) CreateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid input: " + err.Error()})
		return
	}

	ev, err := h.Service.Create(c.Request.Context(), req, middleware.MemberID(c), middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "uid": ev.UID})
}

// ===========================
// 🔄 Update Event - PUT /api/events/:uid
// @Summary Update a calendar event
// @Tags Events
// @Accept json
// @Produce json
// @Param uid path string true "Event UID"
// @Param body body EventRequest true "Event"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,404,409 {object} map[string]interface{}
// @Router /api/events/{uid} [put]
func (h *Handler) UpdateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid input: " + err.Error()})
		return
	}

	uid := c.Param("uid")
	if _, err := h.Service.Update(c.Request.Context(), uid, req, middleware.MemberID(c), middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event with UID " + uid + " updated successfully."})
}

// ===========================
// 🗑️ Delete Event - DELETE /api/events/:uid
// @Summary Delete a calendar event
// @Tags Events
// @Produce json
// @Param uid path string true "Event UID"
// @Success 200 {object} map[string]interface{}
// @Failure 401,404,409 {object} map[string]interface{}
// @Router /api/events/{uid} [delete]
func (h *Handler) DeleteEvent(c *gin.Context) {
	uid := c.Param("uid")
	if err := h.Service.Delete(c.Request.Context(), uid, middleware.MemberID(c), middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Event with UID " + uid + " deleted successfully."})
}
