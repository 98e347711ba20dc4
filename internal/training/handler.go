package training

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

// ListTrainings godoc
// @Summary List trainings
// @Tags Trainings
// @Produce json
// @Success 200 {array} Training
// @Router /api/trainings [get]
func (h *Handler) ListTrainings(c *gin.Context) {
	items, err := h.Service.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// CreateTraining godoc
// @Summary Add a training
// @Tags Trainings
// @Accept json
// @Produce json
// @Param body body TrainingRequest true "Training"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,409 {object} map[string]interface{}
// @Router /api/trainings [post]
func (h *Handler) CreateTraining(c *gin.Context) {
	var req TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid input: " + err.Error()})
		return
	}
	tr, err := h.Service.Create(c.Request.Context(), req, middleware.MemberID(c), middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "uid": tr.UID})
}

// UpdateTraining godoc
// @Summary Update a training
// @Tags Trainings
// @Accept json
// @Produce json
// @Param uid path string true "Training UID"
// @Param body body TrainingRequest true "Training"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,404,409 {object} map[string]interface{}
// @Router /api/trainings/{uid} [put]
func (h *Handler) UpdateTraining(c *gin.Context) {
	var req TrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid input: " + err.Error()})
		return
	}
	uid := c.Param("uid")
	if _, err := h.Service.Update(c.Request.Context(), uid, req, middleware.MemberID(c), middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Training with UID " + uid + " updated successfully."})
}

// DeleteTraining godoc
// @Summary Delete a training
// @Tags Trainings
// @Produce json
// @Param uid path string true "Training UID"
// @Success 200 {object} map[string]interface{}
// @Failure 401,404,409 {object} map[string]interface{}
// @Router /api/trainings/{uid} [delete]
func (h *Handler) DeleteTraining(c *gin.Context) {
	uid := c.Param("uid")
	if err := h.Service.Delete(c.Request.Context(), uid, middleware.MemberID(c), middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Training with UID " + uid + " deleted successfully."})
}
