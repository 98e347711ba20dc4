// Package rally records sign-ups for the Nordic walking rally, entered by
// members on behalf of participants.
package rally

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
	"github.com/zatyrani/zatyrani-backend/internal/auditlog"
	"github.com/zatyrani/zatyrani-backend/internal/ghstore"
	"github.com/zatyrani/zatyrani-backend/middleware"
	"github.com/zatyrani/zatyrani-backend/utils"
)

const DataPath = "src/data/rajdnw-participants.json"

type Participant struct {
	Year      string `json:"year"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Club      string `json:"club"`
	Location  string `json:"location"`
}

type RegisterRequest struct {
	Name     string `json:"name" example:"Anna"`
	Surname  string `json:"surname" example:"Nowak"`
	Club     string `json:"club"`
	Location string `json:"location" example:"Kraków"`
	Year     string `json:"year" example:"2025"`
}

type Service struct {
	store    *ghstore.Collection[Participant]
	auditSvc auditlog.Service
	now      func() time.Time
}

func NewService(contents ghstore.Contents, auditSvc auditlog.Service) *Service {
	return &Service{
		store:    ghstore.NewCollection[Participant](contents, DataPath),
		auditSvc: auditSvc,
		now:      time.Now,
	}
}

func (s *Service) List(ctx context.Context) ([]Participant, error) {
	return s.store.List(ctx)
}

// Register appends a participant. Year defaults to the current one.
func (s *Service) Register(ctx context.Context, req RegisterRequest, actorID, ip string) (*Participant, error) {
	p := Participant{
		Year:      strings.TrimSpace(req.Year),
		Firstname: strings.TrimSpace(req.Name),
		Lastname:  strings.TrimSpace(req.Surname),
		Club:      strings.TrimSpace(req.Club),
		Location:  strings.TrimSpace(req.Location),
	}
	if p.Firstname == "" || p.Lastname == "" {
		return nil, apperrors.Invalid("name", "Imię i nazwisko są wymagane")
	}
	if p.Year == "" {
		p.Year = fmt.Sprint(s.now().Year())
	}

	msg := fmt.Sprintf("chore(nwrajd-participants): added participant %s %s", p.Firstname, p.Lastname)
	err := s.store.Mutate(ctx, msg, func(items []Participant) ([]Participant, error) {
		return append(items, p), nil
	})

	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err != nil {
		s.auditSvc.LogAction(ctx, actor, p.Year, "RALLY_PARTICIPANT_ADDED", map[string]interface{}{"error": err.Error()}, ip, auditlog.StatusFailure)
		return nil, err
	}
	s.auditSvc.LogAction(ctx, actor, p.Year, "RALLY_PARTICIPANT_ADDED", map[string]interface{}{
		"firstname": p.Firstname,
		"lastname":  p.Lastname,
	}, ip, auditlog.StatusSuccess)
	return &p, nil
}

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

// Register godoc
// @Summary Sign a participant up for the Nordic walking rally
// @Tags Rally
// @Accept json
// @Produce json
// @Param body body RegisterRequest true "Participant"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401 {object} map[string]interface{}
// @Router /api/nwrajd/participants [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid input: " + err.Error()})
		return
	}
	if _, err := h.Service.Register(c.Request.Context(), req, middleware.MemberID(c), middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// List godoc
// @Summary List rally participants
// @Tags Rally
// @Produce json
// @Success 200 {array} Participant
// @Router /api/nwrajd/participants [get]
func (h *Handler) List(c *gin.Context) {
	items, err := h.Service.List(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
