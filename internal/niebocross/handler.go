package niebocross

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zatyrani/zatyrani-backend/internal/eligibility"
	"github.com/zatyrani/zatyrani-backend/middleware"
	"github.com/zatyrani/zatyrani-backend/utils"
)

// AuthStatusCookie is readable by the frontend so it can tell whether a
// session cookie is present.
const AuthStatusCookie = "niebocross_auth_status"

const maxWebhookBody = 1 << 20

type Handler struct {
	service      *Service
	secureCookie bool
}

func NewHandler(s *Service, secureCookie bool) *Handler {
	return &Handler{service: s, secureCookie: secureCookie}
}

// =============================
// Auth
// =============================

// StartRegistration godoc
// @Summary Create a race registration and e-mail a login code
// @Tags NieboCross
// @Accept json
// @Produce json
// @Param body body StartRegistrationRequest true "Contact details"
// @Success 200 {object} map[string]interface{}
// @Failure 400,429 {object} map[string]interface{}
// @Router /api/niebocross/auth/start-registration [post]
func (h *Handler) StartRegistration(c *gin.Context) {
	var req StartRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request"})
		return
	}
	if err := h.service.StartRegistration(c.Request.Context(), req, middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Kod weryfikacyjny został wysłany na podany adres e-mail"})
}

// RequestCode godoc
// @Summary E-mail a login code to an existing registration
// @Tags NieboCross
// @Accept json
// @Produce json
// @Param body body RequestCodeRequest true "Registration e-mail"
// @Success 200 {object} map[string]interface{}
// @Failure 400,429 {object} map[string]interface{}
// @Router /api/niebocross/auth/request-code [post]
func (h *Handler) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Email jest wymagany"})
		return
	}
	if err := h.service.RequestCode(c.Request.Context(), req.Email, middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Jeśli adres jest zarejestrowany, wysłaliśmy na niego kod"})
}

// VerifyCode godoc
// @Summary Exchange an e-mail code for a session
// @Tags NieboCross
// @Accept json
// @Produce json
// @Param body body VerifyCodeRequest true "E-mail and code"
// @Success 200 {object} map[string]interface{}
// @Failure 400,404 {object} map[string]interface{}
// @Router /api/niebocross/auth/verify-code [post]
func (h *Handler) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "CODE_REQUIRED"})
		return
	}
	session, err := h.service.VerifyCode(c.Request.Context(), req.Email, req.Code, middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	h.setCookies(c, session.Token, maxAge)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"token":        session.Token,
		"expiresAt":    session.ExpiresAt.UTC().Format(time.RFC3339),
		"registration": session.Registration,
	})
}

// Logout godoc
// @Summary Clear the NieboCross session cookies
// @Tags NieboCross
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/niebocross/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	h.setCookies(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Wylogowano pomyślnie"})
}

// setCookies writes the session cookie and its script-readable status
// companion. A negative maxAge deletes both.
func (h *Handler) setCookies(c *gin.Context, token string, maxAge int) {
	status := "true"
	if maxAge < 0 {
		status = ""
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.NieboCrossCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     AuthStatusCookie,
		Value:    status,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

// =============================
// Participants
// =============================

// AddParticipants godoc
// @Summary Add participants to the logged-in registration
// @Tags NieboCross
// @Accept json
// @Produce json
// @Param body body AddParticipantsRequest true "Participants and optional extra donation"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,403,409 {object} map[string]interface{}
// @Router /api/niebocross/participants [post]
func (h *Handler) AddParticipants(c *gin.Context) {
	var req AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Nieprawidłowe dane uczestników"})
		return
	}
	pay, err := h.service.AddParticipants(c.Request.Context(), middleware.RegistrationID(c), req, middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	msg := "Uczestnik został dodany pomyślnie"
	if n := len(req.Participants); n > 1 {
		msg = fmt.Sprintf("%d uczestników zostało dodanych pomyślnie", n)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "payment": pay})
}

// UpdateParticipant godoc
// @Summary Replace one participant's data
// @Tags NieboCross
// @Accept json
// @Produce json
// @Param id path string true "Participant ID"
// @Param body body eligibility.ParticipantInput true "Participant"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,403,404,409 {object} map[string]interface{}
// @Router /api/niebocross/participants/{id} [put]
func (h *Handler) UpdateParticipant(c *gin.Context) {
	var in eligibility.ParticipantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Nieprawidłowe dane uczestnika"})
		return
	}
	p, pay, err := h.service.UpdateParticipant(c.Request.Context(), middleware.RegistrationID(c), c.Param("id"), in, middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Uczestnik został zaktualizowany", "participant": p, "payment": pay})
}

// DeleteParticipant godoc
// @Summary Remove one participant
// @Tags NieboCross
// @Produce json
// @Param id path string true "Participant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 401,403,404 {object} map[string]interface{}
// @Router /api/niebocross/participants/{id} [delete]
func (h *Handler) DeleteParticipant(c *gin.Context) {
	remaining, pay, err := h.service.DeleteParticipant(c.Request.Context(), middleware.RegistrationID(c), c.Param("id"), middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"message":               "Uczestnik został usunięty",
		"participantsRemaining": remaining,
		"payment":               pay,
	})
}

// Dashboard godoc
// @Summary Registration, participants and payment of the logged-in user
// @Tags NieboCross
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401,404 {object} map[string]interface{}
// @Router /api/niebocross/dashboard [get]
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context(), middleware.RegistrationID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"registration": d.Registration,
		"participants": d.Participants,
		"payment":      d.Payment,
		"canEdit":      d.CanEdit,
	})
}

// =============================
// Payments
// =============================

// PaymentStatus godoc
// @Summary Current payment of a registration
// @Tags NieboCross
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/niebocross/payment/{id} [get]
func (h *Handler) PaymentStatus(c *gin.Context) {
	pay, err := h.service.PaymentStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"payment": gin.H{
			"id":             pay.ID,
			"total_amount":   pay.TotalAmount,
			"payment_status": pay.PaymentStatus,
			"payment_link":   pay.PaymentLink,
			"created_at":     pay.CreatedAt,
		},
	})
}

// CreatePaymentLink godoc
// @Summary Open a gateway checkout for the pending payment
// @Tags NieboCross
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,403,409,503 {object} map[string]interface{}
// @Router /api/niebocross/payment/link [post]
func (h *Handler) CreatePaymentLink(c *gin.Context) {
	pay, err := h.service.CreatePaymentLink(c.Request.Context(), middleware.RegistrationID(c), middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paymentUrl": pay.PaymentLink, "payment": pay})
}

// Webhook godoc
// @Summary Payment gateway notification
// @Tags NieboCross
// @Accept plain
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,404 {object} map[string]interface{}
// @Router /api/niebocross/payment/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid webhook payload"})
		return
	}
	ack, err := h.service.HandleWebhook(c.Request.Context(), body, c.Request.Header, middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}

// Confirmation godoc
// @Summary Payment confirmation PDF
// @Tags NieboCross
// @Produce application/pdf
// @Success 200 {file} binary
// @Failure 401,403,404 {object} map[string]interface{}
// @Router /api/niebocross/confirmation [get]
func (h *Handler) Confirmation(c *gin.Context) {
	data, filename, err := h.service.ConfirmationPDF(c.Request.Context(), middleware.RegistrationID(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/pdf", data)
}

// =============================
// Public
// =============================

// PublicParticipants godoc
// @Summary Public start list
// @Tags NieboCross
// @Produce json
// @Param raceCategory query string false "Race category"
// @Param club query string false "Club contains"
// @Param city query string false "City contains"
// @Param nationality query string false "Nationality"
// @Success 200 {object} map[string]interface{}
// @Router /api/niebocross/registrations [get]
func (h *Handler) PublicParticipants(c *gin.Context) {
	var f PublicFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Nieprawidłowe filtry"})
		return
	}
	list, err := h.service.PublicParticipants(c.Request.Context(), f)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "participants": list, "total": len(list)})
}

// SearchClubs godoc
// @Summary Club name suggestions
// @Tags NieboCross
// @Produce json
// @Param q query string true "At least two characters"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/niebocross/clubs/search [get]
func (h *Handler) SearchClubs(c *gin.Context) {
	clubs, err := h.service.SearchClubs(c.Request.Context(), c.Query("q"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clubs": clubs})
}

// Limits godoc
// @Summary Places left per category group
// @Tags NieboCross
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/niebocross/limits [get]
func (h *Handler) Limits(c *gin.Context) {
	usage, err := h.service.Limits(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "limits": usage})
}

// =============================
// Cron and organizers
// =============================

// SendPaymentReminders godoc
// @Summary Mail every registration with an unpaid balance
// @Tags NieboCross
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/niebocross/reminders/send-payment-reminder [get]
func (h *Handler) SendPaymentReminders(c *gin.Context) {
	res, err := h.service.SendPaymentReminders(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sent":    res.Sent,
		"skipped": res.Skipped,
		"failed":  res.Failed,
		"errors":  res.Errors,
	})
}

// ExportParticipants godoc
// @Summary Organizer participant export
// @Tags NieboCross
// @Produce application/octet-stream
// @Param format query string false "excel, csv or pdf"
// @Param date_range query string false "all, daily, weekly, monthly or custom"
// @Param start_date query string false "YYYY-MM-DD for custom"
// @Param end_date query string false "YYYY-MM-DD for custom"
// @Success 200 {file} binary
// @Failure 400,401 {object} map[string]interface{}
// @Router /api/niebocross/admin/export [get]
func (h *Handler) ExportParticipants(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "excel"))
	data, filename, contentType, err := h.service.ExportParticipants(c.Request.Context(), format,
		c.Query("date_range"), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, data)
}

// SyncSheet godoc
// @Summary Overwrite the organizers' Google spreadsheet with the participant list
// @Tags NieboCross
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401,503 {object} map[string]interface{}
// @Router /api/niebocross/admin/sheets-sync [post]
func (h *Handler) SyncSheet(c *gin.Context) {
	n, err := h.service.SyncSheet(c.Request.Context())
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rows": n})
}
