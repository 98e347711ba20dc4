package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zatyrani/zatyrani-backend/middleware"
	"github.com/zatyrani/zatyrani-backend/utils"
)

type Handler struct {
	service      Service
	secureCookie bool
}

func NewHandler(s Service, secureCookie bool) *Handler {
	return &Handler{service: s, secureCookie: secureCookie}
}

// ===============================
// Request code
// ===============================

type requestCodeReq struct {
	Phone string `json:"phone" example:"600 123 456"`
}

// RequestCode godoc
// @Summary Send an SMS login code to a member
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body requestCodeReq true "Member phone"
// @Success 200 {object} map[string]interface{}
// @Failure 400,404,429,503 {object} map[string]interface{}
// @Router /api/auth/request-code [post]
func (h *Handler) RequestCode(c *gin.Context) {
	var req requestCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Nieprawidłowy numer telefonu."})
		return
	}

	if err := h.service.RequestCode(c.Request.Context(), req.Phone, middleware.GetIPFromContext(c)); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ===============================
// Verify code
// ===============================

type verifyCodeReq struct {
	Phone string `json:"phone" example:"600123456"`
	Code  string `json:"code" example:"123456"`
}

// VerifyCode godoc
// @Summary Exchange an SMS code for a session cookie
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body verifyCodeReq true "Phone and code"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,403,404 {object} map[string]interface{}
// @Router /api/auth/verify-code [post]
func (h *Handler) VerifyCode(c *gin.Context) {
	var req verifyCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Nieprawidłowy numer telefonu lub kod."})
		return
	}

	session, token, err := h.service.VerifyCode(c.Request.Context(), req.Phone, req.Code, middleware.GetIPFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	h.setSessionCookie(c, token, session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// ===============================
// Session
// ===============================

// VerifyMe godoc
// @Summary Report the current member session
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/verify-me [get]
func (h *Handler) VerifyMe(c *gin.Context) {
	token, _ := utils.Cookie(c.GetHeader("Cookie"), middleware.MemberCookie)
	session, err := h.service.Me(c.Request.Context(), token)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"memberId":  session.MemberID,
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout godoc
// @Summary End the member session
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	token, _ := utils.Cookie(c.GetHeader("Cookie"), middleware.MemberCookie)
	_ = h.service.Logout(c.Request.Context(), token)
	h.setSessionCookie(c, "", time.Unix(0, 0))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.MemberCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
