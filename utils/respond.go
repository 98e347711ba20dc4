package utils

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
)

// RespondError writes the {"success": false, "error": ...} body with the
// status matching the error kind. Internal errors are logged, not shown.
func RespondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("❌ Request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": apperrors.Message(err)})
}
