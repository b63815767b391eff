package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/softwarepar/softwarepar-backend/internal/logger"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно: коды и сообщения
// таксономии apperror уходят клиенту как есть, внутренние ошибки
// маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		var appErr *apperror.AppError
		switch {
		case errors.As(err.Err, &appErr):
			statusCode = appErr.HTTPStatus
			message = appErr.Message
		case errors.Is(err.Err, repository.ErrUserNotFound):
			statusCode = http.StatusNotFound
			message = "пользователь не найден"
		case errors.Is(err.Err, repository.ErrProjectNotFound):
			statusCode = http.StatusNotFound
			message = "проект не найден"
		case errors.Is(err.Err, repository.ErrStageNotFound):
			statusCode = http.StatusNotFound
			message = "этап оплаты не найден"
		case errors.Is(err.Err, repository.ErrNegotiationNotFound):
			statusCode = http.StatusNotFound
			message = "переговоры не найдены"
		default:
			if msg := err.Error(); msg != "" && !containsInternalKeywords(msg) {
				message = msg
				if contains(msg, "валидац") || contains(msg, "неверный") {
					statusCode = http.StatusBadRequest
				}
			}
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

// containsInternalKeywords проверяет, содержит ли строка ключевые слова внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	for _, keyword := range keywords {
		if contains(s, keyword) {
			return true
		}
	}
	return false
}

// contains проверяет, содержит ли строка подстроку (case-insensitive).
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
