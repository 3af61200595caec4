package api

import (
	"errors"
	"net/http"

	"go-file-share/internal/gate"
	"go-file-share/internal/service"

	"github.com/gin-gonic/gin"
)

// 访问门判定到HTTP状态码的映射
func statusForDecision(d gate.Decision) int {
	switch d.Code {
	case gate.NotFound:
		return http.StatusNotFound
	case gate.Forbidden:
		return http.StatusForbidden
	case gate.Unauthorized:
		return http.StatusUnauthorized
	case gate.Gone:
		return http.StatusGone
	default:
		return http.StatusOK
	}
}

// 以判定的原因串回复拒绝
func denyJSON(c *gin.Context, d gate.Decision) {
	c.JSON(statusForDecision(d), gin.H{"error": d.Reason})
}

// 服务层哨兵错误到HTTP状态码的映射。
// 未识别的错误一律映射为500，不向客户端泄漏内部细节。
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrFileNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyDeleted),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrSameStatus),
		errors.Is(err, service.ErrMissingPassword),
		errors.Is(err, service.ErrNotProtected),
		errors.Is(err, service.ErrNoFiles):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCodeExhausted):
		return http.StatusConflict
	case errors.Is(err, service.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c *gin.Context, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	if errors.Is(err, service.ErrUpstream) {
		// 不暴露外部依赖细节
		message = "temporary failure, please retry"
	}
	c.JSON(status, gin.H{"error": message})
}
