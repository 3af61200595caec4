package api

import (
	"net/http"

	"go-file-share/internal/gate"
	"go-file-share/internal/service"

	"github.com/gin-gonic/gin"
)

// ShareHandler 处理短链接解析与分享相关请求
type ShareHandler struct {
	shareService *service.ShareService
}

// 创建新的分享处理器
func NewShareHandler(shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

// ResolveShareLink 把短码解析为公开预览。
// 过期记录在这里被惰性置为expired后返回410。
func (h *ShareHandler) ResolveShareLink(c *gin.Context) {
	view, decision, err := h.shareService.Resolve(c.Param("code"))
	if err != nil {
		errorJSON(c, err)
		return
	}
	if decision.Code != gate.Allow {
		denyJSON(c, decision)
		return
	}
	c.JSON(http.StatusOK, view)
}

// VerifyFilePassword 校验受保护文件的密码。
// 校验不发放票据：下载时访问门会再次独立执行。
func (h *ShareHandler) VerifyFilePassword(c *gin.Context) {
	var body struct {
		FileID   string `json:"fileId" binding:"required"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileId is required"})
		return
	}

	decision, err := h.shareService.VerifyPassword(body.FileID, body.Password)
	if err != nil {
		errorJSON(c, err)
		return
	}
	if decision.Code != gate.Allow {
		denyJSON(c, decision)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password verified"})
}

// RegenerateShareLink 为文件重新生成短链接，旧链接失效
func (h *ShareHandler) RegenerateShareLink(c *gin.Context) {
	shortURL, err := h.shareService.RegenerateShareLink(c.Param("fileId"))
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"short_url": shortURL})
}

// SendLinkEmail 通过邮件发送分享链接
func (h *ShareHandler) SendLinkEmail(c *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
		return
	}

	if err := h.shareService.SendLinkEmail(c.Param("fileId"), body.Email); err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Link sent successfully"})
}

// GenerateQR 返回分享链接的二维码data URL
func (h *ShareHandler) GenerateQR(c *gin.Context) {
	qr, err := h.shareService.GenerateQR(c.Param("fileId"))
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"qr": qr})
}
