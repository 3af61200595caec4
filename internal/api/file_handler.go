package api

import (
	"net/http"
	"strconv"

	"go-file-share/internal/gate"
	"go-file-share/internal/service"
	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileHandler 处理文件相关的API请求
type FileHandler struct {
	fileService *service.FileService
}

// 创建新的文件处理器
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// 从上下文中取出认证后的用户ID
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	userID, ok := v.(uint)
	return userID, ok
}

// UploadFiles 处理多文件上传。
// 原始的"true"/"false"字符串标志在这里转换成类型化字段，
// 核心服务只接受类型化的布尔值与小时数。
func (h *FileHandler) UploadFiles(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		logger.L.Warn("Failed to parse multipart form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid files"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	isPassword, _ := strconv.ParseBool(c.PostForm("isPassword"))
	hasExpiry, _ := strconv.ParseBool(c.PostForm("hasExpiry"))

	req := service.UploadRequest{OwnerID: userID}
	if isPassword {
		req.Password = c.PostForm("password")
		if req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
			return
		}
	}
	if hasExpiry {
		hours, err := strconv.Atoi(c.PostForm("expiresAt"))
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expiry hours"})
			return
		}
		req.ExpiryHours = hours
	}

	maxSize := config.GlobalConfig.File.MaxFileSize
	for _, fh := range fileHeaders {
		if fh.Size > maxSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "file too large: " + fh.Filename,
			})
			return
		}
	}

	// 打开所有multipart文件，交由服务逐个处理
	for _, fh := range fileHeaders {
		src, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read uploaded file"})
			return
		}
		defer src.Close()

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.Files = append(req.Files, service.UploadPayload{
			Name:        fh.Filename,
			ContentType: contentType,
			SizeBytes:   fh.Size,
			Reader:      src,
		})
	}

	results, err := h.fileService.Upload(c.Request.Context(), req)
	if err != nil {
		errorJSON(c, err)
		return
	}

	succeeded := 0
	for _, r := range results {
		if r.Error == "" {
			succeeded++
		}
	}
	if succeeded == 0 {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "all uploads failed",
			"files": results,
		})
		return
	}

	// 部分成功也返回201，逐个文件报告结果
	c.JSON(http.StatusCreated, gin.H{
		"message": "Files uploaded",
		"files":   results,
	})
}

// DownloadFile 执行完整访问门检查后返回下载URL
func (h *FileHandler) DownloadFile(c *gin.Context) {
	fileID := c.Param("fileId")

	var body struct {
		Password string `json:"password"`
	}
	// 密码可选，body可以为空
	_ = c.ShouldBindJSON(&body)

	url, decision, err := h.fileService.Download(c.Request.Context(), fileID, body.Password)
	if err != nil {
		errorJSON(c, err)
		return
	}
	if decision.Code != gate.Allow {
		denyJSON(c, decision)
		return
	}

	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

// DeleteFile 删除文件及其Blob
func (h *FileHandler) DeleteFile(c *gin.Context) {
	if err := h.fileService.Delete(c.Request.Context(), c.Param("fileId")); err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

// UpdateFileStatus 在active/inactive之间切换
func (h *FileHandler) UpdateFileStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	file, err := h.fileService.UpdateStatus(c.Param("fileId"), body.Status)
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File status updated successfully", "file": file})
}

// UpdateFileExpiry 重设过期时间
func (h *FileHandler) UpdateFileExpiry(c *gin.Context) {
	var body struct {
		ExpiresAt int `json:"expiresAt" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ExpiresAt <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid expiry hours"})
		return
	}

	file, err := h.fileService.UpdateExpiry(c.Param("fileId"), body.ExpiresAt)
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File expiry updated successfully", "file": file})
}

// UpdateFilePassword 替换文件密码
func (h *FileHandler) UpdateFilePassword(c *gin.Context) {
	var body struct {
		NewPassword string `json:"newPassword"`
	}
	_ = c.ShouldBindJSON(&body)

	file, err := h.fileService.UpdatePassword(c.Param("fileId"), body.NewPassword)
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File password updated successfully", "file": file})
}

// GetFileDetails 返回文件详情
func (h *FileHandler) GetFileDetails(c *gin.Context) {
	file, err := h.fileService.GetFileDetails(c.Param("fileId"))
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// GetDownloadCount 返回文件下载次数
func (h *FileHandler) GetDownloadCount(c *gin.Context) {
	count, err := h.fileService.GetDownloadCount(c.Param("fileId"))
	if err != nil {
		errorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_count": count})
}

// SearchFiles 按名称搜索文件
func (h *FileHandler) SearchFiles(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	files, err := h.fileService.SearchFiles(query)
	if err != nil {
		errorJSON(c, err)
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No files found"})
		return
	}
	c.JSON(http.StatusOK, files)
}

// GetUserFiles 列出用户的全部文件
func (h *FileHandler) GetUserFiles(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	files, err := h.fileService.GetUserFiles(uint(userID))
	if err != nil {
		errorJSON(c, err)
		return
	}
	if len(files) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No files found"})
		return
	}
	c.JSON(http.StatusOK, files)
}
