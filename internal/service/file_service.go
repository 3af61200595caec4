package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go-file-share/internal/event"
	"go-file-share/internal/gate"
	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/internal/storage"
	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"
	"go-file-share/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// FileService 管理文件生命周期：上传、下载、删除与状态变更
type FileService struct {
	fileRepo *repository.FileRepository
	userRepo *repository.UserRepository
	blobs    storage.BlobStore
	events   event.Publisher

	// 可注入时钟，测试中模拟时间推进
	now func() time.Time
}

// 创建新的文件服务
func NewFileService(
	fileRepo *repository.FileRepository,
	userRepo *repository.UserRepository,
	blobs storage.BlobStore,
	events event.Publisher,
) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		userRepo: userRepo,
		blobs:    blobs,
		events:   events,
		now:      time.Now,
	}
}

// UploadPayload 是一个待上传的文件
type UploadPayload struct {
	Name        string
	ContentType string
	SizeBytes   int64
	Reader      io.Reader
}

// UploadRequest 携带一批上传文件与可选的访问门参数。
// 边界层负责把"true"/"false"字符串标志转换成类型化字段。
type UploadRequest struct {
	OwnerID uint
	// 为空表示不设密码
	Password string
	// 0表示应用默认保留期
	ExpiryHours int
	Files       []UploadPayload
}

// UploadResult 报告批量上传中单个文件的结果。
// 单个文件失败不中止其余文件（部分成功是显式设计）。
type UploadResult struct {
	Name     string `json:"name"`
	FileID   string `json:"file_id,omitempty"`
	ShortURL string `json:"short_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Upload 处理一批文件上传。
// 每个文件：存Blob → 建记录（短码冲突时重试）→ 更新所有者统计。
// Blob成功但记录失败时回收Blob，不留下不可见的半成品。
func (s *FileService) Upload(ctx context.Context, req UploadRequest) ([]UploadResult, error) {
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}

	exists, err := s.userRepo.Exists(req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify owner: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	// 明文密码只在内存中出现一次，哈希后立即丢弃
	passwordHash := ""
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hashed)
	}

	results := make([]UploadResult, 0, len(req.Files))
	for _, payload := range req.Files {
		result := s.uploadOne(ctx, req, payload, passwordHash)
		results = append(results, result)
	}
	return results, nil
}

func (s *FileService) uploadOne(ctx context.Context, req UploadRequest, payload UploadPayload, passwordHash string) UploadResult {
	result := UploadResult{Name: payload.Name}

	storedName, err := storedFileName(payload.Name)
	if err != nil {
		result.Error = "failed to generate file name"
		return result
	}

	blobKey := fmt.Sprintf("user_%d/%s", req.OwnerID, storedName)
	blobURL, err := s.blobs.Put(ctx, blobKey, payload.Reader, payload.ContentType)
	if err != nil {
		logger.L.Error("Failed to store blob",
			zap.Error(err),
			zap.String("name", payload.Name),
			zap.Uint("ownerID", req.OwnerID))
		result.Error = "failed to store file"
		return result
	}

	now := s.now()
	file := &model.File{
		ID:          uuid.NewString(),
		Name:        storedName,
		ContentType: payload.ContentType,
		SizeBytes:   payload.SizeBytes,
		BlobKey:     blobKey,
		BlobURL:     blobURL,
		OwnerID:     req.OwnerID,
		Status:      model.StatusActive,
		ExpiresAt:   expiryFor(now, req.ExpiryHours),
	}
	if passwordHash != "" {
		file.PasswordHash = passwordHash
		file.IsPasswordProtected = true
	}

	if err := s.createWithUniqueCode(file); err != nil {
		// 记录没建起来，Blob也不保留
		if delErr := s.blobs.Delete(ctx, blobKey); delErr != nil {
			logger.L.Warn("Failed to clean up blob after record failure",
				zap.Error(delErr), zap.String("blobKey", blobKey))
		}
		logger.L.Error("Failed to persist file record",
			zap.Error(err), zap.String("name", payload.Name))
		result.Error = "failed to save file"
		return result
	}

	if err := s.userRepo.IncrementUploadStats(req.OwnerID, payload.ContentType); err != nil {
		logger.L.Warn("Failed to update owner stats", zap.Error(err), zap.Uint("ownerID", req.OwnerID))
	}

	s.events.Publish(event.Event{
		Type:      event.FileUploaded,
		FileID:    file.ID,
		OwnerID:   file.OwnerID,
		Name:      file.Name,
		SizeBytes: file.SizeBytes,
		At:        now,
	})

	logger.L.Info("File uploaded",
		zap.String("fileID", file.ID),
		zap.String("name", file.Name),
		zap.Int64("size", file.SizeBytes),
		zap.Uint("ownerID", file.OwnerID))

	result.FileID = file.ID
	result.ShortURL = ShortURL(file.ShortCode)
	return result
}

// createWithUniqueCode 插入记录，短码唯一索引冲突时重新生成短码，
// 有限次重试后返回ErrCodeExhausted。
func (s *FileService) createWithUniqueCode(file *model.File) error {
	cfg := &config.GlobalConfig.File
	for attempt := 0; attempt < cfg.MaxCodeAttempts; attempt++ {
		code, err := utils.GenerateShortCode(cfg.ShortCodeLength)
		if err != nil {
			return err
		}
		file.ShortCode = code

		err = s.fileRepo.Create(file)
		if err == nil {
			return nil
		}
		if !repository.IsDuplicateCode(err) {
			return err
		}
		logger.L.Warn("Short code collision, regenerating", zap.Int("attempt", attempt+1))
	}
	return ErrCodeExhausted
}

// Download 执行完整访问门检查，通过后原子递增计数并返回下载URL。
// 对过期记录同时惰性持久化expired状态。
func (s *FileService) Download(ctx context.Context, fileID, password string) (string, gate.Decision, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return "", gate.Decision{}, fmt.Errorf("failed to look up file: %w", err)
	}

	now := s.now()
	decision := gate.Evaluate(file, password, now)
	if decision.Code == gate.Gone {
		s.persistExpiry(file)
	}
	if decision.Code != gate.Allow {
		return "", decision, nil
	}

	// 原子递增：并发下载不允许丢失更新
	if err := s.fileRepo.IncrementDownloadCount(file.ID); err != nil {
		return "", gate.Decision{}, fmt.Errorf("failed to increment download count: %w", err)
	}
	if err := s.userRepo.IncrementTotalDownloads(file.OwnerID); err != nil {
		logger.L.Warn("Failed to update owner download stats",
			zap.Error(err), zap.Uint("ownerID", file.OwnerID))
	}

	s.events.Publish(event.Event{
		Type:      event.FileDownloaded,
		FileID:    file.ID,
		OwnerID:   file.OwnerID,
		Name:      file.Name,
		SizeBytes: file.SizeBytes,
		At:        now,
	})

	return file.BlobURL, decision, nil
}

// Delete 删除文件：先删Blob，成功后再移除记录。
// Blob删除失败时记录保持原样，调用方可重试，避免记录指向已丢失的Blob。
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	file, err := s.fileRepo.FindByIDUnscoped(fileID)
	if err != nil {
		return fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return ErrFileNotFound
	}
	if file.Status == model.StatusDeleted || file.DeletedAt.Valid {
		return ErrAlreadyDeleted
	}

	if err := s.blobs.Delete(ctx, file.BlobKey); err != nil {
		logger.L.Error("Failed to delete blob",
			zap.Error(err), zap.String("fileID", file.ID), zap.String("blobKey", file.BlobKey))
		return fmt.Errorf("%w: blob deletion failed", ErrUpstream)
	}

	if err := s.fileRepo.MarkDeleted(file.ID); err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	s.events.Publish(event.Event{
		Type:      event.FileDeleted,
		FileID:    file.ID,
		OwnerID:   file.OwnerID,
		Name:      file.Name,
		SizeBytes: file.SizeBytes,
		At:        s.now(),
	})

	logger.L.Info("File deleted", zap.String("fileID", file.ID))
	return nil
}

// UpdateStatus 在active/inactive之间切换。
// 相同状态的更新是显式错误而非静默成功；expired/deleted不可切换。
func (s *FileService) UpdateStatus(fileID, status string) (*model.File, error) {
	if status != model.StatusActive && status != model.StatusInactive {
		return nil, ErrInvalidStatus
	}

	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	if file.Status == status {
		return nil, ErrSameStatus
	}
	if file.Status != model.StatusActive && file.Status != model.StatusInactive {
		// expired是单向状态，不可通过状态接口复活
		return nil, ErrInvalidStatus
	}

	if err := s.fileRepo.UpdateStatus(file.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	file.Status = status
	return file, nil
}

// UpdateExpiry 重设过期时间为 now + hours
func (s *FileService) UpdateExpiry(fileID string, hours int) (*model.File, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}

	expiresAt := s.now().Add(time.Duration(hours) * time.Hour)
	if err := s.fileRepo.UpdateExpiry(file.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to update expiry: %w", err)
	}
	file.ExpiresAt = expiresAt
	return file, nil
}

// UpdatePassword 替换文件密码。明文不落库、不打日志。
func (s *FileService) UpdatePassword(fileID, newPassword string) (*model.File, error) {
	if newPassword == "" {
		return nil, ErrMissingPassword
	}

	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.fileRepo.UpdatePasswordHash(file.ID, string(hashed)); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	file.PasswordHash = string(hashed)
	file.IsPasswordProtected = true
	return file, nil
}

// GetFileDetails 返回文件记录（密码哈希不参与序列化）
func (s *FileService) GetFileDetails(fileID string) (*model.File, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}

// GetDownloadCount 返回文件的下载次数
func (s *FileService) GetDownloadCount(fileID string) (int64, error) {
	file, err := s.GetFileDetails(fileID)
	if err != nil {
		return 0, err
	}
	return file.DownloadCount, nil
}

// GetUserFiles 列出用户的全部文件。
// 列表不触发惰性过期转换：未被访问的过期记录保持陈旧的active状态。
func (s *FileService) GetUserFiles(ownerID uint) ([]model.File, error) {
	return s.fileRepo.FindByOwner(ownerID)
}

// SearchFiles 按名称搜索文件
func (s *FileService) SearchFiles(query string) ([]model.File, error) {
	return s.fileRepo.SearchByName(query)
}

// persistExpiry 惰性持久化expired状态转换
func (s *FileService) persistExpiry(file *model.File) {
	if file == nil || file.Status == model.StatusExpired {
		return
	}
	if err := s.fileRepo.UpdateStatus(file.ID, model.StatusExpired); err != nil {
		logger.L.Warn("Failed to persist expired status",
			zap.Error(err), zap.String("fileID", file.ID))
		return
	}
	file.Status = model.StatusExpired
}

// ShortURL 由短码构造完整分享链接
func ShortURL(code string) string {
	return strings.TrimSuffix(config.GlobalConfig.File.BaseURL, "/") + "/f/" + code
}

// 过期时间：显式指定时 now+hours，否则应用默认保留期
func expiryFor(now time.Time, hours int) time.Time {
	if hours > 0 {
		return now.Add(time.Duration(hours) * time.Hour)
	}
	days := config.GlobalConfig.File.DefaultRetentionDays
	return now.Add(time.Duration(days) * 24 * time.Hour)
}

// 存储名：原始名去空白、追加唯一后缀、保留扩展名
func storedFileName(original string) (string, error) {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	// 净化原始文件名
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.Join(strings.Fields(base), "_")

	suffix, err := utils.GenerateShortCode(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s%s", base, suffix, ext), nil
}
