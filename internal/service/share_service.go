package service

import (
	"fmt"
	"time"

	"go-file-share/internal/gate"
	"go-file-share/internal/model"
	"go-file-share/internal/repository"
	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"
	"go-file-share/pkg/utils"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ShareService 负责短链接解析、密码校验与链接分发
type ShareService struct {
	fileRepo *repository.FileRepository

	// 可注入时钟，测试中模拟时间推进
	now func() time.Time
}

// 创建新的分享服务
func NewShareService(fileRepo *repository.FileRepository) *ShareService {
	return &ShareService{
		fileRepo: fileRepo,
		now:      time.Now,
	}
}

// PublicFileView 是短链接解析返回的客户端安全投影。
// 不包含密码哈希与Blob删除句柄。
type PublicFileView struct {
	FileID              string    `json:"file_id"`
	Name                string    `json:"name"`
	SizeBytes           int64     `json:"size_bytes"`
	ContentType         string    `json:"content_type"`
	PreviewURL          string    `json:"preview_url"`
	IsPasswordProtected bool      `json:"is_password_protected"`
	ExpiresAt           time.Time `json:"expires_at"`
	Status              string    `json:"status"`
}

// Resolve 把短码解析为公开预览。
// 只执行可见性检查（不校验密码）：预览需要暴露"受密码保护"这一事实。
// 过期时惰性持久化expired状态后返回Gone。
func (s *ShareService) Resolve(code string) (*PublicFileView, gate.Decision, error) {
	file, err := s.fileRepo.FindByShortCode(code)
	if err != nil {
		return nil, gate.Decision{}, fmt.Errorf("failed to look up short code: %w", err)
	}

	decision := gate.EvaluatePublic(file, s.now())
	if decision.Code == gate.Gone {
		s.persistExpiry(file)
	}
	if decision.Code != gate.Allow {
		return nil, decision, nil
	}

	return &PublicFileView{
		FileID:              file.ID,
		Name:                file.Name,
		SizeBytes:           file.SizeBytes,
		ContentType:         file.ContentType,
		PreviewURL:          file.BlobURL,
		IsPasswordProtected: file.IsPasswordProtected,
		ExpiresAt:           file.ExpiresAt,
		Status:              file.Status,
	}, decision, nil
}

// VerifyPassword 对受保护文件重新执行完整访问门。
// 访问门无状态：这里通过不发放任何票据，下载时会再次独立校验。
func (s *ShareService) VerifyPassword(fileID, password string) (gate.Decision, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return gate.Decision{}, fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return gate.Decision{}, ErrFileNotFound
	}
	if !file.HasPassword() {
		return gate.Decision{}, ErrNotProtected
	}

	decision := gate.Evaluate(file, password, s.now())
	if decision.Code == gate.Gone {
		s.persistExpiry(file)
	}
	return decision, nil
}

// RegenerateShareLink 为文件分配新的短码，旧码立即失效。
// 与上传一致：唯一索引冲突时有限次重试。
func (s *ShareService) RegenerateShareLink(fileID string) (string, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return "", ErrFileNotFound
	}

	cfg := &config.GlobalConfig.File
	for attempt := 0; attempt < cfg.MaxCodeAttempts; attempt++ {
		code, err := utils.GenerateShortCode(cfg.ShortCodeLength)
		if err != nil {
			return "", err
		}

		err = s.fileRepo.UpdateShortCode(file.ID, code)
		if err == nil {
			logger.L.Info("Share link regenerated", zap.String("fileID", file.ID))
			return ShortURL(code), nil
		}
		if !repository.IsDuplicateCode(err) {
			return "", fmt.Errorf("failed to update short code: %w", err)
		}
		logger.L.Warn("Short code collision, regenerating", zap.Int("attempt", attempt+1))
	}
	return "", ErrCodeExhausted
}

// SendLinkEmail 通过邮件发送分享链接
func (s *ShareService) SendLinkEmail(fileID, toEmail string) error {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return ErrFileNotFound
	}

	cfg := &config.GlobalConfig.Mail
	m := gomail.NewMessage()
	m.SetHeader("From", cfg.From)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", "Your Shared File Link")
	m.SetBody("text/html", shareMailBody(file))

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		logger.L.Error("Failed to send share email",
			zap.Error(err), zap.String("fileID", file.ID))
		return fmt.Errorf("%w: mail delivery failed", ErrUpstream)
	}

	logger.L.Info("Share link emailed", zap.String("fileID", file.ID))
	return nil
}

// GenerateQR 为文件分享链接生成二维码data URL
func (s *ShareService) GenerateQR(fileID string) (string, error) {
	file, err := s.fileRepo.FindByID(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to look up file: %w", err)
	}
	if file == nil {
		return "", ErrFileNotFound
	}
	return utils.GenerateQRDataURL(ShortURL(file.ShortCode))
}

func (s *ShareService) persistExpiry(file *model.File) {
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

// 分享邮件正文
func shareMailBody(file *model.File) string {
	expiryNote := ""
	if !file.ExpiresAt.IsZero() {
		expiryNote = fmt.Sprintf(
			"<p><strong>Note:</strong> This link will expire on <strong>%s</strong>.</p>",
			file.ExpiresAt.Format(time.RFC1123))
	}
	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; line-height: 1.6;">
  <h2>You've received a file!</h2>
  <p><strong>File Name:</strong> %s</p>
  <p><strong>File Type:</strong> %s</p>
  <p><strong>Size:</strong> %.2f KB</p>
  <p><a href="%s">Click here to open your file</a></p>
  %s
</div>`,
		file.Name, file.ContentType, float64(file.SizeBytes)/1024,
		ShortURL(file.ShortCode), expiryNote)
}
