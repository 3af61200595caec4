package repository

import (
	"errors"
	"strings"
	"time"

	"go-file-share/internal/model"
	"go-file-share/pkg/db"

	"gorm.io/gorm"
)

// UserRepository 处理用户数据持久化
type UserRepository struct {
	db *gorm.DB
}

// 创建一个新的用户存储库实例
func NewUserRepository() *UserRepository {
	return &UserRepository{db: db.DB}
}

// 新建用户
func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// 通过用户名查找用户
func (r *UserRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 通过邮箱查找用户
func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 通过ID查找用户
func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 检查用户是否存在
func (r *UserRepository) Exists(id uint) (bool, error) {
	var count int64
	if err := r.db.Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// 更新最近登陆时间
func (r *UserRepository) UpdateLastLogin(id uint, at time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		UpdateColumn("last_login", at).Error
}

// IncrementUploadStats 按内容类型分桶递增上传统计。
// 使用SQL表达式原子递增，避免并发上传时丢失更新。
func (r *UserRepository) IncrementUploadStats(id uint, contentType string) error {
	columns := map[string]interface{}{
		"total_uploads": gorm.Expr("total_uploads + 1"),
	}
	switch bucket(contentType) {
	case "image":
		columns["image_count"] = gorm.Expr("image_count + 1")
	case "video":
		columns["video_count"] = gorm.Expr("video_count + 1")
	case "document":
		columns["document_count"] = gorm.Expr("document_count + 1")
	}
	return r.db.Model(&model.User{}).Where("id = ?", id).
		UpdateColumns(columns).Error
}

// IncrementTotalDownloads 原子递增下载总数
func (r *UserRepository) IncrementTotalDownloads(id uint) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		UpdateColumn("total_downloads", gorm.Expr("total_downloads + 1")).Error
}

// 内容类型分桶：image/* | video/* | application/* | 其他
func bucket(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "application/"):
		return "document"
	default:
		return "other"
	}
}
