package model

import (
	"time"

	"gorm.io/gorm"
)

// 文件状态
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusExpired  = "expired"
	StatusDeleted  = "deleted"
)

// File 表示一条可分享的文件记录
type File struct {
	ID        string         `gorm:"type:varchar(36);primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 文件元数据，上传时确定后不再变更
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	ContentType string `gorm:"type:varchar(100);not null" json:"content_type"`
	SizeBytes   int64  `gorm:"not null" json:"size_bytes"`

	// Blob存储：BlobKey用于删除，BlobURL用于下载/预览
	BlobKey string `gorm:"type:varchar(255);not null" json:"-"`
	BlobURL string `gorm:"type:varchar(512);not null" json:"-"`

	// 公开分享短码，全局唯一；重新生成后旧码失效
	ShortCode string `gorm:"type:varchar(32);uniqueIndex;not null" json:"short_code"`

	OwnerID uint `gorm:"not null;index" json:"owner_id"`

	Status string `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`

	// 每条记录创建后都有具体的过期时间（未指定时应用默认保留期）
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	IsPasswordProtected bool   `gorm:"not null;default:false" json:"is_password_protected"`
	PasswordHash        string `gorm:"type:varchar(100)" json:"-"` // bcrypt哈希，永不返回

	DownloadCount int64 `gorm:"not null;default:0" json:"download_count"`
}

// IsExpired 判断记录在now时刻是否已过期
func (f *File) IsExpired(now time.Time) bool {
	return now.After(f.ExpiresAt)
}

// HasPassword 判断记录是否受密码保护
func (f *File) HasPassword() bool {
	return f.IsPasswordProtected && f.PasswordHash != ""
}
