package model

import (
	"time"
)

// User 表示注册用户及其上传/下载统计
type User struct {
	ID         uint   `gorm:"primarykey" json:"id"`
	Fullname   string `gorm:"type:varchar(100);not null" json:"fullname"`
	Username   string `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email      string `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Password   string `gorm:"type:varchar(100);not null" json:"-"` // bcrypt哈希，永不返回
	ProfilePic string `gorm:"type:varchar(255)" json:"profile_pic"`

	// 聚合统计，由文件服务按内容类型分桶递增
	TotalUploads   int64 `gorm:"not null;default:0" json:"total_uploads"`
	TotalDownloads int64 `gorm:"not null;default:0" json:"total_downloads"`
	ImageCount     int64 `gorm:"not null;default:0" json:"image_count"`
	VideoCount     int64 `gorm:"not null;default:0" json:"video_count"`
	DocumentCount  int64 `gorm:"not null;default:0" json:"document_count"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
