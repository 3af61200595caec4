// Package event 发布文件活动事件（上传/下载/删除）。
// 事件发布失败只记录日志，永远不会使用户操作失败。
package event

import (
	"errors"
	"time"

	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"

	"go.uber.org/zap"
)

// 事件类型
const (
	FileUploaded   = "file.uploaded"
	FileDownloaded = "file.downloaded"
	FileDeleted    = "file.deleted"
)

// Event 是一条文件活动记录
type Event struct {
	Type      string    `json:"type"`
	FileID    string    `json:"file_id"`
	OwnerID   uint      `json:"owner_id"`
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	At        time.Time `json:"at"`
}

// Publisher 由具体的消息实现提供
type Publisher interface {
	Publish(e Event)
	Close() error
}

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

func (NopPublisher) Close() error { return nil }

// CreatePublisher 根据配置创建相应的Publisher实现
func CreatePublisher() (Publisher, error) {
	provider := config.GlobalConfig.Messaging.Provider
	logger.L.Info("Creating event publisher", zap.String("provider", provider))

	switch provider {
	case "none":
		return NopPublisher{}, nil

	case "kafka":
		return NewKafkaPublisher()

	default:
		return nil, errors.New("unsupported messaging provider")
	}
}
