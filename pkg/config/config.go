package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	File      FileConfig      `mapstructure:"file"`
	Mail      MailConfig      `mapstructure:"mail"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// 文件生命周期相关配置
type FileConfig struct {
	// 磁盘Blob存储根目录
	StoragePath string `mapstructure:"storage_path"`
	// 短链接的基础URL，例如 https://share.example.com
	BaseURL string `mapstructure:"base_url"`
	// 单个文件的最大字节数
	MaxFileSize int64 `mapstructure:"max_file_size"`
	// 未指定过期时间时的默认保留天数
	DefaultRetentionDays int `mapstructure:"default_retention_days"`
	// 短码长度（URL安全字母表）
	ShortCodeLength int `mapstructure:"short_code_length"`
	// 短码唯一索引冲突时的最大重试次数
	MaxCodeAttempts int `mapstructure:"max_code_attempts"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type MessagingConfig struct {
	// "none" 或 "kafka"
	Provider string      `mapstructure:"provider"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Production bool   `mapstructure:"production"`
}

var GlobalConfig Config

func Init() error {
	return load("config")
}

// 测试用的配置文件
func InitTest() error {
	return load("config.test")
}

func load(name string) error {
	// 获取项目根目录
	_, b, _, _ := runtime.Caller(0)
	basepath := filepath.Dir(filepath.Dir(filepath.Dir(b)))

	viper.SetConfigName(name)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(filepath.Join(basepath, "config"))

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults()
	return nil
}

func applyDefaults() {
	c := &GlobalConfig
	if c.File.StoragePath == "" {
		c.File.StoragePath = "uploads"
	}
	if c.File.MaxFileSize <= 0 {
		c.File.MaxFileSize = 50 * 1024 * 1024
	}
	if c.File.DefaultRetentionDays <= 0 {
		c.File.DefaultRetentionDays = 10
	}
	if c.File.ShortCodeLength <= 0 {
		c.File.ShortCodeLength = 10
	}
	if c.File.MaxCodeAttempts <= 0 {
		c.File.MaxCodeAttempts = 5
	}
	if c.Messaging.Provider == "" {
		c.Messaging.Provider = "none"
	}
}
