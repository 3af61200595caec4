package event

import (
	"encoding/json"
	"fmt"

	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaPublisher 把文件活动事件写入Kafka主题
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// 创建一个新的KafkaPublisher
func NewKafkaPublisher() (*KafkaPublisher, error) {
	cfg := &config.GlobalConfig.Messaging.Kafka

	// 配置Kafka
	kConfig := sarama.NewConfig()
	kConfig.Producer.RequiredAcks = sarama.WaitForAll
	kConfig.Producer.Return.Successes = true
	kConfig.Producer.Retry.Max = 3
	kConfig.Version = sarama.V2_8_0_0 // 使用一个稳定版本

	// 创建生产者
	producer, err := sarama.NewSyncProducer(cfg.Brokers, kConfig)
	if err != nil {
		logger.L.Error("Failed to start Kafka producer", zap.Error(err))
		return nil, fmt.Errorf("failed to start Kafka producer: %w", err)
	}

	return &KafkaPublisher{
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// Publish 序列化事件并发送。失败只记录日志。
func (p *KafkaPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.L.Error("Failed to marshal event", zap.Error(err), zap.String("type", e.Type))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.FileID),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		logger.L.Error("Failed to publish event",
			zap.Error(err),
			zap.String("type", e.Type),
			zap.String("fileID", e.FileID))
	}
}

// 关闭生产者
func (p *KafkaPublisher) Close() error {
	if err := p.producer.Close(); err != nil {
		logger.L.Error("Failed to close Kafka producer", zap.Error(err))
		return err
	}
	return nil
}
