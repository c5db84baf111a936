package consumer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/cache"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/codec"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/models"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/mqttclient"
)

// 单次数据库往返的超时，避免处理循环挂死在故障数据库上
const storeTimeout = 5 * time.Second

// MessageStore 存储网关接口（由 repository.MessageRepository 实现）
type MessageStore interface {
	AppendReading(ctx context.Context, m *models.StoredMessage) (int64, error)
	IsHealthy(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// Session 传输会话接口（由 mqttclient.Client 实现）
type Session interface {
	HandleConnect(fn func())
	Connect() error
	Subscribe(topicFilter string, qos byte, handler mqttclient.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTConsumer 摄取管线
// 订阅匹配全部的主题过滤器，逐条解码并持久化收到的消息；
// 消息按传输交付顺序单消费者同步处理，任何一条消息要么产生一行
// 存储记录，要么计入失败计数，绝不静默丢弃
type MQTTConsumer struct {
	config  *config.Config
	session Session
	store   MessageStore
	latest  *cache.LatestCache // 可为 nil（未配置 Redis 时）
	logger  *zap.Logger

	received  atomic.Uint64
	persisted atomic.Uint64
	failed    atomic.Uint64
}

// NewMQTTConsumer 创建摄取管线
func NewMQTTConsumer(
	cfg *config.Config,
	session Session,
	store MessageStore,
	latest *cache.LatestCache,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:  cfg,
		session: session,
		store:   store,
		latest:  latest,
		logger:  logger,
	}
}

// Start 启动摄取管线
// 存储不可达时直接失败返回（不开始消费，避免缓冲无法持久化的消息）；
// 订阅注册在连接回调里，重连后自动恢复
func (c *MQTTConsumer) Start(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.store.IsHealthy(healthCtx); err != nil {
		return fmt.Errorf("storage gateway not reachable at startup: %w", err)
	}

	filter := c.config.Ingestor.TopicFilter
	c.session.HandleConnect(func() {
		if err := c.session.Subscribe(filter, c.config.MQTT.QoS, c.handleMessage); err != nil {
			c.logger.Error("Failed to subscribe", zap.String("filter", filter), zap.Error(err))
			return
		}
		c.logger.Info("Subscribed to topic filter", zap.String("filter", filter))
	})

	if err := c.session.Connect(); err != nil {
		return fmt.Errorf("failed to connect MQTT session: %w", err)
	}

	c.logger.Info("Ingestion pipeline started")
	return nil
}

// Stop 停止摄取管线并报告累计计数
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.session.Unsubscribe(c.config.Ingestor.TopicFilter); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	counters := c.Counters()
	c.logger.Info("Ingestion pipeline stopped",
		zap.Uint64("received_total", counters.Received),
		zap.Uint64("persisted_total", counters.Persisted),
		zap.Uint64("failed_total", counters.Failed),
	)
	return nil
}

// Counters 返回计数器快照
func (c *MQTTConsumer) Counters() models.IngestionCounters {
	return models.IngestionCounters{
		Received:  c.received.Load(),
		Persisted: c.persisted.Load(),
		Failed:    c.failed.Load(),
	}
}

// handleMessage 处理单条消息
// 解码永不失败整条管线：非结构化载荷仍然入库，结构化字段为 NULL
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) {
	c.received.Add(1)

	row := &models.StoredMessage{
		Topic:      topic,
		Payload:    string(payload),
		ReceivedAt: time.Now(),
	}

	result := codec.Decode(payload)
	if result.Structured {
		if result.Reading.SensorID != "" {
			sensorID := result.Reading.SensorID
			row.SensorID = &sensorID
		}
		row.Value = result.Reading.Value
		if result.Reading.Unit != "" {
			unit := result.Reading.Unit
			row.Unit = &unit
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	id, err := c.appendWithRetry(ctx, row)
	if err != nil {
		failed := c.failed.Add(1)
		// 每条失败消息恰好一行操作员可读输出；消息不重新入队
		c.logger.Error("Failed to store message",
			zap.String("topic", topic),
			zap.Uint64("failed_total", failed),
			zap.Error(err),
		)
		return
	}

	persisted := c.persisted.Add(1)

	// 每条持久化消息恰好一行确认输出，带主题、已知的传感器与数值、累计总数
	fields := []zap.Field{
		zap.String("topic", topic),
		zap.Int64("row_id", id),
	}
	if row.SensorID != nil {
		fields = append(fields, zap.String("sensor_id", *row.SensorID))
	}
	if row.Value != nil {
		fields = append(fields, zap.Float64("value", *row.Value))
		if row.Unit != nil {
			fields = append(fields, zap.String("unit", *row.Unit))
		}
	}
	fields = append(fields, zap.Uint64("persisted_total", persisted))
	c.logger.Info("Stored message", fields...)

	// 热缓存尽力而为，失败只记警告，不影响持久化结果
	if c.latest != nil {
		if err := c.latest.SetLatest(ctx, topic, payload); err != nil {
			c.logger.Warn("Failed to update latest-reading cache", zap.Error(err))
		}
	}
}

// appendWithRetry 写入存储，失败时重连网关并恰好重试一次
// 至多一次重试：避免对故障数据库的重试风暴，重试仍失败则放弃该条消息
func (c *MQTTConsumer) appendWithRetry(ctx context.Context, row *models.StoredMessage) (int64, error) {
	id, err := c.store.AppendReading(ctx, row)
	if err == nil {
		return id, nil
	}

	c.logger.Warn("Append failed, attempting storage reconnect",
		zap.String("topic", row.Topic),
		zap.Error(err),
	)

	if rerr := c.store.Reconnect(ctx); rerr != nil {
		return 0, fmt.Errorf("append failed (%v) and reconnect failed: %w", err, rerr)
	}

	id, err = c.store.AppendReading(ctx, row)
	if err != nil {
		return 0, fmt.Errorf("append retry failed: %w", err)
	}
	return id, nil
}
