package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/cache"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/consumer"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/models"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/mqttclient"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/repository"
)

// IngestorService 摄取服务
// 组装存储网关、传输会话与摄取管线；关系连接只由仓库持有，
// MQTT 连接句柄只由会话持有
type IngestorService struct {
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	session     *mqttclient.Client
	consumer    *consumer.MQTTConsumer
}

// NewIngestorService 创建摄取服务
// 存储不可达时在此直接失败（fail fast），不建立 MQTT 连接
func NewIngestorService(cfg *config.Config, logger *zap.Logger) (*IngestorService, error) {
	db, err := repository.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 热缓存可选：未配置 REDIS_ADDR 时不启用
	var redisClient *redis.Client
	var latest *cache.LatestCache
	if cfg.Redis.Addr != "" {
		redisClient = cache.NewRedisClient(&cfg.Redis)
		if err := cache.Ping(context.Background(), redisClient); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		latest = cache.NewLatestCache(redisClient, cfg.Ingestor.CacheTTL)
	}

	session := mqttclient.NewClient(&cfg.MQTT, logger)
	messageRepo := repository.NewMessageRepository(db, logger)
	mqttConsumer := consumer.NewMQTTConsumer(cfg, session, messageRepo, latest, logger)

	return &IngestorService{
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
		session:     session,
		consumer:    mqttConsumer,
	}, nil
}

// Start 启动服务
func (s *IngestorService) Start(ctx context.Context) error {
	s.logger.Info("Starting ingestor service components")

	if err := s.consumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MQTT consumer: %w", err)
	}

	s.logger.Info("Ingestor service started successfully")
	return nil
}

// Stop 停止服务
// 先停消费者（报告累计计数），再断开传输与存储；
// 在途的数据库写入在断开前完成或失败，不会产生半写入的行
func (s *IngestorService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping ingestor service")

	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping consumer", zap.Error(err))
		}
	}

	if s.session != nil {
		s.session.Disconnect()
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := repository.Close(s.db); err != nil {
			s.logger.Error("Error closing database", zap.Error(err))
		}
	}

	s.logger.Info("Ingestor service stopped")
	return nil
}

// Counters 当前摄取计数器快照
func (s *IngestorService) Counters() models.IngestionCounters {
	return s.consumer.Counters()
}
