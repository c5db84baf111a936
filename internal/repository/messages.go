package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/models"
)

// MessageRepository mensajes_mqtt 表仓库
// 系统中唯一允许接触关系库的组件；表结构由部署脚本预先建立，
// 这里只执行 INSERT 与只读查询
type MessageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *sql.DB, logger *zap.Logger) *MessageRepository {
	return &MessageRepository{
		db:     db,
		logger: logger,
	}
}

// AppendReading 插入一行消息记录，返回自增 id
// 不做去重：同一逻辑消息重复插入会产生两行（重试语义为至多一次重试，
// 去重不是本系统的目标）
func (r *MessageRepository) AppendReading(ctx context.Context, m *models.StoredMessage) (int64, error) {
	query := `
		INSERT INTO mensajes_mqtt (
			topico,
			mensaje,
			sensor_id,
			valor_numerico,
			unidad,
			ip_origen,
			timestamp_recepcion
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(
		ctx,
		query,
		m.Topic,
		m.Payload,
		m.SensorID,
		m.Value,
		m.Unit,
		m.OriginIP,
		m.ReceivedAt,
	).Scan(&id)

	if err != nil {
		return 0, fmt.Errorf("failed to insert mensajes_mqtt: %w", err)
	}

	return id, nil
}

// IsHealthy 轻量存活检查（摄取服务启动前与重连后调用）
func (r *MessageRepository) IsHealthy(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}

// Reconnect 重建存储连接
// database/sql 连接池在 Ping 成功后即可继续使用；重试策略属于
// 摄取管线，仓库本身不重试
func (r *MessageRepository) Reconnect(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reconnect to database: %w", err)
	}
	r.logger.Info("Database connection re-established")
	return nil
}
