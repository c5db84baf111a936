package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TopicCount 按主题统计的消息数
type TopicCount struct {
	Topic string
	Count int64
}

// TopicStats 单个主题的数值统计
type TopicStats struct {
	Topic string
	Count int64
	Avg   float64
	Min   float64
	Max   float64
}

// RecentMessage 最近收到的一条消息
type RecentMessage struct {
	ReceivedAt time.Time
	Topic      string
	SensorID   *string
	Value      *float64
	Unit       *string
}

// SensorCount 单个传感器的消息数
type SensorCount struct {
	SensorID string
	Count    int64
}

// StatsRepository 只读统计查询，供诊断报表使用
type StatsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatsRepository 创建统计仓库
func NewStatsRepository(db *sql.DB, logger *zap.Logger) *StatsRepository {
	return &StatsRepository{
		db:     db,
		logger: logger,
	}
}

// TotalMessages 消息总数
func (r *StatsRepository) TotalMessages(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mensajes_mqtt`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return total, nil
}

// CountByTopic 按主题统计消息数（按数量降序）
func (r *StatsRepository) CountByTopic(ctx context.Context) ([]TopicCount, error) {
	query := `
		SELECT topico, COUNT(*) AS cantidad
		FROM mensajes_mqtt
		GROUP BY topico
		ORDER BY cantidad DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by topic: %w", err)
	}
	defer rows.Close()

	var counts []TopicCount
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan topic count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate topic counts: %w", err)
	}

	return counts, nil
}

// RecentMessages 最近收到的 limit 条消息（按接收时间降序）
func (r *StatsRepository) RecentMessages(ctx context.Context, limit int) ([]RecentMessage, error) {
	query := `
		SELECT timestamp_recepcion, topico, sensor_id, valor_numerico, unidad
		FROM mensajes_mqtt
		ORDER BY timestamp_recepcion DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []RecentMessage
	for rows.Next() {
		var m RecentMessage
		var sensorID, unit sql.NullString
		var value sql.NullFloat64
		if err := rows.Scan(&m.ReceivedAt, &m.Topic, &sensorID, &value, &unit); err != nil {
			return nil, fmt.Errorf("failed to scan recent message: %w", err)
		}
		if sensorID.Valid {
			m.SensorID = &sensorID.String
		}
		if value.Valid {
			m.Value = &value.Float64
		}
		if unit.Valid {
			m.Unit = &unit.String
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent messages: %w", err)
	}

	return messages, nil
}

// NumericStatsByTopic 每个主题的数值统计（仅统计有数值的行）
func (r *StatsRepository) NumericStatsByTopic(ctx context.Context) ([]TopicStats, error) {
	query := `
		SELECT
			topico,
			COUNT(*) AS total,
			AVG(valor_numerico) AS promedio,
			MIN(valor_numerico) AS minimo,
			MAX(valor_numerico) AS maximo
		FROM mensajes_mqtt
		WHERE valor_numerico IS NOT NULL
		GROUP BY topico
		ORDER BY topico
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic stats: %w", err)
	}
	defer rows.Close()

	var stats []TopicStats
	for rows.Next() {
		var ts TopicStats
		if err := rows.Scan(&ts.Topic, &ts.Count, &ts.Avg, &ts.Min, &ts.Max); err != nil {
			return nil, fmt.Errorf("failed to scan topic stats: %w", err)
		}
		stats = append(stats, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate topic stats: %w", err)
	}

	return stats, nil
}

// TimeRange 消息的接收时间范围；表为空时 ok 为 false
func (r *StatsRepository) TimeRange(ctx context.Context) (first, last time.Time, ok bool, err error) {
	query := `
		SELECT MIN(timestamp_recepcion), MAX(timestamp_recepcion)
		FROM mensajes_mqtt
	`

	var nullFirst, nullLast sql.NullTime
	if err = r.db.QueryRowContext(ctx, query).Scan(&nullFirst, &nullLast); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to query time range: %w", err)
	}
	if !nullFirst.Valid || !nullLast.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	return nullFirst.Time, nullLast.Time, true, nil
}

// SensorCounts 检测到的传感器及其消息数（按数量降序）
func (r *StatsRepository) SensorCounts(ctx context.Context) ([]SensorCount, error) {
	query := `
		SELECT sensor_id, COUNT(*) AS mensajes
		FROM mensajes_mqtt
		WHERE sensor_id IS NOT NULL
		GROUP BY sensor_id
		ORDER BY mensajes DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor counts: %w", err)
	}
	defer rows.Close()

	var counts []SensorCount
	for rows.Next() {
		var sc SensorCount
		if err := rows.Scan(&sc.SensorID, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan sensor count: %w", err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sensor counts: %w", err)
	}

	return counts, nil
}
