package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/codec"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/generator"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/mqttclient"
)

// Publisher 发布端会话接口（由 mqttclient.Client 实现）
type Publisher interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// SimulatorService 传感器模拟器服务
// 固定周期循环，每周期为每类传感器发布一条读数；
// 发布是尽力而为的（至多一次，无投递确认），单条失败不影响其余传感器
type SimulatorService struct {
	config    *config.Config
	logger    *zap.Logger
	session   Publisher
	gen       *generator.Generator
	published uint64 // 累计成功发布数
	skipped   uint64 // 因断连而跳过的周期数
}

// NewSimulatorService 创建模拟器服务
func NewSimulatorService(cfg *config.Config, session Publisher, gen *generator.Generator, logger *zap.Logger) *SimulatorService {
	return &SimulatorService{
		config:  cfg,
		logger:  logger,
		session: session,
		gen:     gen,
	}
}

// Run 运行定时发布循环，直到 ctx 取消
// 周期不重叠：某周期超时的话，下一周期紧随其后开始，不并发执行
func (s *SimulatorService) Run(ctx context.Context) error {
	interval := s.config.Simulator.PublishInterval
	s.logger.Info("Simulator loop started",
		zap.String("device_id", s.config.Simulator.DeviceID),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulator loop stopped",
				zap.Uint64("published_total", s.published),
				zap.Uint64("skipped_cycles", s.skipped),
			)
			return nil
		case <-ticker.C:
			s.PublishCycle()
		}
	}
}

// PublishCycle 执行一个发布周期
// 会话未连接时整个周期跳过（不缓冲读数，避免积压），返回跳过标志；
// 否则逐条编码并发布，返回成功发布的条数
func (s *SimulatorService) PublishCycle() (published int, skipped bool) {
	if !s.session.IsConnected() {
		s.skipped++
		s.logger.Warn("MQTT session not connected, skipping publish cycle",
			zap.Uint64("skipped_cycles", s.skipped),
		)
		return 0, true
	}

	for _, reading := range s.gen.Cycle() {
		payload, err := codec.Encode(&reading)
		if err != nil {
			s.logger.Error("Failed to encode reading",
				zap.String("topic", reading.Topic),
				zap.Error(err),
			)
			continue
		}

		if err := s.session.Publish(reading.Topic, s.config.MQTT.QoS, false, payload); err != nil {
			// 单条发布失败不中断本周期其余传感器
			s.logger.Error("Failed to publish reading",
				zap.String("topic", reading.Topic),
				zap.Error(err),
			)
			continue
		}

		published++
		s.published++

		fields := []zap.Field{
			zap.String("topic", reading.Topic),
			zap.String("tipo", reading.Type),
		}
		if reading.Value != nil {
			fields = append(fields, zap.Float64("value", *reading.Value))
		}
		if reading.Unit != "" {
			fields = append(fields, zap.String("unit", reading.Unit))
		}
		if reading.State != "" {
			fields = append(fields, zap.String("state", reading.State))
		}
		fields = append(fields, zap.Uint64("published_total", s.published))
		s.logger.Info("Published reading", fields...)
	}

	return published, false
}

// PublishedTotal 累计成功发布数
func (s *SimulatorService) PublishedTotal() uint64 {
	return s.published
}

// 保证 mqttclient.Client 满足 Publisher 接口
var _ Publisher = (*mqttclient.Client)(nil)
