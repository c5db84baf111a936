package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/generator"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/logger"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/mqttclient"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/service"
)

func main() {
	// 加载配置（配置错误在任何连接建立之前以非零状态退出）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "sensor-simulator")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// 同一设备可跑多个模拟器实例，client id 加唯一后缀避免互踢
	cfg.MQTT.ClientID = fmt.Sprintf("%s-%s", cfg.Simulator.DeviceID, uuid.NewString()[:8])

	zapLogger.Info("Starting sensor-simulator service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("device_id", cfg.Simulator.DeviceID),
		zap.String("client_id", cfg.MQTT.ClientID),
		zap.Duration("publish_interval", cfg.Simulator.PublishInterval),
	)

	session := mqttclient.NewClient(&cfg.MQTT, zapLogger)
	gen := generator.New(cfg.Simulator.DeviceID, cfg.Topics)
	simulator := service.NewSimulatorService(cfg, session, gen, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接与定时循环都在后台运行；broker 不可达时 paho 按固定间隔
	// 重试，循环在未连接的周期里整体跳过
	go func() {
		if err := session.Connect(); err != nil {
			zapLogger.Error("MQTT connect failed", zap.Error(err))
		}
	}()
	go func() {
		if err := simulator.Run(ctx); err != nil {
			zapLogger.Error("Simulator loop error", zap.Error(err))
		}
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	session.Disconnect()

	zapLogger.Info("Simulator stopped", zap.Uint64("published_total", simulator.PublishedTotal()))
}
