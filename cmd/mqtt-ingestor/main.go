package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/logger"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/service"
)

func main() {
	// 加载配置（配置错误在任何连接建立之前以非零状态退出）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化Logger
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "mqtt-ingestor")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting mqtt-ingestor service",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("topic_filter", cfg.Ingestor.TopicFilter),
		zap.String("database", cfg.Database.Database),
	)

	// 创建服务（存储不可达时 fail fast）
	ingestorService, err := service.NewIngestorService(cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create ingestor service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ingestorService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start ingestor service", zap.Error(err))
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	cancel()
	if err := ingestorService.Stop(ctx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Service stopped")
}
