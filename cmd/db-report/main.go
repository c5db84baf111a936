package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/cache"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/repository"
)

// db-report 打印 mensajes_mqtt 表的诊断统计
// 只执行只读聚合查询；配置了 REDIS_ADDR 时附带各主题的最新缓存读数
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := repository.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	statsRepo := repository.NewStatsRepository(db, zap.NewNop())
	ctx := context.Background()

	line := strings.Repeat("=", 70)
	fmt.Println(line)
	fmt.Printf("REPORTE DE BASE DE DATOS - %s @ %s\n", cfg.Database.Database, cfg.Database.Host)
	fmt.Println(line)

	total, err := statsRepo.TotalMessages(ctx)
	if err != nil {
		log.Fatalf("Failed to count messages: %v", err)
	}
	fmt.Printf("\nTotal de mensajes guardados: %d\n", total)

	topicCounts, err := statsRepo.CountByTopic(ctx)
	if err != nil {
		log.Fatalf("Failed to count by topic: %v", err)
	}
	fmt.Println("\nMensajes por topico:")
	for _, tc := range topicCounts {
		fmt.Printf("   %-30s %6d\n", tc.Topic, tc.Count)
	}

	recent, err := statsRepo.RecentMessages(ctx, 10)
	if err != nil {
		log.Fatalf("Failed to query recent messages: %v", err)
	}
	fmt.Println("\nUltimos 10 mensajes recibidos:")
	for _, m := range recent {
		sensor := "-"
		if m.SensorID != nil {
			sensor = *m.SensorID
		}
		value := "-"
		if m.Value != nil {
			value = fmt.Sprintf("%.1f", *m.Value)
			if m.Unit != nil {
				value += " " + *m.Unit
			}
		}
		fmt.Printf("   [%s] %-25s %-15s %s\n",
			m.ReceivedAt.Format("15:04:05"), m.Topic, sensor, value)
	}

	stats, err := statsRepo.NumericStatsByTopic(ctx)
	if err != nil {
		log.Fatalf("Failed to query topic stats: %v", err)
	}
	fmt.Println("\nEstadisticas por topico (solo valores numericos):")
	fmt.Printf("   %-30s %8s %10s %8s %8s\n", "Topico", "Total", "Promedio", "Min", "Max")
	for _, ts := range stats {
		fmt.Printf("   %-30s %8d %10.1f %8.1f %8.1f\n", ts.Topic, ts.Count, ts.Avg, ts.Min, ts.Max)
	}

	first, last, ok, err := statsRepo.TimeRange(ctx)
	if err != nil {
		log.Fatalf("Failed to query time range: %v", err)
	}
	if ok {
		fmt.Println("\nRango temporal:")
		fmt.Printf("   Primer mensaje: %s\n", first.Format("2006-01-02 15:04:05"))
		fmt.Printf("   Ultimo mensaje: %s\n", last.Format("2006-01-02 15:04:05"))
		fmt.Printf("   Duracion:       %s\n", last.Sub(first).Round(time.Second))
	}

	sensors, err := statsRepo.SensorCounts(ctx)
	if err != nil {
		log.Fatalf("Failed to query sensor counts: %v", err)
	}
	fmt.Println("\nSensores detectados:")
	for _, sc := range sensors {
		fmt.Printf("   %-20s %6d mensajes\n", sc.SensorID, sc.Count)
	}

	// 可选：热缓存里的各主题最新读数
	if cfg.Redis.Addr != "" {
		printLatestReadings(ctx, cfg)
	}

	fmt.Println("\n" + line)
	fmt.Println("Consulta completada")
	fmt.Println(line)
}

// printLatestReadings 打印热缓存中各默认主题的最新载荷
func printLatestReadings(ctx context.Context, cfg *config.Config) {
	redisClient := cache.NewRedisClient(&cfg.Redis)
	defer redisClient.Close()

	if err := cache.Ping(ctx, redisClient); err != nil {
		fmt.Printf("\nCache no disponible: %v\n", err)
		return
	}

	latest := cache.NewLatestCache(redisClient, cfg.Ingestor.CacheTTL)
	topics := []string{
		cfg.Topics.Temperature,
		cfg.Topics.Humidity,
		cfg.Topics.Smoke,
		cfg.Topics.Light,
		cfg.Topics.Wind,
		cfg.Topics.Door,
		cfg.Topics.Motion,
		cfg.Topics.Alarm,
	}

	fmt.Println("\nUltima lectura en cache por topico:")
	for _, topic := range topics {
		payload, err := latest.GetLatest(ctx, topic)
		if err != nil {
			fmt.Printf("   %-30s (sin datos)\n", topic)
			continue
		}
		fmt.Printf("   %-30s %s\n", topic, string(payload))
	}
}
