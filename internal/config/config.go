package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置（Addr 为空表示禁用热缓存）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// TopicsConfig 模拟器默认发布主题
// 主题只是层级字符串，摄取方不假定这是封闭集合
type TopicsConfig struct {
	Temperature string
	Humidity    string
	Smoke       string
	Light       string
	Wind        string
	Door        string
	Motion      string
	Alarm       string
}

// Config 进程配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig
	Topics   TopicsConfig

	// 模拟器配置
	Simulator struct {
		DeviceID        string        // 设备标识（写入 sensor_id）
		PublishInterval time.Duration // 发布周期
	}

	// 摄取服务配置
	Ingestor struct {
		TopicFilter string        // 订阅过滤器，默认匹配所有主题
		CacheTTL    time.Duration // 最近读数热缓存 TTL
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 从环境变量加载配置
// 配置错误（凭据只设置一半、数值无法解析）直接返回错误，
// 由 main 在任何连接建立之前以非零状态退出
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	port, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.Database.Port = port
	cfg.Database.User = getEnv("DB_USER", "mqtt_admin")
	cfg.Database.Password = getEnv("DB_PASSWORD", "mqtt_secure_2025")
	cfg.Database.Database = getEnv("DB_NAME", "mqtt_taller")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = normalizeBroker(getEnv("MQTT_BROKER", "localhost"), getEnv("MQTT_PORT", "1883"))
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "suscriptor_admin")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 0

	// 凭据必须成对出现，否则视为配置错误
	if (cfg.MQTT.Username == "") != (cfg.MQTT.Password == "") {
		return nil, fmt.Errorf("MQTT_USERNAME and MQTT_PASSWORD must be set together")
	}

	cfg.Topics.Temperature = getEnv("TOPIC_TEMPERATURA", "clima/temperatura")
	cfg.Topics.Humidity = getEnv("TOPIC_HUMEDAD", "clima/humedad")
	cfg.Topics.Smoke = getEnv("TOPIC_HUMO", "incendio/sensor_humo")
	cfg.Topics.Light = getEnv("TOPIC_LUZ", "iluminacion/luz")
	cfg.Topics.Wind = getEnv("TOPIC_VIENTO", "clima/viento")
	cfg.Topics.Door = getEnv("TOPIC_PUERTA", "seguridad/puerta")
	cfg.Topics.Motion = getEnv("TOPIC_MOVIMIENTO", "seguridad/movimiento")
	cfg.Topics.Alarm = getEnv("TOPIC_ALARMA", "incendio/alarma")

	cfg.Simulator.DeviceID = getEnv("DEVICE_ID", "SIMULATOR_01")
	interval, err := getEnvDuration("PUBLISH_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("PUBLISH_INTERVAL must be positive, got %s", interval)
	}
	cfg.Simulator.PublishInterval = interval

	cfg.Ingestor.TopicFilter = getEnv("INGEST_TOPIC_FILTER", "#")
	cacheTTL, err := getEnvDuration("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.Ingestor.CacheTTL = cacheTTL

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// normalizeBroker 组装 paho 可接受的 broker URL
// 允许 MQTT_BROKER 只写主机名（默认端口 1883），也允许写完整 URL
func normalizeBroker(broker, port string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	if strings.Contains(broker, ":") {
		return "tcp://" + broker
	}
	return fmt.Sprintf("tcp://%s:%s", broker, port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a number", key, value)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	// 裸数字按秒解释（与历史配置兼容）
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a duration", key, value)
	}
	return d, nil
}
