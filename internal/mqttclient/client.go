package mqttclient

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
)

// ConnectionState 会话连接状态
// 状态机：Disconnected → Connecting → Connected；传输层掉线后自动进入
// Reconnecting（paho 内部驱动重连），拥有者只观察状态，不驱动重连
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// MessageHandler 消息处理函数类型
// 消息按底层传输交付顺序逐条调用（单一主题单一发布者内有序）
type MessageHandler func(topic string, payload []byte)

// Client MQTT客户端封装
// 独占底层连接句柄；连接状态变化只通过 State() 暴露给拥有者
type Client struct {
	client    mqtt.Client
	config    *config.MQTTConfig
	logger    *zap.Logger
	state     atomic.Int32
	onConnect func()

	mu   sync.Mutex
	subs map[string]bool // 已订阅过滤器，保证重复订阅是空操作
}

// NewClient 创建MQTT客户端（不建立连接，调用 Connect 启动）
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) *Client {
	c := &Client{
		config: cfg,
		logger: logger,
		subs:   make(map[string]bool),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	// 凭据成对提供才启用认证（配置层已拒绝只设置一半的情况）
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.state.Store(int32(StateConnected))
		c.logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
		// CleanSession 下重连会丢失订阅，连接回调内重新注册
		if c.onConnect != nil {
			c.onConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.state.Store(int32(StateReconnecting))
		c.mu.Lock()
		c.subs = make(map[string]bool)
		c.mu.Unlock()
		c.logger.Warn("MQTT connection lost, reconnecting", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.state.Store(int32(StateReconnecting))
	})

	c.client = mqtt.NewClient(opts)
	return c
}

// HandleConnect 注册连接建立后的回调（初次连接与每次重连都会触发）
// 必须在 Connect 之前注册
func (c *Client) HandleConnect(fn func()) {
	c.onConnect = fn
}

// Connect 建立连接，阻塞直到首次连接成功
// 连接被拒绝时由 paho 按固定间隔重试，进程不退出
func (c *Client) Connect() error {
	c.state.Store(int32(StateConnecting))
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

// Subscribe 订阅主题过滤器（支持层级通配符，含匹配全部的 "#"）
// 对同一过滤器重复调用是空操作
func (c *Client) Subscribe(topicFilter string, qos byte, handler MessageHandler) error {
	c.mu.Lock()
	if c.subs[topicFilter] {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if token := c.client.Subscribe(topicFilter, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	}); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topicFilter, token.Error())
	}

	c.mu.Lock()
	c.subs[topicFilter] = true
	c.mu.Unlock()
	return nil
}

// Publish 发布消息（尽力而为，不等待broker端持久化确认）
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	token := c.client.Unsubscribe(topics...)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe: %w", token.Error())
	}

	c.mu.Lock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	c.mu.Unlock()
	return nil
}

// Disconnect 断开连接（等待在途消息最多250ms）
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.state.Store(int32(StateDisconnected))
}

// State 返回当前连接状态（只读观察）
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsConnected 检查会话是否处于已连接状态
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}
