package service

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/generator"
)

// fakePublisher 发布端会话假实现，记录所有发布尝试
type fakePublisher struct {
	connected bool
	failTopic string // 该主题的发布调用返回错误
	attempts  []string
	payloads  [][]byte
}

func (f *fakePublisher) IsConnected() bool {
	return f.connected
}

func (f *fakePublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	f.attempts = append(f.attempts, topic)
	f.payloads = append(f.payloads, payload)
	if topic == f.failTopic {
		return errors.New("publish refused")
	}
	return nil
}

func newTestSimulator(t *testing.T, pub *fakePublisher) *SimulatorService {
	t.Helper()

	cfg := &config.Config{}
	cfg.Simulator.DeviceID = "SIMULATOR_01"
	cfg.Simulator.PublishInterval = time.Second
	cfg.Topics = config.TopicsConfig{
		Temperature: "clima/temperatura",
		Humidity:    "clima/humedad",
		Smoke:       "incendio/sensor_humo",
		Light:       "iluminacion/luz",
		Wind:        "clima/viento",
		Door:        "seguridad/puerta",
		Motion:      "seguridad/movimiento",
		Alarm:       "incendio/alarma",
	}

	gen := generator.NewWithSource("SIMULATOR_01", cfg.Topics, rand.NewSource(42), time.Now)
	gen.AlarmOnProb = 0.0 // 固定 7 条读数，周期内容可预测

	return NewSimulatorService(cfg, pub, gen, zap.NewNop())
}

func TestPublishCycle_SkipsWhenDisconnected(t *testing.T) {
	pub := &fakePublisher{connected: false}
	s := newTestSimulator(t, pub)

	published, skipped := s.PublishCycle()

	// 断连时整个周期跳过：零发布尝试，返回跳过标志
	assert.True(t, skipped)
	assert.Equal(t, 0, published)
	assert.Empty(t, pub.attempts)
	assert.Equal(t, uint64(0), s.PublishedTotal())
}

func TestPublishCycle_PublishesAllSensors(t *testing.T) {
	pub := &fakePublisher{connected: true}
	s := newTestSimulator(t, pub)

	published, skipped := s.PublishCycle()

	assert.False(t, skipped)
	assert.Equal(t, 7, published)
	assert.Len(t, pub.attempts, 7)
	assert.Equal(t, uint64(7), s.PublishedTotal())

	// 每条载荷都是合法 JSON（以 '{' 开头足以捕捉编码缺陷）
	for _, p := range pub.payloads {
		require.NotEmpty(t, p)
		assert.Equal(t, byte('{'), p[0])
	}
}

func TestPublishCycle_SingleFailureDoesNotAbortCycle(t *testing.T) {
	pub := &fakePublisher{connected: true, failTopic: "clima/humedad"}
	s := newTestSimulator(t, pub)

	published, skipped := s.PublishCycle()

	// 单条失败不影响其余传感器：全部 7 条都有发布尝试，6 条成功
	assert.False(t, skipped)
	assert.Equal(t, 6, published)
	assert.Len(t, pub.attempts, 7)
	assert.Contains(t, pub.attempts, "clima/humedad")
}

func TestPublishCycle_CumulativeCount(t *testing.T) {
	pub := &fakePublisher{connected: true}
	s := newTestSimulator(t, pub)

	s.PublishCycle()
	s.PublishCycle()

	assert.Equal(t, uint64(14), s.PublishedTotal())
}
