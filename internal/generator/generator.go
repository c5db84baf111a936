package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/config"
	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/models"
)

// 传感器类型标签（写入消息的 tipo 字段）
const (
	TypeTemperature = "temperatura"
	TypeHumidity    = "humedad"
	TypeSmoke       = "humo"
	TypeLight       = "luz"
	TypeWind        = "viento"
	TypeDoor        = "puerta"
	TypeMotion      = "movimiento"
	TypeAlarm       = "alarma_manual"
)

// SmokeAlertThreshold 烟雾报警阈值（超过则 estado 为 "alerta"）
const SmokeAlertThreshold = 50.0

// Generator 合成传感器读数生成器
// 每个发布周期为每类传感器产出一条读数；二值设备状态跨周期保留，
// 只由本生成器的翻转规则修改
type Generator struct {
	deviceID string
	topics   config.TopicsConfig
	rand     *rand.Rand
	now      func() time.Time
	state    models.DeviceState

	// 每周期状态转移概率，测试可覆盖
	DoorFlipProb   float64 // 门状态翻转概率
	MotionFlipProb float64 // 移动状态翻转概率
	AlarmOnProb    float64 // 报警激活概率（当前未激活时）
	AlarmOffProb   float64 // 报警解除概率（当前激活时）
	SmokeAlertProb float64 // 烟雾进入高量程的概率
}

// New 创建生成器（随机种子取当前时间）
func New(deviceID string, topics config.TopicsConfig) *Generator {
	return NewWithSource(deviceID, topics, rand.NewSource(time.Now().UnixNano()), time.Now)
}

// NewWithSource 创建生成器，随机源与时钟可注入（测试用）
func NewWithSource(deviceID string, topics config.TopicsConfig, src rand.Source, now func() time.Time) *Generator {
	return &Generator{
		deviceID:       deviceID,
		topics:         topics,
		rand:           rand.New(src),
		now:            now,
		DoorFlipProb:   0.10,
		MotionFlipProb: 0.15,
		AlarmOnProb:    0.02,
		AlarmOffProb:   0.50,
		SmokeAlertProb: 0.10,
	}
}

// State 返回当前设备状态快照
func (g *Generator) State() models.DeviceState {
	return g.state
}

// Temperature 模拟温度（15°C - 35°C，基线25）
func (g *Generator) Temperature() float64 {
	return round1(25.0 + g.uniform(-10.0, 10.0))
}

// Humidity 模拟湿度（30% - 90%，基线60，越界截断）
func (g *Generator) Humidity() float64 {
	return round1(clamp(30, 90, 60.0+g.uniform(-30.0, 30.0)))
}

// Smoke 模拟烟雾浓度及其状态标签
// 90% 的周期落在低量程 [0,15]，10% 落在报警量程 [50,100]；
// 超过阈值映射为 "alerta"，否则 "normal"
func (g *Generator) Smoke() (float64, string) {
	var value float64
	if g.rand.Float64() < g.SmokeAlertProb {
		value = round1(g.uniform(50, 100))
	} else {
		value = round1(g.uniform(0, 15))
	}
	state := "normal"
	if value > SmokeAlertThreshold {
		state = "alerta"
	}
	return value, state
}

// Light 模拟光照强度（白天 06:00-18:00 为 [60,100]，夜间 [0,30]）
func (g *Generator) Light() float64 {
	hour := g.now().Hour()
	if hour >= 6 && hour <= 18 {
		return round1(g.uniform(60, 100))
	}
	return round1(g.uniform(0, 30))
}

// Wind 模拟风速（0 - 50 km/h）
func (g *Generator) Wind() float64 {
	return round1(g.uniform(0, 50))
}

// Door 按周期概率翻转门状态，返回翻转后的状态
func (g *Generator) Door() bool {
	if g.rand.Float64() < g.DoorFlipProb {
		g.state.DoorOpen = !g.state.DoorOpen
	}
	return g.state.DoorOpen
}

// Motion 按周期概率翻转移动检测状态，返回翻转后的状态
func (g *Generator) Motion() bool {
	if g.rand.Float64() < g.MotionFlipProb {
		g.state.MotionDetected = !g.state.MotionDetected
	}
	return g.state.MotionDetected
}

// Alarm 模拟手动报警：未激活时按 AlarmOnProb 激活，
// 激活时按 AlarmOffProb 解除，返回本周期之后的状态
func (g *Generator) Alarm() bool {
	if !g.state.AlarmActive {
		if g.rand.Float64() < g.AlarmOnProb {
			g.state.AlarmActive = true
		}
	} else if g.rand.Float64() < g.AlarmOffProb {
		g.state.AlarmActive = false
	}
	return g.state.AlarmActive
}

// Cycle 生成一个发布周期内的全部读数
// 手动报警只在激活时产出读数；读数反映本周期状态翻转之后的值
func (g *Generator) Cycle() []models.SensorReading {
	now := g.now()
	readings := make([]models.SensorReading, 0, 8)

	readings = append(readings, g.numericReading(TypeTemperature, g.topics.Temperature, g.Temperature(), "°C", "", now))
	readings = append(readings, g.numericReading(TypeHumidity, g.topics.Humidity, g.Humidity(), "%", "", now))

	smoke, smokeState := g.Smoke()
	readings = append(readings, g.numericReading(TypeSmoke, g.topics.Smoke, smoke, "%", smokeState, now))

	readings = append(readings, g.numericReading(TypeLight, g.topics.Light, g.Light(), "%", "", now))
	readings = append(readings, g.numericReading(TypeWind, g.topics.Wind, g.Wind(), "km/h", "", now))

	doorState := "cerrada"
	if g.Door() {
		doorState = "abierta"
	}
	readings = append(readings, g.binaryReading(TypeDoor, g.topics.Door, g.state.DoorOpen, doorState, now))

	motionState := "sin_movimiento"
	if g.Motion() {
		motionState = "detectado"
	}
	readings = append(readings, g.binaryReading(TypeMotion, g.topics.Motion, g.state.MotionDetected, motionState, now))

	if g.Alarm() {
		readings = append(readings, g.binaryReading(TypeAlarm, g.topics.Alarm, true, "activada", now))
	}

	return readings
}

func (g *Generator) numericReading(tipo, topic string, value float64, unit, state string, now time.Time) models.SensorReading {
	v := value
	return models.SensorReading{
		SensorID:  g.deviceID,
		Topic:     topic,
		Type:      tipo,
		Value:     &v,
		Unit:      unit,
		State:     state,
		EmittedAt: now,
	}
}

func (g *Generator) binaryReading(tipo, topic string, on bool, state string, now time.Time) models.SensorReading {
	v := 0.0
	if on {
		v = 1.0
	}
	return models.SensorReading{
		SensorID:  g.deviceID,
		Topic:     topic,
		Type:      tipo,
		Value:     &v,
		State:     state,
		EmittedAt: now,
	}
}

// uniform [min,max) 区间均匀分布
func (g *Generator) uniform(min, max float64) float64 {
	return min + g.rand.Float64()*(max-min)
}

// round1 保留一位小数
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(min, max, v float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
