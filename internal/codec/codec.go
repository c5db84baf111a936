package codec

import (
	"encoding/json"
	"time"

	"github.com/DanielAraqueStudios/taller-comunicaciones/internal/models"
)

// Message MQTT 消息的 JSON 线格式
// 与模拟器发布的载荷一一对应；缺失字段在编码时直接省略（omitempty），
// 而不是写入 null 占位符
type Message struct {
	SensorID  string   `json:"sensor_id,omitempty"`
	Type      string   `json:"tipo,omitempty"`
	Value     *float64 `json:"valor,omitempty"`
	Unit      string   `json:"unidad,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	State     string   `json:"estado,omitempty"`
}

// Result 解码结果
// Structured 为 false 时只有 Raw 有效（载荷无法按结构化格式解析）
type Result struct {
	Structured bool
	Reading    models.SensorReading
	Raw        []byte
}

// Encode 将读数编码为 JSON 载荷
// 时间戳使用 RFC3339 纳秒精度，往返解码无精度损失
func Encode(r *models.SensorReading) ([]byte, error) {
	msg := Message{
		SensorID: r.SensorID,
		Type:     r.Type,
		Value:    r.Value,
		Unit:     r.Unit,
		State:    r.State,
	}
	if !r.EmittedAt.IsZero() {
		msg.Timestamp = r.EmittedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(msg)
}

// Decode 尝试结构化解码任意载荷
// 任何解码失败（语法错误、字段类型不符）都降级为非结构化结果，
// 原始字节原样保留，绝不向调用方抛错
func Decode(payload []byte) Result {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Result{Structured: false, Raw: payload}
	}

	reading := models.SensorReading{
		SensorID: msg.SensorID,
		Type:     msg.Type,
		Value:    msg.Value,
		Unit:     msg.Unit,
		State:    msg.State,
	}
	if msg.Timestamp != "" {
		// 时间戳解析失败不影响结构化结果，其余字段照常使用
		if ts, err := parseTimestamp(msg.Timestamp); err == nil {
			reading.EmittedAt = ts
		}
	}

	return Result{Structured: true, Reading: reading, Raw: payload}
}

// parseTimestamp 解析生产端时间戳
// 兼容不带时区后缀的 ISO-8601 格式（历史模拟器版本）
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05.999999999", s)
}
