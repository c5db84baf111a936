package models

import "time"

// SensorReading 传感器读数 —— 贯穿整个系统的数据单元
// Topic 为层级主题字符串（如 "clima/temperatura"），不假定固定的主题集合
type SensorReading struct {
	SensorID   string    // 设备标识
	Topic      string    // MQTT 主题
	Type       string    // 传感器类型标签（tipo）
	Value      *float64  // 数值读数（纯事件类读数为 nil）
	Unit       string    // 单位（不适用时为空）
	State      string    // 状态标签（如 "abierta"/"cerrada"，可选）
	EmittedAt  time.Time // 生产端生成时间
	ReceivedAt time.Time // 订阅端接收时间（由摄取方写入）
}

// DeviceState 模拟器本地的二值设备状态（门、移动、手动报警）
// 只由生成器的每周期翻转规则修改，跨周期保留，不被其他组件读取
type DeviceState struct {
	DoorOpen       bool // 门是否打开
	MotionDetected bool // 是否检测到移动
	AlarmActive    bool // 手动报警是否激活
}

// StoredMessage mensajes_mqtt 表的一行
// 结构化解码失败时，Raw 仍然保存原始载荷，结构化字段为 nil
type StoredMessage struct {
	Topic      string
	Payload    string    // 原始载荷（UTF-8 文本）
	SensorID   *string   // 解码出的 sensor_id（可为空）
	Value      *float64  // 解码出的数值（可为空）
	Unit       *string   // 解码出的单位（可为空）
	OriginIP   *string   // 来源网络地址（可选）
	ReceivedAt time.Time // 接收时间戳
}

// IngestionCounters 摄取计数器快照
// 进程内单调递增，仅进程重启时清零
type IngestionCounters struct {
	Received  uint64 // 收到的消息总数
	Persisted uint64 // 成功持久化的消息数
	Failed    uint64 // 持久化失败的消息数
}
