package portal

import "time"

// SensorReading 原始遥测读数，按时间追加写入.
type SensorReading struct {
	BaseModel
	EquipmentID       int64     `gorm:"column:equipment_id;index:idx_reading_equipment_time" json:"equipmentId"`      // 设备ID
	Temperature       float64   `gorm:"column:temperature;type:float" json:"temperature"`                             // 温度
	Vibration         float64   `gorm:"column:vibration;type:float" json:"vibration"`                                 // 振动
	EnergyConsumption float64   `gorm:"column:energy_consumption;type:float" json:"energy"`                           // 能耗
	RecordedAt        time.Time `gorm:"column:recorded_at;type:datetime;index:idx_reading_equipment_time" json:"recordedAt"` // 上报时间
}

// TableName 指定表名.
func (SensorReading) TableName() string {
	return "sensor_reading"
}
