package portal

import "time"

// EquipmentStatusValue 设备运行状态枚举.
type EquipmentStatusValue string

const (
	EquipmentStatusOperational EquipmentStatusValue = "OPERATIONAL" // 正常可用
	EquipmentStatusInUse       EquipmentStatusValue = "IN_USE"      // 使用中
	EquipmentStatusInClass     EquipmentStatusValue = "IN_CLASS"    // 教学占用
	EquipmentStatusIdle        EquipmentStatusValue = "IDLE"        // 闲置
	EquipmentStatusMaintenance EquipmentStatusValue = "MAINTENANCE" // 维护中
	EquipmentStatusFaulty      EquipmentStatusValue = "FAULTY"      // 故障
	EquipmentStatusOffline     EquipmentStatusValue = "OFFLINE"     // 离线
	EquipmentStatusWarning     EquipmentStatusValue = "WARNING"     // 告警
)

// EquipmentStatus 设备最新状态，与设备一对一.
type EquipmentStatus struct {
	BaseModel
	EquipmentID       int64                `gorm:"column:equipment_id;uniqueIndex" json:"equipmentId"`      // 设备ID（内部主键）
	Status            EquipmentStatusValue `gorm:"column:status;type:varchar(50)" json:"status"`            // 当前状态
	HealthScore       float64              `gorm:"column:health_score;type:float" json:"healthScore"`       // 健康分
	Temperature       float64              `gorm:"column:temperature;type:float" json:"temperature"`        // 最近温度
	Vibration         float64              `gorm:"column:vibration;type:float" json:"vibration"`            // 最近振动
	EnergyConsumption float64              `gorm:"column:energy_consumption;type:float" json:"energy"`      // 最近能耗
	LastUsedAt        time.Time            `gorm:"column:last_used_at;type:datetime;index" json:"lastUsedAt"` // 最后使用时间
}

// TableName 指定表名.
func (EquipmentStatus) TableName() string {
	return "equipment_status"
}
