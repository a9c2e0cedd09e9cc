package portal

import "time"

// AlertType 告警类型枚举.
type AlertType string

const (
	AlertTypeHighTemperature   AlertType = "HIGH_TEMPERATURE"        // 温度过高
	AlertTypeAbnormalVibration AlertType = "ABNORMAL_VIBRATION"      // 振动异常
	AlertTypeHighEnergy        AlertType = "HIGH_ENERGY_CONSUMPTION" // 能耗过高
	AlertTypeBreakdownCheck    AlertType = "BREAKDOWN_CHECK"         // 疑似故障核查
	AlertTypeStatusChange      AlertType = "STATUS_CHANGE"           // 状态变更通知
)

// AlertSeverity 告警级别枚举.
type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "CRITICAL" // 严重
	AlertSeverityHigh     AlertSeverity = "HIGH"     // 高
	AlertSeverityMedium   AlertSeverity = "MEDIUM"   // 中
	AlertSeverityLow      AlertSeverity = "LOW"      // 低
)

// Alert 告警记录.
type Alert struct {
	BaseModel
	Type        AlertType     `gorm:"column:type;type:varchar(50);index" json:"type"`        // 告警类型
	Severity    AlertSeverity `gorm:"column:severity;type:varchar(20)" json:"severity"`      // 告警级别
	EquipmentID *int64        `gorm:"column:equipment_id;index" json:"equipmentId"`          // 关联设备ID（系统级告警为空）
	Title       string        `gorm:"column:title;type:varchar(255)" json:"title"`           // 标题
	Message     string        `gorm:"column:message;type:text" json:"message"`               // 内容
	Resolved    bool          `gorm:"column:resolved;default:false;index" json:"resolved"`   // 是否已处理
	ResolvedBy  string        `gorm:"column:resolved_by;type:varchar(100)" json:"resolvedBy"` // 处理人
	ResolvedAt  *time.Time    `gorm:"column:resolved_at;type:datetime" json:"resolvedAt"`    // 处理时间
}

// TableName 指定表名.
func (Alert) TableName() string {
	return "alert"
}
