package portal

// Notification 用户通知，随父告警原子创建.
type Notification struct {
	BaseModel
	UserID  int64  `gorm:"column:user_id;index" json:"userId"`          // 接收用户ID
	AlertID *int64 `gorm:"column:alert_id;index" json:"alertId"`        // 关联告警ID（可为空）
	Title   string `gorm:"column:title;type:varchar(255)" json:"title"` // 标题
	Message string `gorm:"column:message;type:text" json:"message"`     // 内容
	Read    bool   `gorm:"column:read;default:false" json:"read"`       // 是否已读
}

// TableName 指定表名.
func (Notification) TableName() string {
	return "notification"
}
