package portal

// Equipment 实验设备信息.
type Equipment struct {
	BaseModel
	EquipmentID string `gorm:"column:equipment_id;type:varchar(100);uniqueIndex" json:"equipmentId"` // 设备外部编码
	Name        string `gorm:"column:name;type:varchar(255)" json:"name"`                            // 设备名称
	Model       string `gorm:"column:model;type:varchar(100)" json:"model"`                          // 型号
	Institute   string `gorm:"column:institute;type:varchar(100);index" json:"institute"`            // 所属学院
	Department  string `gorm:"column:department;type:varchar(100);index" json:"department"`          // 所属系部
	Lab         string `gorm:"column:lab;type:varchar(100)" json:"lab"`                              // 所属实验室
	Active      bool   `gorm:"column:active;default:true" json:"active"`                             // 是否在用（逻辑删除标记）
}

// TableName 指定表名.
func (Equipment) TableName() string {
	return "equipment"
}
