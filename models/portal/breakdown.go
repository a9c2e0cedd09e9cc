package portal

// BreakdownStatus 故障记录状态枚举.
type BreakdownStatus string

const (
	BreakdownStatusReported        BreakdownStatus = "REPORTED"         // 已上报
	BreakdownStatusReorderPending  BreakdownStatus = "REORDER_PENDING"  // 备件申请待审
	BreakdownStatusReorderApproved BreakdownStatus = "REORDER_APPROVED" // 备件申请已批准
	BreakdownStatusReorderRejected BreakdownStatus = "REORDER_REJECTED" // 备件申请被驳回（终态）
	BreakdownStatusResolved        BreakdownStatus = "RESOLVED"         // 已解决（终态）
)

// OpenBreakdownStatuses 未关闭的故障状态集合.
// 同一设备同一时间至多存在一条处于这些状态的记录。
var OpenBreakdownStatuses = []BreakdownStatus{
	BreakdownStatusReported,
	BreakdownStatusReorderPending,
	BreakdownStatusReorderApproved,
}

// IsTerminal 判断是否为终态.
func (s BreakdownStatus) IsTerminal() bool {
	return s == BreakdownStatusResolved || s == BreakdownStatusReorderRejected
}

// BreakdownRecord 设备故障记录.
type BreakdownRecord struct {
	BaseModel
	EquipmentID  int64           `gorm:"column:equipment_id;index" json:"equipmentId"`       // 设备ID
	Status       BreakdownStatus `gorm:"column:status;type:varchar(50);index" json:"status"` // 当前状态
	ReportedBy   string          `gorm:"column:reported_by;type:varchar(100)" json:"reportedBy"` // 上报人
	Reason       string          `gorm:"column:reason;type:text" json:"reason"`              // 故障原因
	AutoDetected bool            `gorm:"column:auto_detected;default:false" json:"autoDetected"` // 是否自动检测产生
}

// TableName 指定表名.
func (BreakdownRecord) TableName() string {
	return "breakdown_record"
}

// ReorderStatus 备件申请状态枚举.
type ReorderStatus string

const (
	ReorderStatusPending   ReorderStatus = "PENDING"   // 待审核
	ReorderStatusApproved  ReorderStatus = "APPROVED"  // 已批准（终态）
	ReorderStatusRejected  ReorderStatus = "REJECTED"  // 已驳回（终态）
	ReorderStatusCancelled ReorderStatus = "CANCELLED" // 已取消（终态）
)

// ReorderUrgency 备件申请紧急程度枚举.
type ReorderUrgency string

const (
	ReorderUrgencyHigh   ReorderUrgency = "HIGH"   // 紧急
	ReorderUrgencyMedium ReorderUrgency = "MEDIUM" // 一般
	ReorderUrgencyLow    ReorderUrgency = "LOW"    // 不急
)

// ReorderRequest 备件重购申请，属于一条故障记录.
type ReorderRequest struct {
	BaseModel
	BreakdownID   int64          `gorm:"column:breakdown_id;index" json:"breakdownId"`          // 父故障记录ID
	RequestedBy   string         `gorm:"column:requested_by;type:varchar(100)" json:"requestedBy"` // 申请人
	RequesterID   int64          `gorm:"column:requester_id" json:"requesterId"`                // 申请人用户ID
	Quantity      int            `gorm:"column:quantity;default:1" json:"quantity"`             // 数量
	Urgency       ReorderUrgency `gorm:"column:urgency;type:varchar(20)" json:"urgency"`        // 紧急程度
	Reason        string         `gorm:"column:reason;type:text" json:"reason"`                 // 申请原因
	EstimatedCost float64        `gorm:"column:estimated_cost;type:float" json:"estimatedCost"` // 预估费用
	Status        ReorderStatus  `gorm:"column:status;type:varchar(20);index" json:"status"`    // 当前状态
	ReviewedBy    string         `gorm:"column:reviewed_by;type:varchar(100)" json:"reviewedBy"` // 审核人
	Comments      string         `gorm:"column:comments;type:text" json:"comments"`             // 审核意见
}

// TableName 指定表名.
func (ReorderRequest) TableName() string {
	return "reorder_request"
}
