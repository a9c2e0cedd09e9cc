package service

// 通用常量
const (
	EmptyString = ""
)

// 资源名称常量
const (
	ResourceEquipment = "equipment"
	ResourceAlert     = "alert"
	ResourceBreakdown = "breakdown record"
	ResourceReorder   = "reorder request"
	ResourceUser      = "user"
)

// 错误消息模板
const (
	ErrRecordNotFoundMsg = "%s with id %v not found"

	MsgEquipmentInactive        = "设备已停用，不再接收遥测数据"
	MsgBreakdownAlreadyOpen     = "该设备已在故障列表中"
	MsgBreakdownTerminal        = "故障记录已关闭，无法继续操作"
	MsgReorderAlreadyReviewed   = "备件申请已审核，不能重复审核"
	MsgScopeForbidden           = "当前角色无权访问该设备所属范围"
	MsgIsBreakdownRequired      = "isBreakdown 字段不能为空"
	MsgInvalidReviewAction      = "审核动作必须是 APPROVED 或 REJECTED"
	MsgSweepAlreadyRunning      = "闲置巡检正在执行中"
	MsgReasonAutoConfirmDefault = "confirmed via automatic check"
)

// 告警默认标题
const (
	TitleHighTemperature = "设备温度过高"
	TitleAbnormalVibration = "设备振动异常"
	TitleHighEnergy      = "设备能耗过高"
	TitleBreakdownCheck  = "设备疑似故障，请核查"
	TitleStatusChange    = "故障流程状态变更"
)
