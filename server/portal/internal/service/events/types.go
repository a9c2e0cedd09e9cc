package events

import (
	"time"

	"labfleet-ng/models/portal"
)

// 事件类型常量
const (
	// 遥测异常检测相关事件
	EventTypeAlertCandidate = "telemetry.alert.candidate"

	// 告警相关事件
	EventTypeAlertCreated  = "alert.created"
	EventTypeAlertResolved = "alert.resolved"

	// 故障流程相关事件
	EventTypeBreakdownStatusChanged = "breakdown.status.changed"
)

// BaseEvent 基础事件结构
type BaseEvent struct {
	EventType string      `json:"event_type"`
	EventData interface{} `json:"event_data"`
	EventTime time.Time   `json:"event_time"`
	Source    string      `json:"source"`
}

func (e *BaseEvent) Type() string {
	return e.EventType
}

func (e *BaseEvent) Data() interface{} {
	return e.EventData
}

func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// AlertCandidateEvent 异常检测产生的候选告警事件.
// 由遥测链路异步派发，处理失败只记录日志，不回传给上报方。
type AlertCandidateEvent struct {
	BaseEvent
	EquipmentID   int64                `json:"equipment_id"`
	EquipmentCode string               `json:"equipment_code"`
	AlertType     portal.AlertType     `json:"alert_type"`
	Severity      portal.AlertSeverity `json:"severity"`
	Title         string               `json:"title"`
	Message       string               `json:"message"`
}

// AlertCandidateRequest 候选告警事件创建请求
type AlertCandidateRequest struct {
	EquipmentID   int64
	EquipmentCode string
	AlertType     portal.AlertType
	Severity      portal.AlertSeverity
	Title         string
	Message       string
}

func NewAlertCandidateEvent(req AlertCandidateRequest) *AlertCandidateEvent {
	event := &AlertCandidateEvent{
		BaseEvent: BaseEvent{
			EventType: EventTypeAlertCandidate,
			EventTime: time.Now(),
			Source:    "telemetry_service",
		},
		EquipmentID:   req.EquipmentID,
		EquipmentCode: req.EquipmentCode,
		AlertType:     req.AlertType,
		Severity:      req.Severity,
		Title:         req.Title,
		Message:       req.Message,
	}
	event.BaseEvent.EventData = event
	return event
}

// BreakdownStatusChangedEvent 故障记录状态变更事件
type BreakdownStatusChangedEvent struct {
	BaseEvent
	BreakdownID int64                  `json:"breakdown_id"`
	EquipmentID int64                  `json:"equipment_id"`
	OldStatus   portal.BreakdownStatus `json:"old_status"`
	NewStatus   portal.BreakdownStatus `json:"new_status"`
	Operator    string                 `json:"operator"`
	Reason      string                 `json:"reason"`
}

// BreakdownStatusChangeRequest 故障状态变更事件创建请求
type BreakdownStatusChangeRequest struct {
	BreakdownID int64
	EquipmentID int64
	OldStatus   portal.BreakdownStatus
	NewStatus   portal.BreakdownStatus
	Operator    string
	Reason      string
}

func NewBreakdownStatusChangedEvent(req BreakdownStatusChangeRequest) *BreakdownStatusChangedEvent {
	event := &BreakdownStatusChangedEvent{
		BaseEvent: BaseEvent{
			EventType: EventTypeBreakdownStatusChanged,
			EventTime: time.Now(),
			Source:    "breakdown_service",
		},
		BreakdownID: req.BreakdownID,
		EquipmentID: req.EquipmentID,
		OldStatus:   req.OldStatus,
		NewStatus:   req.NewStatus,
		Operator:    req.Operator,
		Reason:      req.Reason,
	}
	event.BaseEvent.EventData = event
	return event
}
