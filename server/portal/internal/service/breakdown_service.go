package service

import (
	"context"
	"errors"
	"fmt"

	"labfleet-ng/models/portal"
	"labfleet-ng/server/portal/internal/service/events"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BreakdownService 故障与备件重购生命周期服务
type BreakdownService struct {
	db           *gorm.DB
	alertService *AlertService
	directory    *DirectoryService
	eventManager *events.EventManager
	logger       *zap.Logger
}

// NewBreakdownService 创建故障生命周期服务
func NewBreakdownService(db *gorm.DB, alertService *AlertService, directory *DirectoryService,
	eventManager *events.EventManager, logger *zap.Logger) *BreakdownService {
	return &BreakdownService{
		db:           db,
		alertService: alertService,
		directory:    directory,
		eventManager: eventManager,
		logger:       logger,
	}
}

// ReportBreakdownDTO 人工上报故障的请求数据传输对象
type ReportBreakdownDTO struct {
	EquipmentCode string `json:"equipmentCode" binding:"required"` // 设备外部编码
	Reason        string `json:"reason" binding:"required"`        // 故障原因
}

// SubmitReorderDTO 提交备件重购申请的请求数据传输对象
type SubmitReorderDTO struct {
	BreakdownID   int64                 `json:"breakdownId" binding:"required"` // 父故障记录ID
	Quantity      int                   `json:"quantity"`                       // 数量，缺省为1
	Urgency       portal.ReorderUrgency `json:"urgency"`                        // 紧急程度，缺省为MEDIUM
	Reason        string                `json:"reason"`                         // 申请原因
	EstimatedCost float64               `json:"estimatedCost"`                  // 预估费用
}

// ReviewReorderDTO 审核备件申请的请求数据传输对象
type ReviewReorderDTO struct {
	ReorderID int64                `json:"reorderId" binding:"required"` // 备件申请ID
	Action    portal.ReorderStatus `json:"action" binding:"required"`    // 审核动作 APPROVED/REJECTED
	Comments  string               `json:"comments"`                     // 审核意见
}

// RespondToAlertDTO 对巡检告警的人工反馈
type RespondToAlertDTO struct {
	AlertID     int64  `json:"alertId" binding:"required"` // 告警ID
	IsBreakdown *bool  `json:"isBreakdown"`                // 是否确认为故障，必填
	Reason      string `json:"reason"`                     // 确认故障时的原因说明
}

// findEquipmentForActor 解析设备并做范围校验
func (s *BreakdownService) findEquipmentForActor(ctx context.Context, actor Actor, equipmentCode string) (*portal.Equipment, error) {
	var equipment portal.Equipment
	err := s.db.WithContext(ctx).Where("equipment_id = ?", equipmentCode).First(&equipment).Error
	if err != nil {
		return nil, HandleDBError(err, ResourceEquipment, equipmentCode)
	}
	if !actor.CanAccess(&equipment) {
		return nil, NewForbiddenError(MsgScopeForbidden)
	}
	return &equipment, nil
}

// ReportBreakdown 人工上报一台设备故障.
// 同一设备同一时间至多一条未关闭的故障记录，重复上报返回冲突；
// 记录创建与设备状态置为 FAULTY 在同一事务内完成。
func (s *BreakdownService) ReportBreakdown(ctx context.Context, actor Actor, dto *ReportBreakdownDTO) (*portal.BreakdownRecord, error) {
	return s.createBreakdown(ctx, actor, dto.EquipmentCode, dto.Reason, false)
}

func (s *BreakdownService) createBreakdown(ctx context.Context, actor Actor, equipmentCode, reason string, autoDetected bool) (*portal.BreakdownRecord, error) {
	equipment, err := s.findEquipmentForActor(ctx, actor, equipmentCode)
	if err != nil {
		return nil, err
	}

	record := portal.BreakdownRecord{
		EquipmentID:  equipment.ID,
		Status:       portal.BreakdownStatusReported,
		ReportedBy:   actor.Name,
		Reason:       reason,
		AutoDetected: autoDetected,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 事务内检查未关闭记录，避免并发双报
		var count int64
		err := tx.Model(&portal.BreakdownRecord{}).
			Where("equipment_id = ? AND status IN (?)", equipment.ID, portal.OpenBreakdownStatuses).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return NewConflictError(MsgBreakdownAlreadyOpen)
		}

		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		return tx.Model(&portal.EquipmentStatus{}).
			Where("equipment_id = ?", equipment.ID).
			Update("status", portal.EquipmentStatusFaulty).Error
	})
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			return nil, err
		}
		return nil, NewUnavailableError("failed to create breakdown record", err)
	}

	s.publishStatusChange(ctx, &record, EmptyString, portal.BreakdownStatusReported, actor.Name, reason)

	s.logger.Info("Breakdown reported",
		zap.Int64("breakdownID", record.ID),
		zap.String("equipmentCode", equipment.EquipmentID),
		zap.Bool("autoDetected", autoDetected),
		zap.String("reportedBy", actor.Name))

	return &record, nil
}

// RespondToAlert 处理对 BREAKDOWN_CHECK 告警的人工反馈.
// isBreakdown 必填：true 确认故障并自动建档，false 仅关闭告警；
// 两种反馈都会把告警标记为已处理。
func (s *BreakdownService) RespondToAlert(ctx context.Context, actor Actor, dto *RespondToAlertDTO) (*portal.BreakdownRecord, error) {
	if dto.IsBreakdown == nil {
		return nil, NewInvalidInputError(MsgIsBreakdownRequired)
	}

	var alert portal.Alert
	if err := s.db.WithContext(ctx).First(&alert, dto.AlertID).Error; err != nil {
		return nil, HandleDBError(err, ResourceAlert, dto.AlertID)
	}

	if _, err := s.alertService.ResolveAlert(ctx, alert.ID, actor.Name); err != nil {
		return nil, err
	}

	if !*dto.IsBreakdown {
		s.logger.Info("Alert dismissed as false positive",
			zap.Int64("alertID", alert.ID),
			zap.String("resolvedBy", actor.Name))
		return nil, nil
	}

	if alert.EquipmentID == nil {
		return nil, NewInvalidInputError("alert is not associated with equipment")
	}
	var equipment portal.Equipment
	if err := s.db.WithContext(ctx).First(&equipment, *alert.EquipmentID).Error; err != nil {
		return nil, HandleDBError(err, ResourceEquipment, *alert.EquipmentID)
	}

	reason := dto.Reason
	if reason == EmptyString {
		reason = MsgReasonAutoConfirmDefault
	}
	return s.createBreakdown(ctx, actor, equipment.EquipmentID, reason, true)
}

// SubmitReorder 为一条故障记录提交备件重购申请.
// 父记录必须处于未关闭状态；申请创建与父记录状态推进在同一事务内，
// 成功后通知全部策略级用户。
func (s *BreakdownService) SubmitReorder(ctx context.Context, actor Actor, dto *SubmitReorderDTO) (*portal.ReorderRequest, error) {
	var record portal.BreakdownRecord
	if err := s.db.WithContext(ctx).First(&record, dto.BreakdownID).Error; err != nil {
		return nil, HandleDBError(err, ResourceBreakdown, dto.BreakdownID)
	}
	if record.Status.IsTerminal() {
		return nil, NewConflictError(MsgBreakdownTerminal)
	}

	var equipment portal.Equipment
	if err := s.db.WithContext(ctx).First(&equipment, record.EquipmentID).Error; err != nil {
		return nil, HandleDBError(err, ResourceEquipment, record.EquipmentID)
	}
	if !actor.CanAccess(&equipment) {
		return nil, NewForbiddenError(MsgScopeForbidden)
	}

	quantity := dto.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	urgency := dto.Urgency
	if urgency == EmptyString {
		urgency = portal.ReorderUrgencyMedium
	}

	request := portal.ReorderRequest{
		BreakdownID:   record.ID,
		RequestedBy:   actor.Name,
		RequesterID:   actor.UserID,
		Quantity:      quantity,
		Urgency:       urgency,
		Reason:        dto.Reason,
		EstimatedCost: dto.EstimatedCost,
		Status:        portal.ReorderStatusPending,
	}

	oldStatus := record.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&request).Error; err != nil {
			return err
		}
		return tx.Model(&record).Update("status", portal.BreakdownStatusReorderPending).Error
	})
	if err != nil {
		return nil, NewUnavailableError("failed to submit reorder request", err)
	}
	record.Status = portal.BreakdownStatusReorderPending

	s.notifyPolicyLevel(ctx, &request, &equipment)
	s.publishStatusChange(ctx, &record, oldStatus, record.Status, actor.Name, dto.Reason)

	s.logger.Info("Reorder request submitted",
		zap.Int64("reorderID", request.ID),
		zap.Int64("breakdownID", record.ID),
		zap.String("urgency", string(request.Urgency)),
		zap.String("requestedBy", actor.Name))

	return &request, nil
}

// notifyPolicyLevel 通知全部策略级用户有新的备件申请待审
func (s *BreakdownService) notifyPolicyLevel(ctx context.Context, request *portal.ReorderRequest, equipment *portal.Equipment) {
	userIDs, err := s.directory.FindPolicyLevelUsers(ctx)
	if err != nil {
		s.logger.Error("Failed to resolve policy level users for reorder notification", zap.Error(err))
		return
	}
	message := fmt.Sprintf("设备 %s（%s）的备件申请待审核，数量 %d，紧急程度 %s",
		equipment.Name, equipment.EquipmentID, request.Quantity, request.Urgency)
	if err := s.alertService.NotifyUsers(ctx, userIDs, nil, TitleStatusChange, message); err != nil {
		s.logger.Error("Failed to notify policy level users", zap.Error(err))
	}
}

// ReviewReorder 审核一条备件重购申请.
// 只有策略级角色可以审核；申请必须处于 PENDING，重复审核返回冲突；
// 审核结果与父故障记录状态推进在同一事务内，随后通知申请人。
func (s *BreakdownService) ReviewReorder(ctx context.Context, actor Actor, dto *ReviewReorderDTO) (*portal.ReorderRequest, error) {
	if !actor.Role.IsPolicyLevel() {
		return nil, NewForbiddenError(MsgScopeForbidden)
	}
	if dto.Action != portal.ReorderStatusApproved && dto.Action != portal.ReorderStatusRejected {
		return nil, NewInvalidInputError(MsgInvalidReviewAction)
	}

	var request portal.ReorderRequest
	if err := s.db.WithContext(ctx).First(&request, dto.ReorderID).Error; err != nil {
		return nil, HandleDBError(err, ResourceReorder, dto.ReorderID)
	}
	if request.Status != portal.ReorderStatusPending {
		return nil, NewConflictError(MsgReorderAlreadyReviewed)
	}

	var record portal.BreakdownRecord
	if err := s.db.WithContext(ctx).First(&record, request.BreakdownID).Error; err != nil {
		return nil, HandleDBError(err, ResourceBreakdown, request.BreakdownID)
	}

	parentStatus := portal.BreakdownStatusReorderApproved
	if dto.Action == portal.ReorderStatusRejected {
		parentStatus = portal.BreakdownStatusReorderRejected
	}

	oldStatus := record.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&request).Updates(map[string]interface{}{
			"status":      dto.Action,
			"reviewed_by": actor.Name,
			"comments":    dto.Comments,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&record).Update("status", parentStatus).Error
	})
	if err != nil {
		return nil, NewUnavailableError("failed to review reorder request", err)
	}
	request.Status = dto.Action
	request.ReviewedBy = actor.Name
	request.Comments = dto.Comments
	record.Status = parentStatus

	message := fmt.Sprintf("您的备件申请（编号 %d）审核结果：%s", request.ID, dto.Action)
	if dto.Comments != EmptyString {
		message = fmt.Sprintf("%s，意见：%s", message, dto.Comments)
	}
	if err := s.alertService.NotifyUsers(ctx, []int64{request.RequesterID}, nil, TitleStatusChange, message); err != nil {
		s.logger.Error("Failed to notify reorder requester", zap.Error(err))
	}

	s.publishStatusChange(ctx, &record, oldStatus, parentStatus, actor.Name, dto.Comments)

	s.logger.Info("Reorder request reviewed",
		zap.Int64("reorderID", request.ID),
		zap.String("action", string(dto.Action)),
		zap.String("reviewedBy", actor.Name))

	return &request, nil
}

// ResolveBreakdown 关闭一条故障记录.
// 任何未关闭状态都可以直接进入 RESOLVED；设备状态同步恢复为 OPERATIONAL。
func (s *BreakdownService) ResolveBreakdown(ctx context.Context, actor Actor, breakdownID int64) (*portal.BreakdownRecord, error) {
	var record portal.BreakdownRecord
	if err := s.db.WithContext(ctx).First(&record, breakdownID).Error; err != nil {
		return nil, HandleDBError(err, ResourceBreakdown, breakdownID)
	}
	if record.Status.IsTerminal() {
		return nil, NewConflictError(MsgBreakdownTerminal)
	}

	var equipment portal.Equipment
	if err := s.db.WithContext(ctx).First(&equipment, record.EquipmentID).Error; err != nil {
		return nil, HandleDBError(err, ResourceEquipment, record.EquipmentID)
	}
	if !actor.CanAccess(&equipment) {
		return nil, NewForbiddenError(MsgScopeForbidden)
	}

	oldStatus := record.Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&record).Update("status", portal.BreakdownStatusResolved).Error; err != nil {
			return err
		}
		// 仍有 PENDING 子申请时一并取消
		err := tx.Model(&portal.ReorderRequest{}).
			Where("breakdown_id = ? AND status = ?", record.ID, portal.ReorderStatusPending).
			Update("status", portal.ReorderStatusCancelled).Error
		if err != nil {
			return err
		}
		return tx.Model(&portal.EquipmentStatus{}).
			Where("equipment_id = ?", record.EquipmentID).
			Update("status", portal.EquipmentStatusOperational).Error
	})
	if err != nil {
		return nil, NewUnavailableError("failed to resolve breakdown", err)
	}
	record.Status = portal.BreakdownStatusResolved

	s.publishStatusChange(ctx, &record, oldStatus, portal.BreakdownStatusResolved, actor.Name, EmptyString)

	s.logger.Info("Breakdown resolved",
		zap.Int64("breakdownID", record.ID),
		zap.String("resolvedBy", actor.Name))

	return &record, nil
}

// ListOpenBreakdowns 查询操作者可见范围内的未关闭故障记录
func (s *BreakdownService) ListOpenBreakdowns(ctx context.Context, actor Actor) ([]portal.BreakdownRecord, error) {
	db := s.db.WithContext(ctx).Model(&portal.BreakdownRecord{}).
		Where("breakdown_record.status IN (?)", portal.OpenBreakdownStatuses)
	if !actor.Role.IsPolicyLevel() {
		db = db.Joins("JOIN equipment ON equipment.id = breakdown_record.equipment_id").
			Where("equipment.institute = ? AND equipment.department = ?", actor.Institute, actor.Department)
	}

	var records []portal.BreakdownRecord
	if err := db.Order("breakdown_record.id DESC").Find(&records).Error; err != nil {
		return nil, NewUnavailableError("failed to list open breakdowns", err)
	}
	return records, nil
}

// ListReorderRequests 查询备件申请列表，statusFilter 为空时不过滤
func (s *BreakdownService) ListReorderRequests(ctx context.Context, actor Actor, statusFilter portal.ReorderStatus) ([]portal.ReorderRequest, error) {
	db := s.db.WithContext(ctx).Model(&portal.ReorderRequest{})
	if statusFilter != EmptyString {
		db = db.Where("status = ?", statusFilter)
	}
	if !actor.Role.IsPolicyLevel() {
		db = db.Where("requester_id = ?", actor.UserID)
	}

	var requests []portal.ReorderRequest
	if err := db.Order("id DESC").Find(&requests).Error; err != nil {
		return nil, NewUnavailableError("failed to list reorder requests", err)
	}
	return requests, nil
}

// publishStatusChange 派发故障状态变更事件
func (s *BreakdownService) publishStatusChange(ctx context.Context, record *portal.BreakdownRecord,
	oldStatus, newStatus portal.BreakdownStatus, operator, reason string) {
	if s.eventManager == nil {
		return
	}
	event := events.NewBreakdownStatusChangedEvent(events.BreakdownStatusChangeRequest{
		BreakdownID: record.ID,
		EquipmentID: record.EquipmentID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		Operator:    operator,
		Reason:      reason,
	})
	if err := s.eventManager.Publish(events.PublishRequest{Event: event, Ctx: ctx}); err != nil {
		s.logger.Error("Failed to publish breakdown status change event",
			zap.Int64("breakdownID", record.ID),
			zap.Error(err))
	}
}
