package service

import (
	"context"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/server/portal/internal/service/events"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TelemetryService 遥测接入与异常检测服务
type TelemetryService struct {
	db           *gorm.DB
	eventManager *events.EventManager
	logger       *zap.Logger
}

// TelemetryReportDTO 设备遥测上报数据传输对象
type TelemetryReportDTO struct {
	EquipmentID string `json:"equipmentId" binding:"required"` // 设备外部编码
	TelemetryMetrics
}

// EquipmentStatusDTO 设备状态响应数据传输对象
type EquipmentStatusDTO struct {
	EquipmentID       string                      `json:"equipmentId"` // 设备外部编码
	Status            portal.EquipmentStatusValue `json:"status"`      // 当前状态
	HealthScore       float64                     `json:"healthScore"` // 健康分
	Temperature       float64                     `json:"temperature"` // 最近温度
	Vibration         float64                     `json:"vibration"`   // 最近振动
	EnergyConsumption float64                     `json:"energy"`      // 最近能耗
	LastUsedAt        time.Time                   `json:"lastUsedAt"`  // 最后使用时间
	AnomalyCount      int                         `json:"anomalyCount"` // 本次命中规则数
}

// NewTelemetryService 创建遥测服务
func NewTelemetryService(db *gorm.DB, eventManager *events.EventManager, logger *zap.Logger) *TelemetryService {
	return &TelemetryService{
		db:           db,
		eventManager: eventManager,
		logger:       logger,
	}
}

// ReportTelemetry 处理一次设备遥测上报.
// 状态更新与读数落库成功即向上报方返回成功；
// 异常检测产生的告警经事件总线异步派发，派发失败只记录日志。
func (s *TelemetryService) ReportTelemetry(ctx context.Context, report *TelemetryReportDTO) (*EquipmentStatusDTO, error) {
	// 按外部编码解析设备，不存在或已停用都视为未找到
	var equipment portal.Equipment
	err := s.db.WithContext(ctx).
		Where("equipment_id = ?", report.EquipmentID).
		First(&equipment).Error
	if err != nil {
		return nil, HandleDBError(err, ResourceEquipment, report.EquipmentID)
	}
	if !equipment.Active {
		return nil, NewNotFoundError(ResourceEquipment, report.EquipmentID)
	}

	// 先评估规则，状态与健康分由本次上报值推导
	candidates := EvaluateThresholdRules(report.TelemetryMetrics)
	status := DeriveStatus(candidates)
	healthScore := ComputeHealthScore(candidates)
	now := time.Now()

	if err := s.upsertStatus(ctx, equipment.ID, report.TelemetryMetrics, status, healthScore, now); err != nil {
		return nil, err
	}

	if err := s.appendReading(ctx, equipment.ID, report.TelemetryMetrics, now); err != nil {
		return nil, err
	}

	// 异步派发候选告警，失败不影响上报响应
	s.dispatchCandidates(ctx, &equipment, candidates)

	var latest portal.EquipmentStatus
	if err := s.db.WithContext(ctx).Where("equipment_id = ?", equipment.ID).First(&latest).Error; err != nil {
		return nil, HandleDBError(err, ResourceEquipment, report.EquipmentID)
	}

	return &EquipmentStatusDTO{
		EquipmentID:       equipment.EquipmentID,
		Status:            latest.Status,
		HealthScore:       latest.HealthScore,
		Temperature:       latest.Temperature,
		Vibration:         latest.Vibration,
		EnergyConsumption: latest.EnergyConsumption,
		LastUsedAt:        latest.LastUsedAt,
		AnomalyCount:      len(candidates),
	}, nil
}

// upsertStatus 以设备为键原子化更新最新状态.
// 同一设备的并发上报通过单行 ON CONFLICT 合并，不会互相覆盖丢失字段。
func (s *TelemetryService) upsertStatus(ctx context.Context, equipmentID int64, metrics TelemetryMetrics,
	status portal.EquipmentStatusValue, healthScore float64, now time.Time) error {
	row := portal.EquipmentStatus{
		EquipmentID: equipmentID,
		Status:      status,
		HealthScore: healthScore,
		LastUsedAt:  now,
	}
	assignments := map[string]interface{}{
		"status":       status,
		"health_score": healthScore,
		"last_used_at": now,
		"updated_at":   now,
	}
	if metrics.Temperature != nil {
		row.Temperature = *metrics.Temperature
		assignments["temperature"] = *metrics.Temperature
	}
	if metrics.Vibration != nil {
		row.Vibration = *metrics.Vibration
		assignments["vibration"] = *metrics.Vibration
	}
	if metrics.EnergyConsumption != nil {
		row.EnergyConsumption = *metrics.EnergyConsumption
		assignments["energy_consumption"] = *metrics.EnergyConsumption
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "equipment_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error
	if err != nil {
		return NewUnavailableError("failed to upsert equipment status", err)
	}
	return nil
}

// appendReading 追加一条原始读数，与异常检测结果无关
func (s *TelemetryService) appendReading(ctx context.Context, equipmentID int64, metrics TelemetryMetrics, now time.Time) error {
	reading := portal.SensorReading{
		EquipmentID: equipmentID,
		RecordedAt:  now,
	}
	if metrics.Temperature != nil {
		reading.Temperature = *metrics.Temperature
	}
	if metrics.Vibration != nil {
		reading.Vibration = *metrics.Vibration
	}
	if metrics.EnergyConsumption != nil {
		reading.EnergyConsumption = *metrics.EnergyConsumption
	}

	if err := s.db.WithContext(ctx).Create(&reading).Error; err != nil {
		return NewUnavailableError("failed to append sensor reading", err)
	}
	return nil
}

// dispatchCandidates 将候选告警派发到事件总线
func (s *TelemetryService) dispatchCandidates(ctx context.Context, equipment *portal.Equipment, candidates []AlertCandidate) {
	for _, candidate := range candidates {
		event := events.NewAlertCandidateEvent(events.AlertCandidateRequest{
			EquipmentID:   equipment.ID,
			EquipmentCode: equipment.EquipmentID,
			AlertType:     candidate.Type,
			Severity:      candidate.Severity,
			Title:         candidate.Title,
			Message:       candidate.Message,
		})
		if err := s.eventManager.Publish(events.PublishRequest{Event: event, Ctx: ctx}); err != nil {
			s.logger.Error("Failed to dispatch alert candidate",
				zap.String("equipmentCode", equipment.EquipmentID),
				zap.String("alertType", string(candidate.Type)),
				zap.Error(err))
		}
	}
}

// GetEquipmentStatus 查询单台设备的最新状态
func (s *TelemetryService) GetEquipmentStatus(ctx context.Context, equipmentCode string) (*EquipmentStatusDTO, error) {
	var equipment portal.Equipment
	err := s.db.WithContext(ctx).Where("equipment_id = ?", equipmentCode).First(&equipment).Error
	if err != nil {
		return nil, HandleDBError(err, ResourceEquipment, equipmentCode)
	}

	var latest portal.EquipmentStatus
	err = s.db.WithContext(ctx).Where("equipment_id = ?", equipment.ID).First(&latest).Error
	if err != nil {
		return nil, HandleDBError(err, ResourceEquipment, equipmentCode)
	}

	return &EquipmentStatusDTO{
		EquipmentID:       equipment.EquipmentID,
		Status:            latest.Status,
		HealthScore:       latest.HealthScore,
		Temperature:       latest.Temperature,
		Vibration:         latest.Vibration,
		EnergyConsumption: latest.EnergyConsumption,
		LastUsedAt:        latest.LastUsedAt,
	}, nil
}
