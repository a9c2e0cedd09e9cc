package inactivity_sweep

import (
	"context"
	"fmt"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/redis"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Sweeper 离线闲置巡检器.
// 与门户进程的定时巡检逻辑一致，供运维在作业进程中手工或按计划触发；
// 通过同一把Redis锁与门户进程互斥。
type Sweeper struct {
	db            *gorm.DB
	redisHandler  *redis.Handler
	keyBuilder    *redis.KeyBuilder
	thresholdDays int
	logger        *zap.Logger
}

// NewSweeper 创建离线巡检器
func NewSweeper(db *gorm.DB, redisHandler *redis.Handler, thresholdDays int, logger *zap.Logger) *Sweeper {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}
	return &Sweeper{
		db:            db,
		redisHandler:  redisHandler,
		keyBuilder:    redis.NewKeyBuilder(redis.GlobalPrefix, "v1"),
		thresholdDays: thresholdDays,
		logger:        logger,
	}
}

// Run 执行一次闲置巡检.
// 对每台命中设备创建 BREAKDOWN_CHECK 告警，并在同一事务内
// 为范围匹配的实验室管理员生成通知。
func (s *Sweeper) Run(ctx context.Context) (*SweepSummary, error) {
	if s.redisHandler != nil {
		lockKey := s.keyBuilder.SweepLockKey()
		acquired, err := s.redisHandler.AcquireLock(lockKey, fmt.Sprintf("%d", time.Now().UnixNano()), lockTTL)
		if err != nil {
			s.logger.Warn("Sweep lock check failed, continuing without distributed lock", zap.Error(err))
		} else if !acquired {
			return nil, fmt.Errorf("another sweep is already in progress")
		} else {
			defer s.redisHandler.Delete(lockKey)
		}
	}

	startedAt := time.Now()
	cutoff := startedAt.Add(-time.Duration(s.thresholdDays) * 24 * time.Hour)

	var rows []inactiveRow
	err := s.db.WithContext(ctx).
		Table("equipment").
		Select("equipment.id, equipment.equipment_id, equipment.name, equipment.institute, equipment.department, equipment_status.last_used_at").
		Joins("JOIN equipment_status ON equipment_status.equipment_id = equipment.id").
		Where("equipment.active = ?", true).
		Where("equipment_status.status NOT IN (?)", []portal.EquipmentStatusValue{
			portal.EquipmentStatusMaintenance,
			portal.EquipmentStatusFaulty,
		}).
		Where("equipment_status.last_used_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM breakdown_record WHERE breakdown_record.equipment_id = equipment.id AND breakdown_record.status IN (?))",
			portal.OpenBreakdownStatuses).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan inactive equipment: %w", err)
	}

	summary := &SweepSummary{ScannedAt: startedAt, MatchedCount: len(rows)}
	for _, row := range rows {
		if err := s.raiseAlert(ctx, row, startedAt); err != nil {
			s.logger.Error("Failed to raise breakdown check alert",
				zap.String("equipmentCode", row.EquipmentID),
				zap.Error(err))
			continue
		}
		summary.AlertCount++
	}

	s.logger.Info("Inactivity sweep completed",
		zap.Int("matchedCount", summary.MatchedCount),
		zap.Int("alertCount", summary.AlertCount),
		zap.Duration("elapsed", time.Since(startedAt)))

	return summary, nil
}

// raiseAlert 为一台闲置设备创建告警与范围化通知
func (s *Sweeper) raiseAlert(ctx context.Context, row inactiveRow, scannedAt time.Time) error {
	daysInactive := int(scannedAt.Sub(row.LastUsedAt).Hours() / 24)
	message := fmt.Sprintf("设备 %s（%s）已连续 %d 天未使用，请核查是否故障", row.Name, row.EquipmentID, daysInactive)

	// BREAKDOWN_CHECK 只发给范围匹配的实验室管理员
	var recipientIDs []int64
	err := s.db.WithContext(ctx).Model(&portal.User{}).
		Where("role = ? AND active = ? AND institute = ? AND department = ?",
			portal.RoleLabManager, true, row.Institute, row.Department).
		Pluck("id", &recipientIDs).Error
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}

	equipmentID := row.ID
	alert := portal.Alert{
		Type:        portal.AlertTypeBreakdownCheck,
		Severity:    portal.AlertSeverityMedium,
		EquipmentID: &equipmentID,
		Title:       alertTitle,
		Message:     message,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}
		if len(recipientIDs) == 0 {
			return nil
		}
		notifications := make([]portal.Notification, 0, len(recipientIDs))
		for _, userID := range recipientIDs {
			notifications = append(notifications, portal.Notification{
				UserID:  userID,
				AlertID: &alert.ID,
				Title:   alert.Title,
				Message: alert.Message,
			})
		}
		return tx.Create(&notifications).Error
	})
}
