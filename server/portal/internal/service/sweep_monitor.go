package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/redis"

	"github.com/jinzhu/now"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 闲置巡检默认参数
const (
	DefaultInactiveThresholdDays = 15            // 默认闲置天数阈值
	DefaultSweepHour             = 2             // 默认每天凌晨2点执行
	sweepLockTTL                 = 10 * time.Minute
)

// SweepConfig 闲置巡检配置
type SweepConfig struct {
	InactiveThresholdDays int // 闲置天数阈值，<=0 取默认值
	RunAtHour             int // 每天执行的小时（0-23）
}

// SweepResultDTO 一次巡检的执行结果
type SweepResultDTO struct {
	ScannedAt    time.Time `json:"scannedAt"`    // 执行时间
	MatchedCount int       `json:"matchedCount"` // 命中的闲置设备数
	AlertCount   int       `json:"alertCount"`   // 实际产生的告警数（去除抑制）
}

// inactiveEquipmentRow 巡检查询结果行
type inactiveEquipmentRow struct {
	ID          int64
	EquipmentID string
	Name        string
	LastUsedAt  time.Time
}

// InactivitySweepMonitor 闲置设备巡检器.
// 每天在配置的时间点对全部在用设备做一次闲置扫描，
// 对超过阈值未使用的设备发出 BREAKDOWN_CHECK 告警。
// 同一时间只允许一次巡检在执行：进程内用运行标志，
// 多实例间用Redis锁保证单飞。
type InactivitySweepMonitor struct {
	db           *gorm.DB
	alertService *AlertService
	redisHandler RedisHandlerInterface
	keyBuilder   *redis.KeyBuilder
	logger       *zap.Logger

	inactiveThreshold time.Duration
	runAtHour         int

	mu        sync.Mutex
	isRunning bool
	started   bool
	stopChan  chan struct{}
}

// NewInactivitySweepMonitor 创建闲置巡检器
func NewInactivitySweepMonitor(db *gorm.DB, alertService *AlertService, redisHandler RedisHandlerInterface,
	keyBuilder *redis.KeyBuilder, config SweepConfig, logger *zap.Logger) *InactivitySweepMonitor {
	thresholdDays := config.InactiveThresholdDays
	if thresholdDays <= 0 {
		thresholdDays = DefaultInactiveThresholdDays
	}
	runAtHour := config.RunAtHour
	if runAtHour < 0 || runAtHour > 23 {
		runAtHour = DefaultSweepHour
	}
	return &InactivitySweepMonitor{
		db:                db,
		alertService:      alertService,
		redisHandler:      redisHandler,
		keyBuilder:        keyBuilder,
		logger:            logger,
		inactiveThreshold: time.Duration(thresholdDays) * 24 * time.Hour,
		runAtHour:         runAtHour,
		stopChan:          make(chan struct{}),
	}
}

// Start 启动每日巡检调度
func (m *InactivitySweepMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	go m.scheduleLoop()

	m.logger.Info("Inactivity sweep monitor started",
		zap.Int("runAtHour", m.runAtHour),
		zap.Duration("inactiveThreshold", m.inactiveThreshold))
}

// Stop 停止巡检调度
func (m *InactivitySweepMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	close(m.stopChan)
	m.logger.Info("Inactivity sweep monitor stopped")
}

// scheduleLoop 每天在配置的时间点触发一次巡检
func (m *InactivitySweepMonitor) scheduleLoop() {
	for {
		timer := time.NewTimer(m.durationUntilNextRun())
		select {
		case <-timer.C:
			if _, err := m.RunSweep(context.Background()); err != nil {
				if IsConflict(err) {
					m.logger.Info("Scheduled sweep skipped, another sweep in progress")
				} else {
					m.logger.Error("Scheduled sweep failed", zap.Error(err))
				}
			}
		case <-m.stopChan:
			timer.Stop()
			return
		}
	}
}

// durationUntilNextRun 计算距离下一个执行时间点的时长
func (m *InactivitySweepMonitor) durationUntilNextRun() time.Duration {
	next := now.BeginningOfDay().Add(time.Duration(m.runAtHour) * time.Hour)
	if !next.After(time.Now()) {
		next = next.Add(24 * time.Hour)
	}
	return time.Until(next)
}

// RunSweep 执行一次闲置巡检.
// 扫描范围：在用设备中，状态不处于 MAINTENANCE/FAULTY、
// 最后使用时间早于阈值、且没有未关闭故障记录的设备；
// 每台命中设备发出一条 MEDIUM 级 BREAKDOWN_CHECK 告警。
// 巡检正在执行时返回冲突错误，调用方可直接映射为409。
func (m *InactivitySweepMonitor) RunSweep(ctx context.Context) (*SweepResultDTO, error) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return nil, NewConflictError(MsgSweepAlreadyRunning)
	}
	m.isRunning = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isRunning = false
		m.mu.Unlock()
	}()

	// 跨实例单飞锁
	if m.redisHandler != nil {
		lockKey := m.keyBuilder.SweepLockKey()
		acquired, err := m.redisHandler.AcquireLock(lockKey, fmt.Sprintf("%d", time.Now().UnixNano()), sweepLockTTL)
		if err != nil {
			m.logger.Warn("Sweep lock check failed, continuing without distributed lock", zap.Error(err))
		} else if !acquired {
			return nil, NewConflictError(MsgSweepAlreadyRunning)
		} else {
			defer m.redisHandler.Delete(lockKey)
		}
	}

	startedAt := time.Now()
	cutoff := startedAt.Add(-m.inactiveThreshold)

	rows, err := m.findInactiveEquipment(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &SweepResultDTO{ScannedAt: startedAt, MatchedCount: len(rows)}
	for _, row := range rows {
		daysInactive := int(startedAt.Sub(row.LastUsedAt).Hours() / 24)
		equipmentID := row.ID
		alert, err := m.alertService.RaiseAlert(ctx, &RaiseAlertDTO{
			Type:          portal.AlertTypeBreakdownCheck,
			Severity:      portal.AlertSeverityMedium,
			EquipmentID:   &equipmentID,
			EquipmentCode: row.EquipmentID,
			Title:         TitleBreakdownCheck,
			Message:       fmt.Sprintf("设备 %s（%s）已连续 %d 天未使用，请核查是否故障", row.Name, row.EquipmentID, daysInactive),
		})
		if err != nil {
			m.logger.Error("Failed to raise breakdown check alert",
				zap.String("equipmentCode", row.EquipmentID),
				zap.Error(err))
			continue
		}
		if alert != nil {
			result.AlertCount++
		}
	}

	m.logger.Info("Inactivity sweep completed",
		zap.Int("matchedCount", result.MatchedCount),
		zap.Int("alertCount", result.AlertCount),
		zap.Duration("elapsed", time.Since(startedAt)))

	return result, nil
}

// findInactiveEquipment 查询命中闲置条件的设备
func (m *InactivitySweepMonitor) findInactiveEquipment(ctx context.Context, cutoff time.Time) ([]inactiveEquipmentRow, error) {
	var rows []inactiveEquipmentRow
	err := m.db.WithContext(ctx).
		Table("equipment").
		Select("equipment.id, equipment.equipment_id, equipment.name, equipment_status.last_used_at").
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
		return nil, NewUnavailableError("failed to scan inactive equipment", err)
	}
	return rows, nil
}
