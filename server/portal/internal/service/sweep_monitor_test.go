package service

import (
	"context"
	"testing"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type SweepMonitorTestSuite struct {
	suite.Suite
	db           *gorm.DB
	publisher    *fakePublisher
	redisHandler *MockRedisHandler
	alertService *AlertService
	monitor      *InactivitySweepMonitor
}

func (s *SweepMonitorTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.publisher = newFakePublisher()
	s.redisHandler = new(MockRedisHandler)

	directory := NewDirectoryService(s.db, testLogger())
	keyBuilder := redis.NewKeyBuilder(redis.GlobalPrefix, "v1")
	s.alertService = NewAlertService(s.db, directory, s.publisher, nil, keyBuilder, testLogger())
	s.monitor = NewInactivitySweepMonitor(s.db, s.alertService, s.redisHandler, keyBuilder,
		SweepConfig{}, testLogger())
}

func TestSweepMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(SweepMonitorTestSuite))
}

func (s *SweepMonitorTestSuite) allowLock() {
	s.redisHandler.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	s.redisHandler.On("Delete", mock.Anything).Return()
}

func (s *SweepMonitorTestSuite) TestRunSweep_FlagsLongInactiveEquipment() {
	s.allowLock()
	manager := createTestUser(s.T(), s.db, "zhang", portal.RoleLabManager, "工程学院", "机械工程系")

	idle := createTestEquipment(s.T(), s.db, "SPEC-001", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, idle.ID, portal.EquipmentStatusIdle, time.Now().Add(-20*24*time.Hour))

	recent := createTestEquipment(s.T(), s.db, "CNC-001", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, recent.ID, portal.EquipmentStatusInUse, time.Now().Add(-2*24*time.Hour))

	result, err := s.monitor.RunSweep(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, result.MatchedCount)
	assert.Equal(s.T(), 1, result.AlertCount)

	var alert portal.Alert
	assert.NoError(s.T(), s.db.Where("type = ?", portal.AlertTypeBreakdownCheck).First(&alert).Error)
	assert.Equal(s.T(), portal.AlertSeverityMedium, alert.Severity)
	assert.Equal(s.T(), idle.ID, *alert.EquipmentID)

	// 只有范围匹配的实验室管理员收到通知
	var notifications []portal.Notification
	s.db.Where("alert_id = ?", alert.ID).Find(&notifications)
	assert.Len(s.T(), notifications, 1)
	assert.Equal(s.T(), manager.ID, notifications[0].UserID)
}

func (s *SweepMonitorTestSuite) TestRunSweep_ExcludesMaintenanceFaultyAndOpenBreakdown() {
	s.allowLock()
	old := time.Now().Add(-30 * 24 * time.Hour)

	maintenance := createTestEquipment(s.T(), s.db, "CNC-002", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, maintenance.ID, portal.EquipmentStatusMaintenance, old)

	faulty := createTestEquipment(s.T(), s.db, "CNC-003", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, faulty.ID, portal.EquipmentStatusFaulty, old)

	inactive := createTestEquipment(s.T(), s.db, "OLD-001", "工程学院", "机械工程系", false)
	createTestStatus(s.T(), s.db, inactive.ID, portal.EquipmentStatusIdle, old)

	withBreakdown := createTestEquipment(s.T(), s.db, "CNC-004", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, withBreakdown.ID, portal.EquipmentStatusIdle, old)
	assert.NoError(s.T(), s.db.Create(&portal.BreakdownRecord{
		EquipmentID: withBreakdown.ID,
		Status:      portal.BreakdownStatusReported,
		ReportedBy:  "zhang",
	}).Error)

	result, err := s.monitor.RunSweep(context.Background())
	assert.NoError(s.T(), err)
	assert.Zero(s.T(), result.MatchedCount)
	assert.Zero(s.T(), result.AlertCount)
}

func (s *SweepMonitorTestSuite) TestRunSweep_ClosedBreakdownDoesNotExclude() {
	s.allowLock()
	old := time.Now().Add(-30 * 24 * time.Hour)

	equipment := createTestEquipment(s.T(), s.db, "CNC-005", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, equipment.ID, portal.EquipmentStatusIdle, old)
	assert.NoError(s.T(), s.db.Create(&portal.BreakdownRecord{
		EquipmentID: equipment.ID,
		Status:      portal.BreakdownStatusResolved,
		ReportedBy:  "zhang",
	}).Error)

	result, err := s.monitor.RunSweep(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, result.MatchedCount)
}

func (s *SweepMonitorTestSuite) TestRunSweep_ConflictWhenLockHeld() {
	s.redisHandler.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	_, err := s.monitor.RunSweep(context.Background())
	assert.True(s.T(), IsConflict(err))
}

func (s *SweepMonitorTestSuite) TestRunSweep_CustomThreshold() {
	s.allowLock()
	keyBuilder := redis.NewKeyBuilder(redis.GlobalPrefix, "v1")
	monitor := NewInactivitySweepMonitor(s.db, s.alertService, s.redisHandler, keyBuilder,
		SweepConfig{InactiveThresholdDays: 5}, testLogger())

	equipment := createTestEquipment(s.T(), s.db, "CNC-006", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, equipment.ID, portal.EquipmentStatusIdle, time.Now().Add(-7*24*time.Hour))

	result, err := monitor.RunSweep(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, result.MatchedCount, "7天闲置在5天阈值下命中")

	// 默认15天阈值下不命中
	result, err = s.monitor.RunSweep(context.Background())
	assert.NoError(s.T(), err)
	assert.Zero(s.T(), result.MatchedCount)
}

func (s *SweepMonitorTestSuite) TestRunSweep_SuppressionCountsMatchedNotAlerted() {
	s.allowLock()
	suppressingRedis := new(MockRedisHandler)
	// 抑制窗口命中：告警被丢弃
	suppressingRedis.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	directory := NewDirectoryService(s.db, testLogger())
	keyBuilder := redis.NewKeyBuilder(redis.GlobalPrefix, "v1")
	alertService := NewAlertService(s.db, directory, s.publisher, suppressingRedis, keyBuilder, testLogger())
	monitor := NewInactivitySweepMonitor(s.db, alertService, s.redisHandler, keyBuilder,
		SweepConfig{}, testLogger())

	equipment := createTestEquipment(s.T(), s.db, "CNC-007", "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, equipment.ID, portal.EquipmentStatusIdle, time.Now().Add(-20*24*time.Hour))

	result, err := monitor.RunSweep(context.Background())
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, result.MatchedCount)
	assert.Zero(s.T(), result.AlertCount)
}

func (s *SweepMonitorTestSuite) TestStartStop() {
	monitor := NewInactivitySweepMonitor(s.db, s.alertService, nil, nil, SweepConfig{}, testLogger())
	monitor.Start()
	// 重复Start是空操作
	monitor.Start()
	monitor.Stop()
	// 重复Stop是空操作
	monitor.Stop()
}
