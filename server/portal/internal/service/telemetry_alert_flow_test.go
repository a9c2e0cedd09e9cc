package service

import (
	"context"
	"testing"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/redis"
	"labfleet-ng/server/portal/internal/service/events"
	"labfleet-ng/server/portal/internal/service/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTelemetryAlertPipeline 组装遥测→事件总线→告警扇出的完整链路，
// 事件总线用默认配置（异步+重试），与服务进程的接线方式一致。
func newTelemetryAlertPipeline(t *testing.T, db *gorm.DB, publisher *fakePublisher) *TelemetryService {
	redisHandler := new(MockRedisHandler)
	redisHandler.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Maybe()

	directory := NewDirectoryService(db, testLogger())
	keyBuilder := redis.NewKeyBuilder(redis.GlobalPrefix, "v1")
	alertService := NewAlertService(db, directory, publisher, redisHandler, keyBuilder, testLogger())

	eventManager := events.NewEventManager(testLogger(), nil)
	eventManager.Register(events.RegisterRequest{
		EventType:   events.EventTypeAlertCandidate,
		HandlerName: "alert_fanout",
		HandlerFunc: func(ctx context.Context, event events.Event) error {
			candidate, ok := event.Data().(*events.AlertCandidateEvent)
			if !ok {
				return nil
			}
			equipmentID := candidate.EquipmentID
			_, err := alertService.RaiseAlert(ctx, &RaiseAlertDTO{
				Type:          candidate.AlertType,
				Severity:      candidate.Severity,
				EquipmentID:   &equipmentID,
				EquipmentCode: candidate.EquipmentCode,
				Title:         candidate.Title,
				Message:       candidate.Message,
			})
			return err
		},
	})

	return NewTelemetryService(db, eventManager, testLogger())
}

func TestTelemetryReport_CriticalAlertPersistedAfterRequestEnds(t *testing.T) {
	db := newTestDB(t)
	publisher := newFakePublisher()
	telemetryService := newTelemetryAlertPipeline(t, db, publisher)

	manager := createTestUser(t, db, "zhang", portal.RoleLabManager, "工程学院", "机械工程系")
	createTestEquipment(t, db, "CNC-001", "工程学院", "机械工程系", true)

	// 模拟HTTP请求生命周期：上报返回后请求上下文立即取消
	ctx, cancel := context.WithCancel(context.Background())
	result, err := telemetryService.ReportTelemetry(ctx, &TelemetryReportDTO{
		EquipmentID:      "CNC-001",
		TelemetryMetrics: TelemetryMetrics{Temperature: floatPtr(105)},
	})
	cancel()
	require.NoError(t, err)
	require.Equal(t, 1, result.AnomalyCount)

	// 请求上下文取消不影响已派发的扇出，告警最终落库
	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&portal.Alert{}).Where("type = ?", portal.AlertTypeHighTemperature).Count(&count)
		return count == 1
	}, 2*time.Second, 10*time.Millisecond, "alert fan-out must survive the publisher's canceled context")

	var alert portal.Alert
	require.NoError(t, db.Where("type = ?", portal.AlertTypeHighTemperature).First(&alert).Error)
	assert.Equal(t, portal.AlertSeverityCritical, alert.Severity)

	var notifications []portal.Notification
	require.NoError(t, db.Where("alert_id = ?", alert.ID).Find(&notifications).Error)
	assert.Len(t, notifications, 1)
	assert.Equal(t, manager.ID, notifications[0].UserID)

	assert.Eventually(t, func() bool {
		return publisher.equipmentMessageCount("CNC-001") == 1 &&
			publisher.userMessageCount(manager.ID) == 1 &&
			publisher.topicMessageCount(realtime.TopicAllAlerts) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTelemetryReport_NormalReadingProducesNoAlert(t *testing.T) {
	db := newTestDB(t)
	publisher := newFakePublisher()
	telemetryService := newTelemetryAlertPipeline(t, db, publisher)

	createTestEquipment(t, db, "CNC-002", "工程学院", "机械工程系", true)

	result, err := telemetryService.ReportTelemetry(context.Background(), &TelemetryReportDTO{
		EquipmentID:      "CNC-002",
		TelemetryMetrics: TelemetryMetrics{Temperature: floatPtr(60)},
	})
	require.NoError(t, err)
	assert.Zero(t, result.AnomalyCount)

	time.Sleep(50 * time.Millisecond)
	var count int64
	db.Model(&portal.Alert{}).Count(&count)
	assert.Zero(t, count)
}
