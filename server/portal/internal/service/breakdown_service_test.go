package service

import (
	"context"
	"testing"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/redis"
	"labfleet-ng/server/portal/internal/service/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type BreakdownServiceTestSuite struct {
	suite.Suite
	db           *gorm.DB
	publisher    *fakePublisher
	redisHandler *MockRedisHandler
	alertService *AlertService
	service      *BreakdownService

	manager   Actor
	assistant Actor
	outsider  Actor
	admin     Actor
}

func (s *BreakdownServiceTestSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.publisher = newFakePublisher()
	s.redisHandler = new(MockRedisHandler)
	s.redisHandler.On("AcquireLock", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Maybe()

	directory := NewDirectoryService(s.db, testLogger())
	keyBuilder := redis.NewKeyBuilder(redis.GlobalPrefix, "v1")
	s.alertService = NewAlertService(s.db, directory, s.publisher, s.redisHandler, keyBuilder, testLogger())
	eventManager := events.NewEventManager(testLogger(), nil)
	s.service = NewBreakdownService(s.db, s.alertService, directory, eventManager, testLogger())

	adminUser := createTestUser(s.T(), s.db, "admin", portal.RoleAdmin, "", "")
	managerUser := createTestUser(s.T(), s.db, "zhang", portal.RoleLabManager, "工程学院", "机械工程系")
	assistantUser := createTestUser(s.T(), s.db, "wang", portal.RoleLabAssistant, "工程学院", "机械工程系")
	outsiderUser := createTestUser(s.T(), s.db, "li", portal.RoleLabManager, "理学院", "物理系")

	s.admin = Actor{UserID: adminUser.ID, Name: adminUser.Name, Role: adminUser.Role}
	s.manager = Actor{UserID: managerUser.ID, Name: managerUser.Name, Role: managerUser.Role,
		Institute: managerUser.Institute, Department: managerUser.Department}
	s.assistant = Actor{UserID: assistantUser.ID, Name: assistantUser.Name, Role: assistantUser.Role,
		Institute: assistantUser.Institute, Department: assistantUser.Department}
	s.outsider = Actor{UserID: outsiderUser.ID, Name: outsiderUser.Name, Role: outsiderUser.Role,
		Institute: outsiderUser.Institute, Department: outsiderUser.Department}
}

func TestBreakdownServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BreakdownServiceTestSuite))
}

func (s *BreakdownServiceTestSuite) seedEquipmentWithStatus(code string) *portal.Equipment {
	equipment := createTestEquipment(s.T(), s.db, code, "工程学院", "机械工程系", true)
	createTestStatus(s.T(), s.db, equipment.ID, portal.EquipmentStatusOperational, time.Now())
	return equipment
}

func (s *BreakdownServiceTestSuite) TestReportBreakdown_CreatesRecordAndMarksFaulty() {
	equipment := s.seedEquipmentWithStatus("CNC-001")

	record, err := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "主轴异响",
	})
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), portal.BreakdownStatusReported, record.Status)
	assert.False(s.T(), record.AutoDetected)
	assert.Equal(s.T(), "zhang", record.ReportedBy)

	var status portal.EquipmentStatus
	s.db.Where("equipment_id = ?", equipment.ID).First(&status)
	assert.Equal(s.T(), portal.EquipmentStatusFaulty, status.Status)
}

func (s *BreakdownServiceTestSuite) TestReportBreakdown_ConflictWhenAlreadyOpen() {
	equipment := s.seedEquipmentWithStatus("CNC-002")

	_, err := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "主轴异响",
	})
	assert.NoError(s.T(), err)

	_, err = s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "再次上报",
	})
	assert.True(s.T(), IsConflict(err))

	var count int64
	s.db.Model(&portal.BreakdownRecord{}).Where("equipment_id = ?", equipment.ID).Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

func (s *BreakdownServiceTestSuite) TestReportBreakdown_ScopeForbidden() {
	equipment := s.seedEquipmentWithStatus("CNC-003")

	_, err := s.service.ReportBreakdown(context.Background(), s.outsider, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "越权上报",
	})
	assert.True(s.T(), IsForbidden(err))
}

func (s *BreakdownServiceTestSuite) TestReportBreakdown_AllowedAfterResolve() {
	equipment := s.seedEquipmentWithStatus("CNC-004")

	record, err := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "第一次故障",
	})
	assert.NoError(s.T(), err)

	_, err = s.service.ResolveBreakdown(context.Background(), s.manager, record.ID)
	assert.NoError(s.T(), err)

	// 旧记录关闭后允许再次上报
	_, err = s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "第二次故障",
	})
	assert.NoError(s.T(), err)
}

func (s *BreakdownServiceTestSuite) TestRespondToAlert_MissingIsBreakdown() {
	_, err := s.service.RespondToAlert(context.Background(), s.manager, &RespondToAlertDTO{AlertID: 1})
	assert.True(s.T(), IsInvalidInput(err))
}

func (s *BreakdownServiceTestSuite) TestRespondToAlert_FalsePositiveOnlyResolvesAlert() {
	equipment := s.seedEquipmentWithStatus("CNC-005")
	alert, err := s.alertService.RaiseAlert(context.Background(), &RaiseAlertDTO{
		Type:        portal.AlertTypeBreakdownCheck,
		Severity:    portal.AlertSeverityMedium,
		EquipmentID: &equipment.ID,
		Title:       TitleBreakdownCheck,
		Message:     "闲置核查",
	})
	assert.NoError(s.T(), err)

	record, err := s.service.RespondToAlert(context.Background(), s.manager, &RespondToAlertDTO{
		AlertID:     alert.ID,
		IsBreakdown: boolPtr(false),
	})
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), record)

	var resolved portal.Alert
	s.db.First(&resolved, alert.ID)
	assert.True(s.T(), resolved.Resolved)

	var count int64
	s.db.Model(&portal.BreakdownRecord{}).Count(&count)
	assert.Zero(s.T(), count)
}

func (s *BreakdownServiceTestSuite) TestRespondToAlert_ConfirmedCreatesAutoDetectedRecord() {
	equipment := s.seedEquipmentWithStatus("CNC-006")
	alert, err := s.alertService.RaiseAlert(context.Background(), &RaiseAlertDTO{
		Type:        portal.AlertTypeBreakdownCheck,
		Severity:    portal.AlertSeverityMedium,
		EquipmentID: &equipment.ID,
		Title:       TitleBreakdownCheck,
		Message:     "闲置核查",
	})
	assert.NoError(s.T(), err)

	record, err := s.service.RespondToAlert(context.Background(), s.manager, &RespondToAlertDTO{
		AlertID:     alert.ID,
		IsBreakdown: boolPtr(true),
	})
	assert.NoError(s.T(), err)
	assert.NotNil(s.T(), record)
	assert.True(s.T(), record.AutoDetected)
	assert.Equal(s.T(), MsgReasonAutoConfirmDefault, record.Reason)

	var resolved portal.Alert
	s.db.First(&resolved, alert.ID)
	assert.True(s.T(), resolved.Resolved)
}

func (s *BreakdownServiceTestSuite) TestSubmitReorder_DefaultsAndNotifications() {
	equipment := s.seedEquipmentWithStatus("CNC-007")
	record, err := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "传感器损坏",
	})
	assert.NoError(s.T(), err)

	request, err := s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{
		BreakdownID: record.ID,
		Reason:      "更换温度传感器",
	})
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 1, request.Quantity, "数量缺省为1")
	assert.Equal(s.T(), portal.ReorderUrgencyMedium, request.Urgency, "紧急程度缺省为MEDIUM")
	assert.Equal(s.T(), portal.ReorderStatusPending, request.Status)

	var parent portal.BreakdownRecord
	s.db.First(&parent, record.ID)
	assert.Equal(s.T(), portal.BreakdownStatusReorderPending, parent.Status)

	// 策略级用户收到通知
	var notifications []portal.Notification
	s.db.Where("user_id = ?", s.admin.UserID).Find(&notifications)
	assert.Len(s.T(), notifications, 1)
}

func (s *BreakdownServiceTestSuite) TestSubmitReorder_TerminalParentConflict() {
	equipment := s.seedEquipmentWithStatus("CNC-008")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "故障",
	})
	_, err := s.service.ResolveBreakdown(context.Background(), s.manager, record.ID)
	assert.NoError(s.T(), err)

	_, err = s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{BreakdownID: record.ID})
	assert.True(s.T(), IsConflict(err))
}

func (s *BreakdownServiceTestSuite) TestReviewReorder_Approve() {
	equipment := s.seedEquipmentWithStatus("CNC-009")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "故障",
	})
	request, _ := s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{BreakdownID: record.ID})

	reviewed, err := s.service.ReviewReorder(context.Background(), s.admin, &ReviewReorderDTO{
		ReorderID: request.ID,
		Action:    portal.ReorderStatusApproved,
		Comments:  "同意采购",
	})
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), portal.ReorderStatusApproved, reviewed.Status)
	assert.Equal(s.T(), "admin", reviewed.ReviewedBy)

	var parent portal.BreakdownRecord
	s.db.First(&parent, record.ID)
	assert.Equal(s.T(), portal.BreakdownStatusReorderApproved, parent.Status)

	// 申请人收到审核结果通知
	var notifications []portal.Notification
	s.db.Where("user_id = ?", s.manager.UserID).Find(&notifications)
	assert.NotEmpty(s.T(), notifications)
}

func (s *BreakdownServiceTestSuite) TestReviewReorder_RejectClosesParent() {
	equipment := s.seedEquipmentWithStatus("CNC-010")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "故障",
	})
	request, _ := s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{BreakdownID: record.ID})

	_, err := s.service.ReviewReorder(context.Background(), s.admin, &ReviewReorderDTO{
		ReorderID: request.ID,
		Action:    portal.ReorderStatusRejected,
	})
	assert.NoError(s.T(), err)

	var parent portal.BreakdownRecord
	s.db.First(&parent, record.ID)
	assert.Equal(s.T(), portal.BreakdownStatusReorderRejected, parent.Status)
	assert.True(s.T(), parent.Status.IsTerminal())
}

func (s *BreakdownServiceTestSuite) TestReviewReorder_OnlyPolicyLevel() {
	_, err := s.service.ReviewReorder(context.Background(), s.manager, &ReviewReorderDTO{
		ReorderID: 1,
		Action:    portal.ReorderStatusApproved,
	})
	assert.True(s.T(), IsForbidden(err))
}

func (s *BreakdownServiceTestSuite) TestReviewReorder_InvalidAction() {
	_, err := s.service.ReviewReorder(context.Background(), s.admin, &ReviewReorderDTO{
		ReorderID: 1,
		Action:    portal.ReorderStatusCancelled,
	})
	assert.True(s.T(), IsInvalidInput(err))
}

func (s *BreakdownServiceTestSuite) TestReviewReorder_DoubleReviewConflict() {
	equipment := s.seedEquipmentWithStatus("CNC-011")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "故障",
	})
	request, _ := s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{BreakdownID: record.ID})

	_, err := s.service.ReviewReorder(context.Background(), s.admin, &ReviewReorderDTO{
		ReorderID: request.ID,
		Action:    portal.ReorderStatusApproved,
	})
	assert.NoError(s.T(), err)

	_, err = s.service.ReviewReorder(context.Background(), s.admin, &ReviewReorderDTO{
		ReorderID: request.ID,
		Action:    portal.ReorderStatusRejected,
	})
	assert.True(s.T(), IsConflict(err))
}

func (s *BreakdownServiceTestSuite) TestResolveBreakdown_CancelsPendingReordersAndRestoresStatus() {
	equipment := s.seedEquipmentWithStatus("CNC-012")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "故障",
	})
	request, _ := s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{BreakdownID: record.ID})

	resolved, err := s.service.ResolveBreakdown(context.Background(), s.manager, record.ID)
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), portal.BreakdownStatusResolved, resolved.Status)

	var reorder portal.ReorderRequest
	s.db.First(&reorder, request.ID)
	assert.Equal(s.T(), portal.ReorderStatusCancelled, reorder.Status)

	var status portal.EquipmentStatus
	s.db.Where("equipment_id = ?", equipment.ID).First(&status)
	assert.Equal(s.T(), portal.EquipmentStatusOperational, status.Status)
}

func (s *BreakdownServiceTestSuite) TestResolveBreakdown_TerminalConflict() {
	equipment := s.seedEquipmentWithStatus("CNC-013")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID,
		Reason:        "故障",
	})
	_, err := s.service.ResolveBreakdown(context.Background(), s.manager, record.ID)
	assert.NoError(s.T(), err)

	_, err = s.service.ResolveBreakdown(context.Background(), s.manager, record.ID)
	assert.True(s.T(), IsConflict(err))
}

func (s *BreakdownServiceTestSuite) TestListOpenBreakdowns_ScopedVisibility() {
	engineering := s.seedEquipmentWithStatus("CNC-014")
	physics := createTestEquipment(s.T(), s.db, "LASER-001", "理学院", "物理系", true)
	createTestStatus(s.T(), s.db, physics.ID, portal.EquipmentStatusOperational, time.Now())

	_, err := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: engineering.EquipmentID, Reason: "故障A",
	})
	assert.NoError(s.T(), err)
	_, err = s.service.ReportBreakdown(context.Background(), s.outsider, &ReportBreakdownDTO{
		EquipmentCode: physics.EquipmentID, Reason: "故障B",
	})
	assert.NoError(s.T(), err)

	// 策略级看到全部
	all, err := s.service.ListOpenBreakdowns(context.Background(), s.admin)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), all, 2)

	// 实验室级只看到本范围
	scoped, err := s.service.ListOpenBreakdowns(context.Background(), s.manager)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), scoped, 1)
	assert.Equal(s.T(), engineering.ID, scoped[0].EquipmentID)
}

func (s *BreakdownServiceTestSuite) TestListReorderRequests_FilterAndScope() {
	equipment := s.seedEquipmentWithStatus("CNC-015")
	record, _ := s.service.ReportBreakdown(context.Background(), s.manager, &ReportBreakdownDTO{
		EquipmentCode: equipment.EquipmentID, Reason: "故障",
	})
	request, _ := s.service.SubmitReorder(context.Background(), s.manager, &SubmitReorderDTO{BreakdownID: record.ID})

	pending, err := s.service.ListReorderRequests(context.Background(), s.admin, portal.ReorderStatusPending)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), pending, 1)

	approved, err := s.service.ListReorderRequests(context.Background(), s.admin, portal.ReorderStatusApproved)
	assert.NoError(s.T(), err)
	assert.Empty(s.T(), approved)

	// 非策略级只看到自己提交的申请
	own, err := s.service.ListReorderRequests(context.Background(), s.manager, "")
	assert.NoError(s.T(), err)
	assert.Len(s.T(), own, 1)
	assert.Equal(s.T(), request.ID, own[0].ID)

	other, err := s.service.ListReorderRequests(context.Background(), s.outsider, "")
	assert.NoError(s.T(), err)
	assert.Empty(s.T(), other)
}
