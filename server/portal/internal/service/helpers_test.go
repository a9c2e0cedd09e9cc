package service

import (
	"sync"
	"testing"
	"time"

	"labfleet-ng/models/portal"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockRedisHandler is a mock implementation of RedisHandlerInterface
type MockRedisHandler struct {
	mock.Mock
}

func (m *MockRedisHandler) AcquireLock(key string, value string, expiry time.Duration) (bool, error) {
	args := m.Called(key, value, expiry)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedisHandler) Delete(key string) {
	m.Called(key)
}

// fakePublisher 记录推送调用，供断言使用
type fakePublisher struct {
	mu            sync.Mutex
	userMessages  map[int64][]interface{}
	equipmentMsgs map[string][]interface{}
	topicMessages map[string][]interface{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		userMessages:  make(map[int64][]interface{}),
		equipmentMsgs: make(map[string][]interface{}),
		topicMessages: make(map[string][]interface{}),
	}
}

func (p *fakePublisher) PublishToUser(userID int64, v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userMessages[userID] = append(p.userMessages[userID], v)
}

func (p *fakePublisher) PublishToEquipment(code string, v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.equipmentMsgs[code] = append(p.equipmentMsgs[code], v)
}

func (p *fakePublisher) PublishToTopic(topic string, v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topicMessages[topic] = append(p.topicMessages[topic], v)
}

func (p *fakePublisher) userMessageCount(userID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.userMessages[userID])
}

func (p *fakePublisher) equipmentMessageCount(code string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.equipmentMsgs[code])
}

func (p *fakePublisher) topicMessageCount(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.topicMessages[topic])
}

// newTestDB 创建内存数据库并完成迁移
func newTestDB(t testing.TB) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只允许单连接，避免连接间看不到表
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&portal.User{},
		&portal.Equipment{},
		&portal.EquipmentStatus{},
		&portal.SensorReading{},
		&portal.Alert{},
		&portal.Notification{},
		&portal.BreakdownRecord{},
		&portal.ReorderRequest{},
	))
	return db
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func createTestUser(t testing.TB, db *gorm.DB, name string, role portal.Role, institute, department string) *portal.User {
	user := &portal.User{
		Name:       name,
		Email:      name + "@labfleet.test",
		Role:       role,
		Institute:  institute,
		Department: department,
		Active:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestEquipment(t testing.TB, db *gorm.DB, code, institute, department string, active bool) *portal.Equipment {
	equipment := &portal.Equipment{
		EquipmentID: code,
		Name:        "测试设备-" + code,
		Model:       "T-1000",
		Institute:   institute,
		Department:  department,
		Lab:         "测试实验室",
		Active:      active,
	}
	require.NoError(t, db.Create(equipment).Error)
	if !active {
		// active 带 default:true 标签，零值在 Create 时会被忽略，需显式更新
		require.NoError(t, db.Model(equipment).Update("active", false).Error)
	}
	return equipment
}

func createTestStatus(t testing.TB, db *gorm.DB, equipmentID int64, status portal.EquipmentStatusValue, lastUsedAt time.Time) *portal.EquipmentStatus {
	row := &portal.EquipmentStatus{
		EquipmentID: equipmentID,
		Status:      status,
		HealthScore: 100,
		LastUsedAt:  lastUsedAt,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func floatPtr(v float64) *float64 {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
