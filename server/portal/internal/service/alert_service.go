package service

import (
	"context"
	"fmt"
	"time"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/redis"
	"labfleet-ng/server/portal/internal/service/realtime"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RedisHandlerInterface 告警服务依赖的Redis操作接口
type RedisHandlerInterface interface {
	AcquireLock(key string, value string, expiry time.Duration) (bool, error)
	Delete(key string)
}

// AlertPublisher 告警推送接口，由实时推送中心实现
type AlertPublisher interface {
	PublishToUser(userID int64, v interface{})
	PublishToEquipment(code string, v interface{})
	PublishToTopic(topic string, v interface{})
}

// AlertService 告警与通知扇出服务
type AlertService struct {
	db             *gorm.DB
	directory      *DirectoryService
	publisher      AlertPublisher
	redisHandler   RedisHandlerInterface
	keyBuilder     *redis.KeyBuilder
	suppressWindow time.Duration
	logger         *zap.Logger
}

// 默认告警抑制窗口，同一设备同一类型的告警在窗口内只落一条
const DefaultSuppressWindow = 5 * time.Minute

// RaiseAlertDTO 触发告警的请求数据传输对象
type RaiseAlertDTO struct {
	Type          portal.AlertType     `json:"type"`          // 告警类型
	Severity      portal.AlertSeverity `json:"severity"`      // 告警级别
	EquipmentID   *int64               `json:"equipmentId"`   // 关联设备ID（系统级告警为空）
	EquipmentCode string               `json:"equipmentCode"` // 设备外部编码（用于主题推送）
	Title         string               `json:"title"`         // 标题
	Message       string               `json:"message"`       // 内容
}

// AlertPushMessage 推送给客户端的告警消息
type AlertPushMessage struct {
	Kind     string               `json:"kind"`
	AlertID  int64                `json:"alertId"`
	Type     portal.AlertType     `json:"type"`
	Severity portal.AlertSeverity `json:"severity"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Equipment string              `json:"equipment,omitempty"`
}

// NotificationPushMessage 推送给客户端的个人通知消息
type NotificationPushMessage struct {
	Kind           string `json:"kind"`
	NotificationID int64  `json:"notificationId"`
	AlertID        *int64 `json:"alertId,omitempty"`
	Title          string `json:"title"`
	Message        string `json:"message"`
}

// NewAlertService 创建告警服务
func NewAlertService(db *gorm.DB, directory *DirectoryService, publisher AlertPublisher,
	redisHandler RedisHandlerInterface, keyBuilder *redis.KeyBuilder, logger *zap.Logger) *AlertService {
	return &AlertService{
		db:             db,
		directory:      directory,
		publisher:      publisher,
		redisHandler:   redisHandler,
		keyBuilder:     keyBuilder,
		suppressWindow: DefaultSuppressWindow,
		logger:         logger,
	}
}

// SetSuppressWindow 调整告警抑制窗口（0表示关闭抑制）
func (s *AlertService) SetSuppressWindow(window time.Duration) {
	s.suppressWindow = window
}

// RaiseAlert 创建告警并向全部接收人扇出通知.
// 告警与通知在同一事务内落库，不允许出现只有告警没有通知的部分写入；
// 接收人为空时仍然创建告警（保留审计轨迹），只是没有通知行。
// 返回 nil 告警表示该告警在抑制窗口内被丢弃。
func (s *AlertService) RaiseAlert(ctx context.Context, dto *RaiseAlertDTO) (*portal.Alert, error) {
	suppressKey, suppressed := s.claimSuppression(dto)
	if suppressed {
		s.logger.Info("Alert suppressed within dedup window",
			zap.String("alertType", string(dto.Type)),
			zap.String("equipmentCode", dto.EquipmentCode))
		return nil, nil
	}

	// 解析接收人：策略级角色 + 范围匹配的实验室管理员
	var equipment *portal.Equipment
	if dto.EquipmentID != nil {
		var eq portal.Equipment
		if err := s.db.WithContext(ctx).First(&eq, *dto.EquipmentID).Error; err != nil {
			s.releaseSuppression(suppressKey)
			return nil, HandleDBError(err, ResourceEquipment, *dto.EquipmentID)
		}
		equipment = &eq
	}

	recipients, err := s.directory.ResolveAlertRecipients(ctx, dto.Type, equipment)
	if err != nil {
		s.releaseSuppression(suppressKey)
		return nil, err
	}

	alert := portal.Alert{
		Type:        dto.Type,
		Severity:    dto.Severity,
		EquipmentID: dto.EquipmentID,
		Title:       dto.Title,
		Message:     dto.Message,
	}

	// 告警与通知单事务写入
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&alert).Error; err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}
		notifications := make([]portal.Notification, 0, len(recipients))
		for _, userID := range recipients {
			notifications = append(notifications, portal.Notification{
				UserID:  userID,
				AlertID: &alert.ID,
				Title:   dto.Title,
				Message: dto.Message,
			})
		}
		return tx.Create(&notifications).Error
	})
	if err != nil {
		// 落库失败时释放抑制键，否则同一候选的重试会被整窗误抑制
		s.releaseSuppression(suppressKey)
		return nil, NewUnavailableError("failed to create alert with notifications", err)
	}

	s.publishAlert(&alert, dto.EquipmentCode, recipients)

	s.logger.Info("Alert raised",
		zap.Int64("alertID", alert.ID),
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.Int("recipientCount", len(recipients)))

	return &alert, nil
}

// claimSuppression 尝试占用抑制窗口.
// 返回已占用的键，供写入失败时释放；suppressed 为真表示窗口已被占用。
func (s *AlertService) claimSuppression(dto *RaiseAlertDTO) (key string, suppressed bool) {
	if s.suppressWindow <= 0 || dto.EquipmentID == nil || s.redisHandler == nil {
		return EmptyString, false
	}
	key = s.keyBuilder.AlertSuppressKey(*dto.EquipmentID, string(dto.Type))
	acquired, err := s.redisHandler.AcquireLock(key, fmt.Sprintf("%d", time.Now().UnixNano()), s.suppressWindow)
	if err != nil {
		// 抑制只是优化，Redis不可用时放行告警
		s.logger.Warn("Alert suppression check failed, allowing alert", zap.Error(err))
		return EmptyString, false
	}
	if !acquired {
		return EmptyString, true
	}
	return key, false
}

// releaseSuppression 释放已占用的抑制键
func (s *AlertService) releaseSuppression(key string) {
	if key == EmptyString || s.redisHandler == nil {
		return
	}
	s.redisHandler.Delete(key)
}

// publishAlert 向实时主题推送告警与通知.
// 推送相对写路径是"发后不管"，失败不回滚也不阻塞。
func (s *AlertService) publishAlert(alert *portal.Alert, equipmentCode string, recipients []int64) {
	if s.publisher == nil {
		return
	}

	push := AlertPushMessage{
		Kind:      "alert",
		AlertID:   alert.ID,
		Type:      alert.Type,
		Severity:  alert.Severity,
		Title:     alert.Title,
		Message:   alert.Message,
		Equipment: equipmentCode,
	}
	if equipmentCode != EmptyString {
		s.publisher.PublishToEquipment(equipmentCode, push)
	}
	// 发布到全局告警主题而不是广播：退订 alerts:all 的连接不再收到
	s.publisher.PublishToTopic(realtime.TopicAllAlerts, push)

	for _, userID := range recipients {
		s.publisher.PublishToUser(userID, NotificationPushMessage{
			Kind:    "notification",
			AlertID: &alert.ID,
			Title:   alert.Title,
			Message: alert.Message,
		})
	}
}

// ResolveAlert 将告警标记为已处理.
// 对已处理的告警重复调用是幂等空操作，不报错也不产生新通知。
func (s *AlertService) ResolveAlert(ctx context.Context, alertID int64, resolver string) (*portal.Alert, error) {
	var alert portal.Alert
	if err := s.db.WithContext(ctx).First(&alert, alertID).Error; err != nil {
		return nil, HandleDBError(err, ResourceAlert, alertID)
	}

	if alert.Resolved {
		return &alert, nil
	}

	now := time.Now()
	err := s.db.WithContext(ctx).Model(&alert).Updates(map[string]interface{}{
		"resolved":    true,
		"resolved_by": resolver,
		"resolved_at": now,
	}).Error
	if err != nil {
		return nil, NewUnavailableError("failed to resolve alert", err)
	}

	alert.Resolved = true
	alert.ResolvedBy = resolver
	alert.ResolvedAt = &now
	return &alert, nil
}

// NotifyUsers 直接向一组用户发送通知（不创建父告警）.
// 用于故障流程的状态变更提醒；通知行单事务写入后推送到个人主题。
func (s *AlertService) NotifyUsers(ctx context.Context, userIDs []int64, alertID *int64, title, message string) error {
	if len(userIDs) == 0 {
		return nil
	}

	notifications := make([]portal.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, portal.Notification{
			UserID:  userID,
			AlertID: alertID,
			Title:   title,
			Message: message,
		})
	}
	if err := s.db.WithContext(ctx).Create(&notifications).Error; err != nil {
		return NewUnavailableError("failed to create notifications", err)
	}

	if s.publisher != nil {
		for i := range notifications {
			n := notifications[i]
			s.publisher.PublishToUser(n.UserID, NotificationPushMessage{
				Kind:           "notification",
				NotificationID: n.ID,
				AlertID:        n.AlertID,
				Title:          n.Title,
				Message:        n.Message,
			})
		}
	}
	return nil
}

// ListNotifications 查询用户的通知列表
func (s *AlertService) ListNotifications(ctx context.Context, userID int64, unreadOnly bool) ([]portal.Notification, error) {
	db := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		db = db.Where("read = ?", false)
	}

	var notifications []portal.Notification
	if err := db.Order("id DESC").Find(&notifications).Error; err != nil {
		return nil, NewUnavailableError("failed to list notifications", err)
	}
	return notifications, nil
}

// MarkNotificationRead 将通知标记为已读
func (s *AlertService) MarkNotificationRead(ctx context.Context, userID, notificationID int64) error {
	var notification portal.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error
	if err != nil {
		return HandleDBError(err, "notification", notificationID)
	}

	if notification.Read {
		return nil
	}
	err = s.db.WithContext(ctx).Model(&notification).Update("read", true).Error
	if err != nil {
		return NewUnavailableError("failed to mark notification read", err)
	}
	return nil
}
