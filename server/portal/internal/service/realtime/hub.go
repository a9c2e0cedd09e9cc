package realtime

import (
	"fmt"
	"sync"

	"labfleet-ng/models/portal"

	"go.uber.org/zap"
)

// 主题命名
const (
	TopicAllAlerts = "alerts:all"
)

// UserTopic 构建用户个人主题名
func UserTopic(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// RoleTopic 构建角色主题名
func RoleTopic(role portal.Role) string {
	return fmt.Sprintf("role:%s", role)
}

// EquipmentTopic 构建设备主题名
func EquipmentTopic(code string) string {
	return fmt.Sprintf("equipment:%s", code)
}

// Hub 连接与主题订阅注册表.
// 进程内唯一实例，内部自带同步，订阅/退订/发布可并发调用；
// 生命周期显式管理：启动时创建，关闭时 Shutdown。
type Hub struct {
	mu           sync.RWMutex
	clients      map[*Client]bool
	topics       map[string]map[*Client]bool
	clientTopics map[*Client]map[string]bool
	logger       *zap.Logger
}

// NewHub 创建连接注册表
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		topics:       make(map[string]map[*Client]bool),
		clientTopics: make(map[*Client]map[string]bool),
		logger:       logger,
	}
}

// Connect 注册一个新连接并完成默认订阅：
// 个人主题、角色主题与全局告警主题。
func (h *Hub) Connect(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.Subscribe(client, UserTopic(client.UserID))
	h.Subscribe(client, RoleTopic(client.Role))
	h.Subscribe(client, TopicAllAlerts)

	h.logger.Info("Realtime client connected",
		zap.Int64("userID", client.UserID),
		zap.String("role", string(client.Role)))
}

// Subscribe 将连接订阅到指定主题
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[client] {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]bool)
	}
	h.topics[topic][client] = true

	if h.clientTopics[client] == nil {
		h.clientTopics[client] = make(map[string]bool)
	}
	h.clientTopics[client][topic] = true
}

// Unsubscribe 将连接从指定主题退订
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.clientTopics[client]; ok {
		delete(topics, topic)
	}
}

// Disconnect 移除连接并清理其全部订阅.
// 断连属于被动清理，不触发任何业务状态变更。
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.clientTopics[client] {
		if subs, ok := h.topics[topic]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.clientTopics, client)
	delete(h.clients, client)
}

// SubscriberCount 返回主题当前订阅数（用于测试与诊断）
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// PublishToTopic 向主题的全部订阅者推送消息.
// 推送失败（客户端已断开等）只记录日志，永远不向调用方传播。
func (h *Hub) PublishToTopic(topic string, v interface{}) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.topics[topic]))
	for client := range h.topics[topic] {
		subs = append(subs, client)
	}
	h.mu.RUnlock()

	for _, client := range subs {
		go func(c *Client) {
			if err := c.SafeWrite(v); err != nil {
				h.logger.Debug("Failed to push message to client",
					zap.Int64("userID", c.UserID),
					zap.String("topic", topic),
					zap.Error(err))
			}
		}(client)
	}
}

// PublishToUser 向单个用户的个人主题推送
func (h *Hub) PublishToUser(userID int64, v interface{}) {
	h.PublishToTopic(UserTopic(userID), v)
}

// PublishToRole 向某角色的全部连接推送
func (h *Hub) PublishToRole(role portal.Role, v interface{}) {
	h.PublishToTopic(RoleTopic(role), v)
}

// PublishToEquipment 向某设备主题的订阅者推送
func (h *Hub) PublishToEquipment(code string, v interface{}) {
	h.PublishToTopic(EquipmentTopic(code), v)
}

// PublishToAll 向全部在线连接广播
func (h *Hub) PublishToAll(v interface{}) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		go func(c *Client) {
			if err := c.SafeWrite(v); err != nil {
				h.logger.Debug("Failed to broadcast message to client",
					zap.Int64("userID", c.UserID),
					zap.Error(err))
			}
		}(client)
	}
}

// Shutdown 关闭全部连接并清空注册表
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[*Client]bool)
	h.topics = make(map[string]map[*Client]bool)
	h.clientTopics = make(map[*Client]map[string]bool)

	h.logger.Info("Realtime hub shutdown completed")
}
