package routers

import (
	"net/http"
	"strings"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/middleware/render"
	"labfleet-ng/server/portal/internal/service"
	"labfleet-ng/server/portal/internal/service/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 订阅协议动作
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// subscribeMessage 客户端订阅协议消息
type subscribeMessage struct {
	Action string `json:"action"` // subscribe / unsubscribe
	Topic  string `json:"topic"`  // 主题名
}

// RealtimeHandler 实时推送连接处理器
type RealtimeHandler struct {
	db            *gorm.DB
	hub           *realtime.Hub
	authenticator *realtime.TokenAuthenticator
	upgrader      websocket.Upgrader
	logger        *zap.Logger
}

// NewRealtimeHandler 创建实时推送处理器
func NewRealtimeHandler(db *gorm.DB, hub *realtime.Hub, authenticator *realtime.TokenAuthenticator, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		db:            db,
		hub:           hub,
		authenticator: authenticator,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *RealtimeHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.handleWebSocket)
}

// handleWebSocket 处理实时推送连接.
// 鉴权在升级前完成：令牌取自 Authorization 头或 token 查询参数，
// 鉴权失败直接返回401，不做WebSocket升级。
func (h *RealtimeHandler) handleWebSocket(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), bearerPrefix)
	if token == realtime.EmptyToken {
		token = c.Query("token")
	}

	principal, err := h.authenticator.Authenticate(token)
	if err != nil {
		render.Unauthorized(c, MsgInvalidBearerToken+err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		render.InternalServerError(c, MsgWebSocketUpgrade+err.Error())
		return
	}

	client := realtime.NewClient(conn, principal.UserID, principal.Role)
	h.hub.Connect(client)
	defer h.hub.Disconnect(client)

	h.readLoop(conn, client, principal)
}

// readLoop 处理连接上的订阅协议消息，连接断开时返回
func (h *RealtimeHandler) readLoop(conn *websocket.Conn, client *realtime.Client, principal *realtime.Principal) {
	for {
		var msg subscribeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Realtime connection closed unexpectedly",
					zap.Int64("userID", principal.UserID),
					zap.Error(err))
			}
			return
		}

		switch msg.Action {
		case actionSubscribe:
			if !h.canSubscribe(principal, msg.Topic) {
				h.logger.Debug("Subscription refused",
					zap.Int64("userID", principal.UserID),
					zap.String("topic", msg.Topic))
				continue
			}
			h.hub.Subscribe(client, msg.Topic)
		case actionUnsubscribe:
			h.hub.Unsubscribe(client, msg.Topic)
		default:
			// 非法消息直接忽略，不中断连接
		}
	}
}

// canSubscribe 校验订阅目标是否在连接身份的可见范围内.
// 个人主题只能订阅自己的；角色主题只能订阅自己角色的；
// 设备主题要求设备在操作者可见范围内。
func (h *RealtimeHandler) canSubscribe(principal *realtime.Principal, topic string) bool {
	switch {
	case topic == realtime.TopicAllAlerts:
		return true
	case topic == realtime.UserTopic(principal.UserID):
		return true
	case topic == realtime.RoleTopic(principal.Role):
		return true
	case strings.HasPrefix(topic, "equipment:"):
		return h.canWatchEquipment(principal, strings.TrimPrefix(topic, "equipment:"))
	default:
		return false
	}
}

func (h *RealtimeHandler) canWatchEquipment(principal *realtime.Principal, code string) bool {
	actor := service.Actor{
		UserID:     principal.UserID,
		Role:       principal.Role,
		Institute:  principal.Institute,
		Department: principal.Department,
	}
	if actor.Role.IsPolicyLevel() {
		return true
	}

	var equipment portal.Equipment
	if err := h.db.Where("equipment_id = ?", code).First(&equipment).Error; err != nil {
		return false
	}
	return actor.CanAccess(&equipment)
}
