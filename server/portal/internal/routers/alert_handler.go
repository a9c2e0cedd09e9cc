package routers

import (
	"strconv"

	"labfleet-ng/pkg/middleware/render"
	"labfleet-ng/server/portal/internal/service"

	"github.com/gin-gonic/gin"
)

// AlertHandler 告警与通知处理器
type AlertHandler struct {
	service *service.AlertService
}

// NewAlertHandler 创建告警处理器
func NewAlertHandler(alertService *service.AlertService) *AlertHandler {
	return &AlertHandler{service: alertService}
}

// RegisterRoutes 注册路由
func (h *AlertHandler) RegisterRoutes(api *gin.RouterGroup) {
	alertGroup := api.Group("/alert")
	{
		alertGroup.POST("/:id/resolve", h.resolveAlert)
	}

	notificationGroup := api.Group("/notification")
	{
		notificationGroup.GET("", h.listNotifications)
		notificationGroup.POST("/:id/read", h.markNotificationRead)
	}
}

// resolveAlert 将告警标记为已处理
// @Summary 处理告警
// @Description 将告警标记为已处理；重复处理是幂等操作
// @Tags 告警
// @Accept json
// @Produce json
// @Param id path int true "告警ID"
// @Success 200 {object} render.Response
// @Failure 404 {object} render.Response
// @Router /fe-v1/alert/{id}/resolve [post]
func (h *AlertHandler) resolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param(routeParamID), base10, bitSize64)
	if err != nil {
		render.BadRequest(c, MsgInvalidIDFormat)
		return
	}

	actor := currentActor(c)
	alert, err := h.service.ResolveAlert(c.Request.Context(), id, actor.Name)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, alert)
}

// listNotifications 查询当前用户的通知列表
// @Summary 查询通知列表
// @Description 查询当前用户的通知，unread=true 时只返回未读
// @Tags 通知
// @Accept json
// @Produce json
// @Param unread query bool false "只看未读"
// @Success 200 {object} render.Response
// @Router /fe-v1/notification [get]
func (h *AlertHandler) listNotifications(c *gin.Context) {
	actor := currentActor(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.service.ListNotifications(c.Request.Context(), actor.UserID, unreadOnly)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, notifications)
}

// markNotificationRead 将通知标记为已读
// @Summary 标记通知已读
// @Description 将当前用户的一条通知标记为已读
// @Tags 通知
// @Accept json
// @Produce json
// @Param id path int true "通知ID"
// @Success 200 {object} render.Response
// @Failure 404 {object} render.Response
// @Router /fe-v1/notification/{id}/read [post]
func (h *AlertHandler) markNotificationRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param(routeParamID), base10, bitSize64)
	if err != nil {
		render.BadRequest(c, MsgInvalidIDFormat)
		return
	}

	actor := currentActor(c)
	if err := h.service.MarkNotificationRead(c.Request.Context(), actor.UserID, id); err != nil {
		renderServiceError(c, err)
		return
	}

	render.SuccessWithMessage(c, "通知已标记为已读", nil)
}
