package routers

import (
	"strconv"

	"labfleet-ng/models/portal"
	"labfleet-ng/pkg/middleware/render"
	"labfleet-ng/server/portal/internal/service"

	"github.com/gin-gonic/gin"
)

// BreakdownHandler 故障与备件重购处理器
type BreakdownHandler struct {
	service *service.BreakdownService
}

// NewBreakdownHandler 创建故障处理器
func NewBreakdownHandler(breakdownService *service.BreakdownService) *BreakdownHandler {
	return &BreakdownHandler{service: breakdownService}
}

// RegisterRoutes 注册路由
func (h *BreakdownHandler) RegisterRoutes(api *gin.RouterGroup) {
	breakdownGroup := api.Group("/breakdown")
	{
		breakdownGroup.POST("/report", h.reportBreakdown)
		breakdownGroup.POST("/respond", h.respondToAlert)
		breakdownGroup.POST("/:id/resolve", h.resolveBreakdown)
		breakdownGroup.GET("/open", h.listOpenBreakdowns)
	}

	reorderGroup := api.Group("/reorder")
	{
		reorderGroup.POST("", h.submitReorder)
		reorderGroup.POST("/review", h.reviewReorder)
		reorderGroup.GET("", h.listReorderRequests)
	}
}

// reportBreakdown 人工上报设备故障
// @Summary 上报设备故障
// @Description 为一台设备创建故障记录；设备已有未关闭记录时返回409
// @Tags 故障
// @Accept json
// @Produce json
// @Param request body service.ReportBreakdownDTO true "故障上报信息"
// @Success 200 {object} render.Response
// @Failure 400 {object} render.Response
// @Failure 403 {object} render.Response
// @Failure 404 {object} render.Response
// @Failure 409 {object} render.Response
// @Router /fe-v1/breakdown/report [post]
func (h *BreakdownHandler) reportBreakdown(c *gin.Context) {
	var dto service.ReportBreakdownDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		render.BadRequest(c, MsgInvalidRequestBody+err.Error())
		return
	}

	record, err := h.service.ReportBreakdown(c.Request.Context(), currentActor(c), &dto)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, record)
}

// respondToAlert 对巡检告警做人工反馈
// @Summary 反馈巡检告警
// @Description 确认或否认一条疑似故障告警；确认时自动创建故障记录
// @Tags 故障
// @Accept json
// @Produce json
// @Param request body service.RespondToAlertDTO true "反馈信息"
// @Success 200 {object} render.Response
// @Failure 400 {object} render.Response
// @Failure 404 {object} render.Response
// @Failure 409 {object} render.Response
// @Router /fe-v1/breakdown/respond [post]
func (h *BreakdownHandler) respondToAlert(c *gin.Context) {
	var dto service.RespondToAlertDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		render.BadRequest(c, MsgInvalidRequestBody+err.Error())
		return
	}

	record, err := h.service.RespondToAlert(c.Request.Context(), currentActor(c), &dto)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, record)
}

// resolveBreakdown 关闭故障记录
// @Summary 关闭故障记录
// @Description 将故障记录置为已解决并恢复设备状态
// @Tags 故障
// @Accept json
// @Produce json
// @Param id path int true "故障记录ID"
// @Success 200 {object} render.Response
// @Failure 403 {object} render.Response
// @Failure 404 {object} render.Response
// @Failure 409 {object} render.Response
// @Router /fe-v1/breakdown/{id}/resolve [post]
func (h *BreakdownHandler) resolveBreakdown(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param(routeParamID), base10, bitSize64)
	if err != nil {
		render.BadRequest(c, MsgInvalidIDFormat)
		return
	}

	record, err := h.service.ResolveBreakdown(c.Request.Context(), currentActor(c), id)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, record)
}

// listOpenBreakdowns 查询未关闭的故障记录
// @Summary 查询未关闭故障
// @Description 查询操作者可见范围内的未关闭故障记录
// @Tags 故障
// @Accept json
// @Produce json
// @Success 200 {object} render.Response
// @Router /fe-v1/breakdown/open [get]
func (h *BreakdownHandler) listOpenBreakdowns(c *gin.Context) {
	records, err := h.service.ListOpenBreakdowns(c.Request.Context(), currentActor(c))
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, records)
}

// submitReorder 提交备件重购申请
// @Summary 提交备件申请
// @Description 为一条故障记录提交备件重购申请，提交后父记录进入待审状态
// @Tags 备件
// @Accept json
// @Produce json
// @Param request body service.SubmitReorderDTO true "备件申请信息"
// @Success 200 {object} render.Response
// @Failure 403 {object} render.Response
// @Failure 404 {object} render.Response
// @Failure 409 {object} render.Response
// @Router /fe-v1/reorder [post]
func (h *BreakdownHandler) submitReorder(c *gin.Context) {
	var dto service.SubmitReorderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		render.BadRequest(c, MsgInvalidRequestBody+err.Error())
		return
	}

	request, err := h.service.SubmitReorder(c.Request.Context(), currentActor(c), &dto)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, request)
}

// reviewReorder 审核备件重购申请
// @Summary 审核备件申请
// @Description 策略级角色批准或驳回备件申请；重复审核返回409
// @Tags 备件
// @Accept json
// @Produce json
// @Param request body service.ReviewReorderDTO true "审核信息"
// @Success 200 {object} render.Response
// @Failure 400 {object} render.Response
// @Failure 403 {object} render.Response
// @Failure 409 {object} render.Response
// @Router /fe-v1/reorder/review [post]
func (h *BreakdownHandler) reviewReorder(c *gin.Context) {
	var dto service.ReviewReorderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		render.BadRequest(c, MsgInvalidRequestBody+err.Error())
		return
	}

	request, err := h.service.ReviewReorder(c.Request.Context(), currentActor(c), &dto)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, request)
}

// listReorderRequests 查询备件申请列表
// @Summary 查询备件申请列表
// @Description 按状态过滤查询备件申请；实验室级角色只能看到自己提交的申请
// @Tags 备件
// @Accept json
// @Produce json
// @Param status query string false "申请状态 PENDING/APPROVED/REJECTED/CANCELLED"
// @Success 200 {object} render.Response
// @Router /fe-v1/reorder [get]
func (h *BreakdownHandler) listReorderRequests(c *gin.Context) {
	statusFilter := portal.ReorderStatus(c.Query("status"))

	requests, err := h.service.ListReorderRequests(c.Request.Context(), currentActor(c), statusFilter)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, requests)
}
