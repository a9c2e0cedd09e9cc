package routers

import (
	"labfleet-ng/pkg/middleware/render"
	"labfleet-ng/server/portal/internal/service"

	"github.com/gin-gonic/gin"
)

// TelemetryHandler 遥测接入处理器
type TelemetryHandler struct {
	service *service.TelemetryService
}

// NewTelemetryHandler 创建遥测接入处理器
func NewTelemetryHandler(telemetryService *service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{service: telemetryService}
}

// RegisterRoutes 注册路由
func (h *TelemetryHandler) RegisterRoutes(api *gin.RouterGroup) {
	telemetryGroup := api.Group("/telemetry")
	{
		telemetryGroup.POST("/report", h.reportTelemetry)
		telemetryGroup.GET("/status/:code", h.getEquipmentStatus)
	}
}

// reportTelemetry 处理设备遥测上报
// @Summary 设备遥测上报
// @Description 接收设备上报的温度/振动/能耗指标，更新设备状态并触发异常检测
// @Tags 遥测
// @Accept json
// @Produce json
// @Param request body service.TelemetryReportDTO true "遥测上报数据"
// @Success 200 {object} render.Response
// @Failure 400 {object} render.Response
// @Failure 404 {object} render.Response
// @Failure 503 {object} render.Response
// @Router /fe-v1/telemetry/report [post]
func (h *TelemetryHandler) reportTelemetry(c *gin.Context) {
	var report service.TelemetryReportDTO
	if err := c.ShouldBindJSON(&report); err != nil {
		render.BadRequest(c, MsgInvalidRequestBody+err.Error())
		return
	}

	status, err := h.service.ReportTelemetry(c.Request.Context(), &report)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, status)
}

// getEquipmentStatus 查询设备最新状态
// @Summary 查询设备最新状态
// @Description 按设备外部编码查询最近一次上报形成的状态
// @Tags 遥测
// @Accept json
// @Produce json
// @Param code path string true "设备外部编码"
// @Success 200 {object} render.Response
// @Failure 404 {object} render.Response
// @Router /fe-v1/telemetry/status/{code} [get]
func (h *TelemetryHandler) getEquipmentStatus(c *gin.Context) {
	code := c.Param(routeParamCode)
	if code == "" {
		render.BadRequest(c, "设备编码不能为空")
		return
	}

	status, err := h.service.GetEquipmentStatus(c.Request.Context(), code)
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, status)
}
