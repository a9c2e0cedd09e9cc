package routers

import (
	"labfleet-ng/pkg/middleware/render"
	"labfleet-ng/server/portal/internal/service"

	"github.com/gin-gonic/gin"
)

// SweepHandler 闲置巡检处理器
type SweepHandler struct {
	monitor *service.InactivitySweepMonitor
}

// NewSweepHandler 创建闲置巡检处理器
func NewSweepHandler(monitor *service.InactivitySweepMonitor) *SweepHandler {
	return &SweepHandler{monitor: monitor}
}

// RegisterRoutes 注册路由
func (h *SweepHandler) RegisterRoutes(api *gin.RouterGroup) {
	sweepGroup := api.Group("/sweep")
	{
		sweepGroup.POST("/run", h.runSweep)
	}
}

// runSweep 手动触发一次闲置巡检
// @Summary 手动触发闲置巡检
// @Description 立即执行一次闲置设备扫描；已有巡检执行中时返回409
// @Tags 巡检
// @Accept json
// @Produce json
// @Success 200 {object} render.Response
// @Failure 409 {object} render.Response
// @Failure 503 {object} render.Response
// @Router /fe-v1/sweep/run [post]
func (h *SweepHandler) runSweep(c *gin.Context) {
	result, err := h.monitor.RunSweep(c.Request.Context())
	if err != nil {
		renderServiceError(c, err)
		return
	}

	render.Success(c, result)
}
