package routers

import (
	"strings"

	"labfleet-ng/pkg/middleware/render"
	"labfleet-ng/server/portal/internal/service"
	"labfleet-ng/server/portal/internal/service/realtime"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

// BearerAuthMiddleware 解析 Authorization 头中的Bearer令牌，
// 鉴权通过后把操作者身份放入请求上下文。
func BearerAuthMiddleware(authenticator *realtime.TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			render.Unauthorized(c, MsgMissingBearerToken)
			c.Abort()
			return
		}

		principal, err := authenticator.Authenticate(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			render.Unauthorized(c, MsgInvalidBearerToken+err.Error())
			c.Abort()
			return
		}

		c.Set(ctxKeyActor, service.Actor{
			UserID:     principal.UserID,
			Name:       principal.Name,
			Role:       principal.Role,
			Institute:  principal.Institute,
			Department: principal.Department,
		})
		c.Next()
	}
}

// currentActor 从请求上下文取出操作者身份
func currentActor(c *gin.Context) service.Actor {
	if v, ok := c.Get(ctxKeyActor); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Actor{}
}

// renderServiceError 按服务错误码渲染HTTP响应
func renderServiceError(c *gin.Context, err error) {
	render.Fail(c, service.HTTPStatus(err), err.Error())
}
