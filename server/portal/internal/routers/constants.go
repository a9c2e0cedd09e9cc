package routers

// 路由参数与解析常量
const (
	routeParamID   = "id"
	routeParamCode = "code"
	base10         = 10
	bitSize64      = 64
)

// 上下文键
const (
	ctxKeyActor = "actor"
)

// 通用错误消息
const (
	MsgInvalidIDFormat    = "无效的ID格式"
	MsgInvalidRequestBody = "无效的请求格式: "
	MsgMissingBearerToken = "缺少Bearer令牌"
	MsgInvalidBearerToken = "Bearer令牌无效: "
	MsgWebSocketUpgrade   = "WebSocket升级失败: "
)
