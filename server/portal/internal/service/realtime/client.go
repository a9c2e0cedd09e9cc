/*
Package realtime 提供基于 WebSocket 的实时推送：
连接鉴权、主题订阅管理和四种发布原语（按用户/按角色/按设备/全局）。
*/
package realtime

import (
	"sync"

	"labfleet-ng/models/portal"
)

// WireConn 推送连接需要满足的最小接口.
// *websocket.Conn 满足该接口；测试中可注入伪实现。
type WireConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Client 表示一个已鉴权的 WebSocket 客户端连接
type Client struct {
	Conn     WireConn
	UserID   int64
	Role     portal.Role
	WriteMux sync.Mutex
}

// NewClient 创建新的客户端连接
func NewClient(conn WireConn, userID int64, role portal.Role) *Client {
	return &Client{
		Conn:   conn,
		UserID: userID,
		Role:   role,
	}
}

// SafeWrite 安全地写入消息
func (c *Client) SafeWrite(v interface{}) error {
	c.WriteMux.Lock()
	defer c.WriteMux.Unlock()
	return c.Conn.WriteJSON(v)
}
