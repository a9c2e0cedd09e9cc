package redis

import (
	"fmt"
	"strings"
)

// 全局前缀，用于区分不同环境或应用
const (
	GlobalPrefix = "labfleet"
)

// 模块前缀
const (
	AlertModule = "alert"
	SweepModule = "sweep"
	// 其他模块...
)

// 键模板
const (
	// 告警抑制窗口键模板
	AlertSuppressKeyTpl = "%s:%s:%s:suppress:%d:%s" // {global}:{module}:{version}:suppress:{equipment_id}:{alert_type}

	// 闲置巡检单飞锁键
	SweepLockKeyTpl = "%s:%s:%s:lock" // {global}:{module}:{version}:lock
)

// KeyBuilder 提供构建Redis键的方法
type KeyBuilder struct {
	globalPrefix string
	version      string
}

// NewKeyBuilder 创建一个新的KeyBuilder实例
func NewKeyBuilder(globalPrefix string, version string) *KeyBuilder {
	if globalPrefix == "" {
		globalPrefix = GlobalPrefix
	}
	if version == "" {
		version = "v1" // 默认版本
	}
	return &KeyBuilder{globalPrefix: globalPrefix, version: version}
}

// AlertSuppressKey 构建告警抑制窗口键
func (kb *KeyBuilder) AlertSuppressKey(equipmentID int64, alertType string) string {
	return fmt.Sprintf(AlertSuppressKeyTpl, kb.globalPrefix, AlertModule, kb.version, equipmentID, alertType)
}

// SweepLockKey 构建闲置巡检锁键
func (kb *KeyBuilder) SweepLockKey() string {
	return fmt.Sprintf(SweepLockKeyTpl, kb.globalPrefix, SweepModule, kb.version)
}

// GetModuleFromKey 从键中提取模块名
func (kb *KeyBuilder) GetModuleFromKey(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

// GetKeyPattern 获取特定模块的通用键模式
func (kb *KeyBuilder) GetKeyPattern(module string) string {
	return fmt.Sprintf("%s:%s:%s:*", kb.globalPrefix, module, kb.version)
}
