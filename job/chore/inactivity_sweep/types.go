package inactivity_sweep

import "time"

// 巡检默认参数
const (
	DefaultThresholdDays = 15
	lockTTL              = 10 * time.Minute
)

// 告警标题
const (
	alertTitle = "设备疑似故障，请核查"
)

// SweepSummary 一次巡检的汇总结果
type SweepSummary struct {
	ScannedAt    time.Time // 执行时间
	MatchedCount int       // 命中的闲置设备数
	AlertCount   int       // 实际产生的告警数
}

// inactiveRow 巡检查询结果行
type inactiveRow struct {
	ID          int64
	EquipmentID string
	Name        string
	Institute   string
	Department  string
	LastUsedAt  time.Time
}
