package service

import (
	"fmt"

	"labfleet-ng/models/portal"
)

// 静态阈值规则常量
const (
	TemperatureHighThreshold     = 80.0  // 温度告警阈值
	TemperatureCriticalThreshold = 100.0 // 温度严重告警阈值
	VibrationHighThreshold       = 10.0  // 振动告警阈值
	VibrationCriticalThreshold   = 15.0  // 振动严重告警阈值
	EnergyHighThreshold          = 50.0  // 能耗告警阈值
)

// 健康分扣减常量
const (
	healthScoreFull        = 100.0
	healthPenaltyCritical  = 40.0
	healthPenaltyHigh      = 25.0
	healthPenaltyMedium    = 10.0
)

// TelemetryMetrics 一次遥测上报携带的指标值，未上报的指标为 nil
type TelemetryMetrics struct {
	Temperature       *float64 `json:"temperature"`       // 温度
	Vibration         *float64 `json:"vibration"`         // 振动
	EnergyConsumption *float64 `json:"energyConsumption"` // 能耗
}

// AlertCandidate 异常检测产生的候选告警
type AlertCandidate struct {
	Type     portal.AlertType     // 告警类型
	Severity portal.AlertSeverity // 告警级别
	Title    string               // 标题
	Message  string               // 内容
}

// EvaluateThresholdRules 对上报值执行静态阈值规则.
// 只检查本次上报的值，不依赖历史聚合；多条规则可以在同一次上报中各自命中。
func EvaluateThresholdRules(metrics TelemetryMetrics) []AlertCandidate {
	var candidates []AlertCandidate

	if metrics.Temperature != nil && *metrics.Temperature > TemperatureHighThreshold {
		severity := portal.AlertSeverityHigh
		if *metrics.Temperature > TemperatureCriticalThreshold {
			severity = portal.AlertSeverityCritical
		}
		candidates = append(candidates, AlertCandidate{
			Type:     portal.AlertTypeHighTemperature,
			Severity: severity,
			Title:    TitleHighTemperature,
			Message:  fmt.Sprintf("温度 %.1f°C 超过阈值 %.0f°C", *metrics.Temperature, TemperatureHighThreshold),
		})
	}

	if metrics.Vibration != nil && *metrics.Vibration > VibrationHighThreshold {
		severity := portal.AlertSeverityHigh
		if *metrics.Vibration > VibrationCriticalThreshold {
			severity = portal.AlertSeverityCritical
		}
		candidates = append(candidates, AlertCandidate{
			Type:     portal.AlertTypeAbnormalVibration,
			Severity: severity,
			Title:    TitleAbnormalVibration,
			Message:  fmt.Sprintf("振动 %.1f 超过阈值 %.0f", *metrics.Vibration, VibrationHighThreshold),
		})
	}

	if metrics.EnergyConsumption != nil && *metrics.EnergyConsumption > EnergyHighThreshold {
		candidates = append(candidates, AlertCandidate{
			Type:     portal.AlertTypeHighEnergy,
			Severity: portal.AlertSeverityMedium,
			Title:    TitleHighEnergy,
			Message:  fmt.Sprintf("能耗 %.1f 超过阈值 %.0f", *metrics.EnergyConsumption, EnergyHighThreshold),
		})
	}

	return candidates
}

// ComputeHealthScore 根据本次命中的规则计算健康分
func ComputeHealthScore(candidates []AlertCandidate) float64 {
	score := healthScoreFull
	for _, c := range candidates {
		switch c.Severity {
		case portal.AlertSeverityCritical:
			score -= healthPenaltyCritical
		case portal.AlertSeverityHigh:
			score -= healthPenaltyHigh
		default:
			score -= healthPenaltyMedium
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// DeriveStatus 根据检测结果推导设备状态
func DeriveStatus(candidates []AlertCandidate) portal.EquipmentStatusValue {
	if len(candidates) > 0 {
		return portal.EquipmentStatusWarning
	}
	return portal.EquipmentStatusInUse
}
