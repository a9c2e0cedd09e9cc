package service

import (
	"context"

	"labfleet-ng/models/portal"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor 当前操作者的身份与可见范围
type Actor struct {
	UserID     int64       // 用户ID
	Name       string      // 姓名
	Role       portal.Role // 角色
	Institute  string      // 所属学院
	Department string      // 所属系部
}

// CanAccess 判断操作者是否可以访问指定设备.
// 策略级角色不受范围限制；实验室级角色要求学院+系部完全匹配。
func (a Actor) CanAccess(equipment *portal.Equipment) bool {
	if a.Role.IsPolicyLevel() {
		return true
	}
	return a.Institute == equipment.Institute && a.Department == equipment.Department
}

// DirectoryService 范围化用户目录服务，负责解析告警接收人
type DirectoryService struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewDirectoryService 创建用户目录服务
func NewDirectoryService(db *gorm.DB, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{db: db, logger: logger}
}

// FindUsersByRoleAndScope 按角色与范围查询用户ID.
// institute/department 为空字符串时不做范围过滤（用于策略级角色）。
func (s *DirectoryService) FindUsersByRoleAndScope(ctx context.Context, role portal.Role, institute, department string) ([]int64, error) {
	db := s.db.WithContext(ctx).Model(&portal.User{}).
		Where("role = ? AND active = ?", role, true)
	if institute != EmptyString {
		db = db.Where("institute = ?", institute)
	}
	if department != EmptyString {
		db = db.Where("department = ?", department)
	}

	var userIDs []int64
	if err := db.Pluck("id", &userIDs).Error; err != nil {
		return nil, NewUnavailableError("failed to query users by role and scope", err)
	}
	return userIDs, nil
}

// ResolveAlertRecipients 解析一条告警的接收人集合.
// 策略级角色始终包含；实验室级管理员只在其学院+系部与设备匹配时包含。
// BREAKDOWN_CHECK 告警例外：只发给匹配范围的实验室管理员。
func (s *DirectoryService) ResolveAlertRecipients(ctx context.Context, alertType portal.AlertType, equipment *portal.Equipment) ([]int64, error) {
	seen := make(map[int64]bool)
	var recipients []int64

	appendAll := func(ids []int64) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				recipients = append(recipients, id)
			}
		}
	}

	if alertType != portal.AlertTypeBreakdownCheck {
		for _, role := range []portal.Role{portal.RoleAdmin, portal.RolePolicyMaker} {
			ids, err := s.FindUsersByRoleAndScope(ctx, role, EmptyString, EmptyString)
			if err != nil {
				return nil, err
			}
			appendAll(ids)
		}
	}

	if equipment != nil {
		ids, err := s.FindUsersByRoleAndScope(ctx, portal.RoleLabManager, equipment.Institute, equipment.Department)
		if err != nil {
			return nil, err
		}
		appendAll(ids)
	}

	s.logger.Debug("Resolved alert recipients",
		zap.String("alertType", string(alertType)),
		zap.Int("recipientCount", len(recipients)))

	return recipients, nil
}

// FindPolicyLevelUsers 查询全部策略级用户ID（用于备件申请通知）
func (s *DirectoryService) FindPolicyLevelUsers(ctx context.Context) ([]int64, error) {
	var userIDs []int64
	err := s.db.WithContext(ctx).Model(&portal.User{}).
		Where("role IN (?) AND active = ?", []portal.Role{portal.RoleAdmin, portal.RolePolicyMaker}, true).
		Pluck("id", &userIDs).Error
	if err != nil {
		return nil, NewUnavailableError("failed to query policy level users", err)
	}
	return userIDs, nil
}
