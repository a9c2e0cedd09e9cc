package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"labfleet-ng/models/portal"
)

// 样例数据常量
const (
	instituteEngineering = "工程学院"
	instituteScience     = "理学院"

	departmentMechanical = "机械工程系"
	departmentPhysics    = "物理系"

	labPrecision = "精密加工实验室"
	labOptics    = "光学实验室"
)

// ClearAndSeedDatabase 清空业务表并写入一致的样例数据（仅开发环境使用）
func ClearAndSeedDatabase(db *gorm.DB) {
	log.Println("Starting database clearing and seeding...")

	// 先清子表再清父表
	tablesToClear := []string{
		"notification",     // 依赖 alert、user
		"alert",            // 依赖 equipment
		"reorder_request",  // 依赖 breakdown_record
		"breakdown_record", // 依赖 equipment
		"sensor_reading",   // 依赖 equipment
		"equipment_status", // 依赖 equipment
		"equipment",
		"user",
	}

	log.Println("Clearing tables...")
	for _, table := range tablesToClear {
		if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			log.Printf("Warning: failed to clear table %s: %v. Seeding might be incomplete.", table, err)
		}
	}

	seedUsers(db)
	seedEquipment(db)

	log.Println("Database seeding completed.")
}

func seedUsers(db *gorm.DB) {
	users := []portal.User{
		{Name: "系统管理员", Email: "admin@labfleet.edu", Role: portal.RoleAdmin, Active: true},
		{Name: "设备规划处", Email: "policy@labfleet.edu", Role: portal.RolePolicyMaker, Active: true},
		{Name: "张工", Email: "zhang@labfleet.edu", Role: portal.RoleLabManager,
			Institute: instituteEngineering, Department: departmentMechanical, Active: true},
		{Name: "李工", Email: "li@labfleet.edu", Role: portal.RoleLabManager,
			Institute: instituteScience, Department: departmentPhysics, Active: true},
		{Name: "王助理", Email: "wang@labfleet.edu", Role: portal.RoleLabAssistant,
			Institute: instituteEngineering, Department: departmentMechanical, Active: true},
	}

	for _, user := range users {
		if err := db.Create(&user).Error; err != nil {
			log.Printf("Warning: failed to create user %s: %v", user.Email, err)
		}
	}
	log.Printf("Seeded %d users", len(users))
}

func seedEquipment(db *gorm.DB) {
	now := time.Now()

	equipments := []portal.Equipment{
		{EquipmentID: "CNC-001", Name: "五轴数控机床", Model: "DMU-50",
			Institute: instituteEngineering, Department: departmentMechanical, Lab: labPrecision, Active: true},
		{EquipmentID: "CNC-002", Name: "线切割机床", Model: "WEDM-300",
			Institute: instituteEngineering, Department: departmentMechanical, Lab: labPrecision, Active: true},
		{EquipmentID: "LASER-001", Name: "飞秒激光器", Model: "FS-900",
			Institute: instituteScience, Department: departmentPhysics, Lab: labOptics, Active: true},
		{EquipmentID: "SPEC-001", Name: "光谱分析仪", Model: "SA-2200",
			Institute: instituteScience, Department: departmentPhysics, Lab: labOptics, Active: true},
		{EquipmentID: "OLD-001", Name: "退役铣床", Model: "XK-714",
			Institute: instituteEngineering, Department: departmentMechanical, Lab: labPrecision, Active: false},
	}

	for i := range equipments {
		if err := db.Create(&equipments[i]).Error; err != nil {
			log.Printf("Warning: failed to create equipment %s: %v", equipments[i].EquipmentID, err)
			continue
		}

		// OLD-001 已停用，不建状态行
		if !equipments[i].Active {
			continue
		}

		lastUsed := now.Add(-time.Duration(i) * 24 * time.Hour)
		// SPEC-001 模拟长期闲置，便于验证巡检
		if equipments[i].EquipmentID == "SPEC-001" {
			lastUsed = now.Add(-20 * 24 * time.Hour)
		}

		status := portal.EquipmentStatus{
			EquipmentID: equipments[i].ID,
			Status:      portal.EquipmentStatusOperational,
			HealthScore: 100,
			LastUsedAt:  lastUsed,
		}
		if err := db.Create(&status).Error; err != nil {
			log.Printf("Warning: failed to create status for %s: %v", equipments[i].EquipmentID, err)
		}
	}
	log.Printf("Seeded %d equipments", len(equipments))
}
