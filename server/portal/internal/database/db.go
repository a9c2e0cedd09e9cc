package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"labfleet-ng/models/portal"
)

// InitDB 初始化SQLite数据库连接（开发环境默认）
func InitDB() (*gorm.DB, error) {
	// 配置 GORM 日志
	gormLogger := logger.New(
		logger.Default.LogMode(logger.Info).(logger.Writer),
		logger.Config{
			SlowThreshold:             time.Second, // 慢 SQL 阈值
			IgnoreRecordNotFoundError: true,        // 忽略记录未找到错误
			Colorful:                  true,        // 彩色输出
			LogLevel:                  logger.Info,
		},
	)

	db, err := gorm.Open(sqlite.Open("labfleet.db"), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %v", err)
	}

	if err := setupPoolAndMigrate(db); err != nil {
		return nil, err
	}

	ClearAndSeedDatabase(db)
	return db, nil
}

// InitMySQLDB 以MySQL DSN初始化数据库连接（生产环境与作业进程使用）
func InitMySQLDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Warn),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect mysql database: %v", err)
	}

	if err := setupPoolAndMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func setupPoolAndMigrate(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %v", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移数据库表
	if err := db.AutoMigrate(
		&portal.User{},
		&portal.Equipment{},
		&portal.EquipmentStatus{},
		&portal.SensorReading{},
		&portal.Alert{},
		&portal.Notification{},
		&portal.BreakdownRecord{},
		&portal.ReorderRequest{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %v", err)
	}
	return nil
}
