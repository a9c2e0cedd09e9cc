package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labfleet-ng/job/chore/inactivity_sweep"
	_ "labfleet-ng/migrations"
	labredis "labfleet-ng/pkg/redis"

	"github.com/pressly/goose"
)

var (
	rootCmd = &cobra.Command{
		Use:   "job",
		Short: "LabFleet job runner",
		Long:  `LabFleet job runner is a CLI tool for running maintenance jobs against the equipment fleet database.`,
	}

	// 全局标志
	mysqlDSN  string
	redisAddr string
)

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVar(&mysqlDSN, "mysql-dsn", "", "MySQL connection string (default: root:root@tcp(127.0.0.1:3306)/labfleet?charset=utf8mb4&parseTime=True&loc=Local)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the sweep lock (empty disables the distributed lock)")

	// 添加子命令
	rootCmd.AddCommand(choreCmd)
	rootCmd.AddCommand(migrateCmd)
}

// migrate 命令
var (
	migrationsDir string

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Apply pending goose migrations to the fleet database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := initDB(mysqlDSN)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get sql db: %w", err)
			}

			if err := goose.SetDialect("mysql"); err != nil {
				return fmt.Errorf("failed to set goose dialect: %w", err)
			}
			if err := goose.Up(sqlDB, migrationsDir); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			log.Println("Migrations applied")
			return nil
		},
	}
)

// chore 命令
var choreCmd = &cobra.Command{
	Use:   "chore",
	Short: "Run chore jobs",
	Long:  `Run chore jobs for fleet maintenance and data housekeeping.`,
}

// inactivity-sweep 命令
var (
	thresholdDays int

	inactivitySweepCmd = &cobra.Command{
		Use:   "inactivity-sweep",
		Short: "Run inactivity sweep",
		Long:  `Scan active equipment that has not been used beyond the threshold and raise breakdown check alerts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync()

			// 初始化数据库连接
			db, err := initDB(mysqlDSN)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}

			// Redis锁可选，单实例运行时可以不带
			var redisHandler *labredis.Handler
			if redisAddr != "" {
				if err := labredis.Init("default", redisAddr, ""); err != nil {
					return fmt.Errorf("failed to connect redis: %w", err)
				}
				redisHandler = labredis.NewRedisHandler("default")
			}

			sweeper := inactivity_sweep.NewSweeper(db, redisHandler, thresholdDays, logger)
			summary, err := sweeper.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to run inactivity sweep: %w", err)
			}

			log.Printf("Sweep finished: matched=%d alerts=%d", summary.MatchedCount, summary.AlertCount)
			return nil
		},
	}
)

func init() {
	// 将inactivity-sweep命令添加到chore命令下
	choreCmd.AddCommand(inactivitySweepCmd)

	inactivitySweepCmd.Flags().IntVar(&thresholdDays, "threshold-days", inactivity_sweep.DefaultThresholdDays, "Days of inactivity before an equipment is flagged")

	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "Directory holding migration sources")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
