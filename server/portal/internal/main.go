package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"labfleet-ng/models/portal"
	labredis "labfleet-ng/pkg/redis"
	"labfleet-ng/server/portal/internal/database"
	"labfleet-ng/server/portal/internal/routers"
	"labfleet-ng/server/portal/internal/service"
	"labfleet-ng/server/portal/internal/service/events"
	"labfleet-ng/server/portal/internal/service/realtime"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// @title           LabFleet-NG API
// @version         1.0
// @description     实验室设备监控平台 API 文档

// @host      localhost:8080
// @BasePath  /fe-v1

// 环境变量键
const (
	envListenAddr  = "LABFLEET_LISTEN_ADDR"
	envRedisAddr   = "LABFLEET_REDIS_ADDR"
	envTokenSecret = "LABFLEET_TOKEN_SECRET"
	envSweepHour   = "LABFLEET_SWEEP_HOUR"
)

// 默认配置
const (
	defaultListenAddr  = ":8080"
	defaultRedisAddr   = "127.0.0.1:6379"
	defaultTokenSecret = "labfleet-dev-secret"
	shutdownTimeout    = 10 * time.Second
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.InitDB()
	if err != nil {
		logger.Fatal("Failed to init database", zap.Error(err))
	}

	// Redis不可用时降级运行：告警抑制与跨实例单飞锁失效
	var redisHandler service.RedisHandlerInterface
	redisAddr := envOrDefault(envRedisAddr, defaultRedisAddr)
	if err := labredis.Init("default", redisAddr, ""); err != nil {
		logger.Warn("Redis unavailable, alert suppression and sweep lock disabled", zap.Error(err))
	} else {
		redisHandler = labredis.NewRedisHandler("default")
	}
	keyBuilder := labredis.NewKeyBuilder(labredis.GlobalPrefix, "v1")

	// 实时推送
	hub := realtime.NewHub(logger)
	authenticator := realtime.NewTokenAuthenticator(envOrDefault(envTokenSecret, defaultTokenSecret))

	// 事件总线与服务
	eventManager := events.NewEventManager(logger, nil)
	directoryService := service.NewDirectoryService(db, logger)
	alertService := service.NewAlertService(db, directoryService, hub, redisHandler, keyBuilder, logger)
	telemetryService := service.NewTelemetryService(db, eventManager, logger)
	breakdownService := service.NewBreakdownService(db, alertService, directoryService, eventManager, logger)
	sweepMonitor := service.NewInactivitySweepMonitor(db, alertService, redisHandler, keyBuilder,
		service.SweepConfig{RunAtHour: sweepHourFromEnv()}, logger)

	registerEventHandlers(eventManager, alertService, hub, db, logger)

	sweepMonitor.Start()

	// HTTP路由
	r := gin.Default()
	configureCORS(r)

	api := r.Group("/fe-v1")
	api.Use(routers.BearerAuthMiddleware(authenticator))

	routers.NewTelemetryHandler(telemetryService).RegisterRoutes(api)
	routers.NewAlertHandler(alertService).RegisterRoutes(api)
	routers.NewBreakdownHandler(breakdownService).RegisterRoutes(api)
	routers.NewSweepHandler(sweepMonitor).RegisterRoutes(api)
	routers.NewRealtimeHandler(db, hub, authenticator, logger).RegisterRoutes(r)

	srv := &http.Server{
		Addr:    envOrDefault(envListenAddr, defaultListenAddr),
		Handler: r,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	sweepMonitor.Stop()
	hub.Shutdown()
	_ = eventManager.Shutdown(events.ShutdownRequest{})

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

// registerEventHandlers 挂接事件总线上的异步处理链路
func registerEventHandlers(eventManager *events.EventManager, alertService *service.AlertService,
	hub *realtime.Hub, db *gorm.DB, logger *zap.Logger) {
	// 候选告警 -> 告警扇出
	eventManager.Register(events.RegisterRequest{
		EventType:   events.EventTypeAlertCandidate,
		HandlerName: "alert_fanout",
		HandlerFunc: func(ctx context.Context, event events.Event) error {
			candidate, ok := event.Data().(*events.AlertCandidateEvent)
			if !ok {
				return nil
			}
			equipmentID := candidate.EquipmentID
			_, err := alertService.RaiseAlert(ctx, &service.RaiseAlertDTO{
				Type:          candidate.AlertType,
				Severity:      candidate.Severity,
				EquipmentID:   &equipmentID,
				EquipmentCode: candidate.EquipmentCode,
				Title:         candidate.Title,
				Message:       candidate.Message,
			})
			return err
		},
	})

	// 故障状态变更 -> 设备主题推送
	eventManager.Register(events.RegisterRequest{
		EventType:   events.EventTypeBreakdownStatusChanged,
		HandlerName: "breakdown_push",
		HandlerFunc: func(ctx context.Context, event events.Event) error {
			change, ok := event.Data().(*events.BreakdownStatusChangedEvent)
			if !ok {
				return nil
			}
			var equipment portal.Equipment
			if err := db.WithContext(ctx).First(&equipment, change.EquipmentID).Error; err != nil {
				return err
			}
			hub.PublishToEquipment(equipment.EquipmentID, change)
			return nil
		},
	})
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func sweepHourFromEnv() int {
	hour, err := strconv.Atoi(os.Getenv(envSweepHour))
	if err != nil || hour < 0 || hour > 23 {
		return service.DefaultSweepHour
	}
	return hour
}

func configureCORS(r *gin.Engine) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
