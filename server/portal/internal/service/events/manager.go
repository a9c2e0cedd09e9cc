package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event 事件接口
type Event interface {
	Type() string
	Data() interface{}
	Timestamp() time.Time
}

// EventHandler 事件处理器接口
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	Name() string
}

// EventHandlerFunc 函数类型的事件处理器
type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

func (f EventHandlerFunc) Name() string {
	return "anonymous_handler"
}

// NamedEventHandler 带名称的事件处理器
type NamedEventHandler struct {
	HandlerName string
	HandlerFunc EventHandlerFunc
}

func (h *NamedEventHandler) Handle(ctx context.Context, event Event) error {
	return h.HandlerFunc(ctx, event)
}

func (h *NamedEventHandler) Name() string {
	return h.HandlerName
}

// EventManager 事件管理器.
// 遥测链路的"发后不管"副作用统一经由此处派发：异步执行、失败重试、
// 错误只记录日志，永远不会传播回发布方。
type EventManager struct {
	handlers map[string][]EventHandler
	mutex    sync.RWMutex
	logger   *zap.Logger
	config   *Config
}

// Config 事件管理器配置
type Config struct {
	Timeout    time.Duration // 事件处理超时时间
	RetryCount int           // 重试次数
	Async      bool          // 是否异步处理
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		RetryCount: 3,
		Async:      true,
	}
}

// NewEventManager 创建新的事件管理器
func NewEventManager(logger *zap.Logger, config *Config) *EventManager {
	if config == nil {
		config = DefaultConfig()
	}

	return &EventManager{
		handlers: make(map[string][]EventHandler),
		logger:   logger,
		config:   config,
	}
}

// RegisterRequest 注册处理器的请求结构体
type RegisterRequest struct {
	EventType   string
	HandlerName string
	HandlerFunc EventHandlerFunc
}

// Register 注册事件处理器
func (em *EventManager) Register(req RegisterRequest) {
	em.mutex.Lock()
	defer em.mutex.Unlock()

	for _, h := range em.handlers[req.EventType] {
		if h.Name() == req.HandlerName {
			em.logger.Warn("Event handler already registered, skipping",
				zap.String("eventType", req.EventType),
				zap.String("handlerName", req.HandlerName))
			return
		}
	}

	em.handlers[req.EventType] = append(em.handlers[req.EventType], &NamedEventHandler{
		HandlerName: req.HandlerName,
		HandlerFunc: req.HandlerFunc,
	})

	em.logger.Info("Event handler registered",
		zap.String("eventType", req.EventType),
		zap.String("handlerName", req.HandlerName))
}

// PublishRequest 发布事件的请求结构体
type PublishRequest struct {
	Event Event
	Ctx   context.Context
}

// Publish 发布事件
func (em *EventManager) Publish(req PublishRequest) error {
	ctx := req.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	event := req.Event
	eventType := event.Type()

	em.mutex.RLock()
	handlers := make([]EventHandler, len(em.handlers[eventType]))
	copy(handlers, em.handlers[eventType])
	em.mutex.RUnlock()

	if len(handlers) == 0 {
		em.logger.Debug("No handlers found for event type",
			zap.String("eventType", eventType))
		return nil
	}

	em.logger.Debug("Publishing event",
		zap.String("eventType", eventType),
		zap.Int("handlerCount", len(handlers)))

	if em.config.Async {
		em.handleEventAsync(ctx, event, handlers)
		return nil
	}
	return em.handleEventSync(ctx, event, handlers)
}

// handleEventSync 同步处理事件
func (em *EventManager) handleEventSync(ctx context.Context, event Event, handlers []EventHandler) error {
	var lastErr error

	for _, handler := range handlers {
		if err := em.executeHandlerWithRetry(ctx, handler, event); err != nil {
			em.logger.Error("Event handler failed",
				zap.String("eventType", event.Type()),
				zap.String("handlerName", handler.Name()),
				zap.Error(err))
			lastErr = err
		}
	}

	return lastErr
}

// handleEventAsync 异步处理事件.
// 处理器的生命周期与发布方解耦：发布方的请求上下文结束（HTTP请求返回
// 即被取消）不影响已派发的处理器，只保留其中的值。
func (em *EventManager) handleEventAsync(ctx context.Context, event Event, handlers []EventHandler) {
	detached := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := em.executeHandlerWithRetry(detached, h, event); err != nil {
				em.logger.Error("Async event handler failed",
					zap.String("eventType", event.Type()),
					zap.String("handlerName", h.Name()),
					zap.Error(err))
			}
		}(handler)
	}
}

// executeHandlerWithRetry 带重试的处理器执行
func (em *EventManager) executeHandlerWithRetry(ctx context.Context, handler EventHandler, event Event) error {
	var lastErr error

	for i := 0; i <= em.config.RetryCount; i++ {
		// 创建带超时的上下文
		timeoutCtx, cancel := context.WithTimeout(ctx, em.config.Timeout)

		err := handler.Handle(timeoutCtx, event)
		cancel()

		if err == nil {
			if i > 0 {
				em.logger.Info("Event handler succeeded after retry",
					zap.String("eventType", event.Type()),
					zap.String("handlerName", handler.Name()),
					zap.Int("retryCount", i))
			}
			return nil
		}

		lastErr = err

		if i < em.config.RetryCount {
			em.logger.Warn("Event handler failed, will retry",
				zap.String("eventType", event.Type()),
				zap.String("handlerName", handler.Name()),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", em.config.RetryCount),
				zap.Error(err))

			// 指数退避
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}

	return fmt.Errorf("event handler failed after %d retries: %w", em.config.RetryCount, lastErr)
}

// GetHandlersRequest 获取处理器列表的请求结构体
type GetHandlersRequest struct {
	EventType string
}

// GetHandlers 获取指定事件类型的处理器列表
func (em *EventManager) GetHandlers(req GetHandlersRequest) []string {
	em.mutex.RLock()
	defer em.mutex.RUnlock()

	handlers := em.handlers[req.EventType]
	names := make([]string, len(handlers))
	for i, handler := range handlers {
		names[i] = handler.Name()
	}

	return names
}

// ShutdownRequest 关闭的请求结构体
type ShutdownRequest struct {
	Ctx context.Context
}

// Shutdown 优雅关闭事件管理器
func (em *EventManager) Shutdown(req ShutdownRequest) error {
	em.logger.Info("Shutting down event manager")

	em.mutex.Lock()
	defer em.mutex.Unlock()

	// 清空处理器
	em.handlers = make(map[string][]EventHandler)

	em.logger.Info("Event manager shutdown completed")
	return nil
}
