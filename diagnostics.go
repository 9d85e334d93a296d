// Diagnostics for rxcore
// 进程级诊断计数与带监控的调度器包装器，关闭时对正确性零影响
package rxcore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// 进程级诊断计数
// ============================================================================

var (
	diagEnabled int32

	diagSubscriptionsOpened    int64
	diagSubscriptionsClosed    int64
	diagNotificationsForwarded int64
)

// EnableDiagnostics 全局开启诊断计数
func EnableDiagnostics() {
	atomic.StoreInt32(&diagEnabled, 1)
}

// DisableDiagnostics 全局关闭诊断计数
func DisableDiagnostics() {
	atomic.StoreInt32(&diagEnabled, 0)
}

// DiagnosticsEnabled 检查诊断计数是否开启
func DiagnosticsEnabled() bool {
	return atomic.LoadInt32(&diagEnabled) == 1
}

// DiagnosticsSnapshot 诊断计数的瞬时快照
type DiagnosticsSnapshot struct {
	SubscriptionsOpened    int64 // 创建过的订阅总数
	SubscriptionsClosed    int64 // 已释放的订阅总数
	NotificationsForwarded int64 // 经由订阅Sink转发的通知总数
}

// Diagnostics 返回当前诊断快照
func Diagnostics() DiagnosticsSnapshot {
	return DiagnosticsSnapshot{
		SubscriptionsOpened:    atomic.LoadInt64(&diagSubscriptionsOpened),
		SubscriptionsClosed:    atomic.LoadInt64(&diagSubscriptionsClosed),
		NotificationsForwarded: atomic.LoadInt64(&diagNotificationsForwarded),
	}
}

// ResetDiagnostics 清零所有诊断计数
func ResetDiagnostics() {
	atomic.StoreInt64(&diagSubscriptionsOpened, 0)
	atomic.StoreInt64(&diagSubscriptionsClosed, 0)
	atomic.StoreInt64(&diagNotificationsForwarded, 0)
}

// diagSubscriptionOpened 订阅创建计数
func diagSubscriptionOpened(local bool) {
	if local || DiagnosticsEnabled() {
		atomic.AddInt64(&diagSubscriptionsOpened, 1)
	}
}

// diagSubscriptionClosed 订阅释放计数
func diagSubscriptionClosed(local bool) {
	if local || DiagnosticsEnabled() {
		atomic.AddInt64(&diagSubscriptionsClosed, 1)
	}
}

// diagNotificationDelivered 通知转发计数
func diagNotificationDelivered(local bool) {
	if local || DiagnosticsEnabled() {
		atomic.AddInt64(&diagNotificationsForwarded, 1)
	}
}

// ============================================================================
// 调度器性能监控
// ============================================================================

// SchedulerMetrics 调度器性能指标
type SchedulerMetrics struct {
	TasksScheduled int64
	TasksCompleted int64
	TasksFailed    int64
	AverageLatency time.Duration
}

// MonitoredScheduler 带监控的调度器包装器，每个实例有唯一id
// 便于在多调度器场景下区分指标来源
type MonitoredScheduler struct {
	id        uuid.UUID
	scheduler Scheduler
	metrics   SchedulerMetrics
	mu        sync.Mutex
}

// NewMonitoredScheduler 创建带监控的调度器
func NewMonitoredScheduler(scheduler Scheduler) *MonitoredScheduler {
	return &MonitoredScheduler{
		id:        uuid.New(),
		scheduler: scheduler,
	}
}

// ID 返回实例标识
func (s *MonitoredScheduler) ID() uuid.UUID {
	return s.id
}

// Schedule 调度任务并记录指标
func (s *MonitoredScheduler) Schedule(state interface{}, action Action) Disposable {
	atomic.AddInt64(&s.metrics.TasksScheduled, 1)
	startTime := time.Now()
	return s.scheduler.Schedule(state, s.wrap(action, startTime))
}

// ScheduleAfter 延迟调度任务并记录指标
func (s *MonitoredScheduler) ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable {
	atomic.AddInt64(&s.metrics.TasksScheduled, 1)
	startTime := time.Now()
	return s.scheduler.ScheduleAfter(state, delay, s.wrap(action, startTime))
}

// wrap 包装动作以记录完成、失败与延迟
func (s *MonitoredScheduler) wrap(action Action, startTime time.Time) Action {
	return func(scheduler Scheduler, state interface{}) Disposable {
		defer func() {
			s.observeLatency(time.Since(startTime))

			if r := recover(); r != nil {
				atomic.AddInt64(&s.metrics.TasksFailed, 1)
				panic(r)
			}
			atomic.AddInt64(&s.metrics.TasksCompleted, 1)
		}()

		return action(scheduler, state)
	}
}

// GetMetrics 获取指标快照
func (s *MonitoredScheduler) GetMetrics() SchedulerMetrics {
	s.mu.Lock()
	latency := s.metrics.AverageLatency
	s.mu.Unlock()

	return SchedulerMetrics{
		TasksScheduled: atomic.LoadInt64(&s.metrics.TasksScheduled),
		TasksCompleted: atomic.LoadInt64(&s.metrics.TasksCompleted),
		TasksFailed:    atomic.LoadInt64(&s.metrics.TasksFailed),
		AverageLatency: latency,
	}
}

// observeLatency 更新移动平均延迟
func (s *MonitoredScheduler) observeLatency(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics.AverageLatency == 0 {
		s.metrics.AverageLatency = latency
	} else {
		s.metrics.AverageLatency = (s.metrics.AverageLatency + latency) / 2
	}
}
