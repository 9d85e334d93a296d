// Tests for diagnostics counters and the monitored scheduler
// 诊断计数与监控调度器的测试
package rxcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticsCounters(t *testing.T) {
	t.Run("按订阅统计打开关闭与通知数", func(t *testing.T) {
		ResetDiagnostics()

		obs := NewObservable(func(observer Observer) Disposable {
			observer(CreateNext(1))
			observer(CreateNext(2))
			observer(CreateCompleted())
			return Disposed
		}, WithDiagnostics())

		obs.Subscribe(func(Notification) {})

		snapshot := Diagnostics()
		assert.EqualValues(t, 1, snapshot.SubscriptionsOpened)
		assert.EqualValues(t, 1, snapshot.SubscriptionsClosed)
		assert.EqualValues(t, 3, snapshot.NotificationsForwarded)
	})

	t.Run("未开启时不产生计数", func(t *testing.T) {
		ResetDiagnostics()
		DisableDiagnostics()

		Just(1, 2, 3).Subscribe(func(Notification) {})

		snapshot := Diagnostics()
		assert.EqualValues(t, 0, snapshot.SubscriptionsOpened)
		assert.EqualValues(t, 0, snapshot.NotificationsForwarded)
	})

	t.Run("全局开关覆盖所有订阅", func(t *testing.T) {
		ResetDiagnostics()
		EnableDiagnostics()
		defer DisableDiagnostics()

		Just(1).Subscribe(func(Notification) {})

		snapshot := Diagnostics()
		assert.EqualValues(t, 1, snapshot.SubscriptionsOpened)
		assert.EqualValues(t, 1, snapshot.SubscriptionsClosed)
	})
}

func TestMonitoredScheduler(t *testing.T) {
	t.Run("统计调度与完成次数", func(t *testing.T) {
		s := NewMonitoredScheduler(Immediate)

		for i := 0; i < 3; i++ {
			s.Schedule(nil, func(Scheduler, interface{}) Disposable { return Disposed })
		}

		metrics := s.GetMetrics()
		assert.EqualValues(t, 3, metrics.TasksScheduled)
		assert.EqualValues(t, 3, metrics.TasksCompleted)
		assert.EqualValues(t, 0, metrics.TasksFailed)
	})

	t.Run("panic计入失败并继续向上传播", func(t *testing.T) {
		s := NewMonitoredScheduler(Immediate)

		require.Panics(t, func() {
			s.Schedule(nil, func(Scheduler, interface{}) Disposable {
				panic("task failed")
			})
		})

		metrics := s.GetMetrics()
		assert.EqualValues(t, 1, metrics.TasksFailed)
		assert.EqualValues(t, 0, metrics.TasksCompleted)
	})

	t.Run("延迟调度同样被统计", func(t *testing.T) {
		s := NewMonitoredScheduler(Immediate)

		s.ScheduleAfter(nil, time.Millisecond, func(Scheduler, interface{}) Disposable {
			return Disposed
		})

		metrics := s.GetMetrics()
		assert.EqualValues(t, 1, metrics.TasksScheduled)
		assert.EqualValues(t, 1, metrics.TasksCompleted)
		assert.Greater(t, int64(metrics.AverageLatency), int64(0))
	})

	t.Run("实例id互不相同", func(t *testing.T) {
		a := NewMonitoredScheduler(Immediate)
		b := NewMonitoredScheduler(Immediate)
		assert.NotEqual(t, a.ID(), b.ID())
	})
}
