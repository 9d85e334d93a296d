// subscribeOn operator for rxcore
// 把订阅动作本身转移到目标调度器，释放也对称地回到同一调度器
package rxcore

import (
	"sync/atomic"
)

// subscribeOn 返回在scheduler上执行订阅副作用的Observable。
// 订阅调用立即返回；在计划中的订阅实际执行前释放返回的
// Disposable会取消订阅（上游永远不会被订阅），之后释放则把
// 上游的释放动作调度到同一调度器上，获取与释放发生在对称的
// 执行上下文
func subscribeOn(source Observable, scheduler Scheduler) Observable {
	return NewObservable(func(observer Observer) Disposable {
		pending := NewSingleAssignmentDisposable()
		serial := NewSerialDisposable()
		serial.Set(pending)

		pending.Set(scheduler.Schedule(nil, func(sched Scheduler, _ interface{}) Disposable {
			upstream := source.Subscribe(observer)
			// 替换掉已消耗的订阅令牌，此后的释放走调度器
			serial.Set(&scheduledDisposable{scheduler: sched, target: upstream})
			return Disposed
		}))

		return serial
	})
}

// ============================================================================
// 经由调度器的释放
// ============================================================================

// scheduledDisposable 把目标的释放动作调度到给定调度器上执行
type scheduledDisposable struct {
	scheduler Scheduler
	target    Disposable
	disposed  int32
}

// Dispose 在调度器上调度目标的释放
func (d *scheduledDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		d.scheduler.Schedule(nil, func(Scheduler, interface{}) Disposable {
			d.target.Dispose()
			return Disposed
		})
	}
}

// IsDisposed 检查是否已请求释放
func (d *scheduledDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}
