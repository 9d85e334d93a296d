// Scheduler implementations for rxcore
// 调度器家族：立即调度、串行队列调度与有界并发调度
package rxcore

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ============================================================================
// 调度单元
// ============================================================================

// scheduledItem 一次调度的取消令牌。动作开始前释放令牌可阻止
// 其运行；动作返回的后续Disposable挂接在令牌上，令牌释放时
// 一并取消。已在运行中的动作不会被抢占
type scheduledItem struct {
	mu        sync.Mutex
	cancelled bool
	follow    Disposable
	state     interface{}
	action    Action
}

// newScheduledItem 创建调度单元
func newScheduledItem(state interface{}, action Action) *scheduledItem {
	return &scheduledItem{state: state, action: action}
}

// run 在给定调度器身份下执行动作
func (it *scheduledItem) run(scheduler Scheduler) {
	it.mu.Lock()
	if it.cancelled {
		it.mu.Unlock()
		return
	}
	action := it.action
	state := it.state
	it.mu.Unlock()

	follow := action(scheduler, state)

	it.mu.Lock()
	if it.cancelled {
		it.mu.Unlock()
		if follow != nil {
			follow.Dispose()
		}
		return
	}
	it.follow = follow
	it.mu.Unlock()
}

// Dispose 取消尚未开始的动作，并释放已挂接的后续工作
func (it *scheduledItem) Dispose() {
	it.mu.Lock()
	if it.cancelled {
		it.mu.Unlock()
		return
	}
	it.cancelled = true
	follow := it.follow
	it.follow = nil
	it.mu.Unlock()

	if follow != nil {
		follow.Dispose()
	}
}

// IsDisposed 检查是否已取消
func (it *scheduledItem) IsDisposed() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.cancelled
}

// ============================================================================
// 立即调度器 - Immediate Scheduler
// ============================================================================

// immediateScheduler 在调用goroutine上同步执行任务，不引入并发
type immediateScheduler struct{}

// NewImmediateScheduler 创建立即调度器
func NewImmediateScheduler() Scheduler {
	return &immediateScheduler{}
}

// Schedule 立即同步执行任务，返回时任务已经完成
func (s *immediateScheduler) Schedule(state interface{}, action Action) Disposable {
	follow := action(s, state)
	if follow == nil {
		return Disposed
	}
	return follow
}

// ScheduleAfter 阻塞调用goroutine等待延迟后执行任务
func (s *immediateScheduler) ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable {
	if delay > 0 {
		time.Sleep(delay)
	}
	return s.Schedule(state, action)
}

// ============================================================================
// 串行队列调度器 - Serialized Queue Scheduler
// ============================================================================

// SerialQueueScheduler 单逻辑worker的串行调度器。任务严格按
// 提交顺序一次一个执行，彼此绝不并发，与调用Schedule的
// goroutine无关
type SerialQueueScheduler struct {
	mu       sync.Mutex
	queue    []*scheduledItem
	draining bool
	disposed bool
}

// NewSerialQueueScheduler 创建串行队列调度器
func NewSerialQueueScheduler() *SerialQueueScheduler {
	return &SerialQueueScheduler{
		queue: make([]*scheduledItem, 0),
	}
}

// Schedule 按提交顺序调度任务
func (s *SerialQueueScheduler) Schedule(state interface{}, action Action) Disposable {
	item := newScheduledItem(state, action)
	s.enqueue(item, true)
	return item
}

// ScheduleAfter 延迟后把任务加入串行队列
func (s *SerialQueueScheduler) ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable {
	s.ensureAlive("SerialQueueScheduler.ScheduleAfter")

	item := newScheduledItem(state, action)
	timer := time.AfterFunc(delay, func() {
		// 定时器触发时调度器可能已释放，此时静默丢弃
		s.enqueue(item, false)
	})

	return CombineDisposables(NewBaseDisposable(func() { timer.Stop() }), item)
}

// enqueue 入队并在需要时启动排水goroutine
func (s *SerialQueueScheduler) enqueue(item *scheduledItem, failFast bool) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		if failFast {
			panic(&InvalidStateError{
				Op:     "SerialQueueScheduler.Schedule",
				Reason: "scheduler already disposed",
			})
		}
		item.Dispose()
		return
	}
	s.queue = append(s.queue, item)
	start := !s.draining
	if start {
		s.draining = true
	}
	s.mu.Unlock()

	if start {
		go s.drain()
	}
}

// drain 逐个执行队列中的任务
func (s *SerialQueueScheduler) drain() {
	for {
		s.mu.Lock()
		if s.disposed || len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		item.run(s)
	}
}

// ensureAlive 已释放的调度器上继续调度属于编程错误
func (s *SerialQueueScheduler) ensureAlive(op string) {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		panic(&InvalidStateError{Op: op, Reason: "scheduler already disposed"})
	}
}

// Dispose 释放调度器并取消所有未开始的任务。
// 正在运行的任务不会被抢占
func (s *SerialQueueScheduler) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, item := range pending {
		item.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (s *SerialQueueScheduler) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// ============================================================================
// 有界并发调度器 - Bounded Concurrency Scheduler
// ============================================================================

// BoundedPoolScheduler 并发度至多K的调度器。每个任务一经开始
// 必定运行完毕；跨任务不保证FIFO顺序，单个流内部的顺序由
// ObserveOn的单泵设计保证
type BoundedPoolScheduler struct {
	sem      *semaphore.Weighted
	ctx      context.Context
	cancel   context.CancelFunc
	workers  int
	disposed int32
}

// NewBoundedPoolScheduler 创建有界并发调度器，workers<=0时
// 使用CPU核数
func NewBoundedPoolScheduler(workers int) *BoundedPoolScheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &BoundedPoolScheduler{
		sem:     semaphore.NewWeighted(int64(workers)),
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
	}
}

// Workers 返回最大并发度
func (s *BoundedPoolScheduler) Workers() int {
	return s.workers
}

// Schedule 调度任务，信号量把并发任务数限制在worker数以内
func (s *BoundedPoolScheduler) Schedule(state interface{}, action Action) Disposable {
	s.ensureAlive("BoundedPoolScheduler.Schedule")

	item := newScheduledItem(state, action)
	go func() {
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		item.run(s)
	}()

	return item
}

// ScheduleAfter 延迟后在池中调度任务
func (s *BoundedPoolScheduler) ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable {
	s.ensureAlive("BoundedPoolScheduler.ScheduleAfter")

	item := newScheduledItem(state, action)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
		}

		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			return
		}
		defer s.sem.Release(1)
		item.run(s)
	}()

	return item
}

// ensureAlive 已释放的调度器上继续调度属于编程错误
func (s *BoundedPoolScheduler) ensureAlive(op string) {
	if atomic.LoadInt32(&s.disposed) == 1 {
		panic(&InvalidStateError{Op: op, Reason: "scheduler already disposed"})
	}
}

// Dispose 释放调度器，未获得信号量的任务不再执行
func (s *BoundedPoolScheduler) Dispose() {
	if atomic.CompareAndSwapInt32(&s.disposed, 0, 1) {
		s.cancel()
	}
}

// IsDisposed 检查是否已释放
func (s *BoundedPoolScheduler) IsDisposed() bool {
	return atomic.LoadInt32(&s.disposed) == 1
}

// ============================================================================
// 共享调度器实例
// ============================================================================

var (
	// Immediate 立即调度器实例
	Immediate Scheduler = NewImmediateScheduler()

	// SerialQueue 共享的串行队列调度器实例
	SerialQueue = NewSerialQueueScheduler()

	// BoundedPool 共享的有界并发调度器实例，并发度为CPU核数
	BoundedPool = NewBoundedPoolScheduler(runtime.NumCPU())
)
