// Test scheduler and recorded observable fixtures for rxcore
// 测试调度器：录制式冷热Observable夹具与订阅区间记录
package rxcore

import (
	"math"
	"sync"
	"time"
)

// ============================================================================
// 录制记录
// ============================================================================

// SubscriptionInfinite 订阅尚未结束时的占位结束时刻
const SubscriptionInfinite int64 = math.MaxInt64

// Recorded 带虚拟时间戳的通知记录
type Recorded struct {
	Time         int64
	Notification Notification
}

// RecordedNext 在时刻t记录一个值
func RecordedNext(t int64, value interface{}) Recorded {
	return Recorded{Time: t, Notification: CreateNext(value)}
}

// RecordedError 在时刻t记录一个错误
func RecordedError(t int64, err error) Recorded {
	return Recorded{Time: t, Notification: CreateError(err)}
}

// RecordedCompleted 在时刻t记录完成
func RecordedCompleted(t int64) Recorded {
	return Recorded{Time: t, Notification: CreateCompleted()}
}

// SubscriptionInterval 一次订阅的[开始, 结束)虚拟时间区间
type SubscriptionInterval struct {
	Subscribe   int64
	Unsubscribe int64
}

// ============================================================================
// 测试调度器 - TestScheduler
// ============================================================================

// 默认的 创建/订阅/释放 时刻
const (
	defaultCreated    = 100
	defaultSubscribed = 200
	defaultDisposed   = 1000
)

// TestScheduler 虚拟时间之上的测试门面。与裸的虚拟调度器不同，
// 立即调度被推到下一个tick执行，操作符的调度边界因此在时间轴
// 上可观察：时刻T请求的订阅在T+1发生
type TestScheduler struct {
	*VirtualTimeScheduler
}

// NewTestScheduler 创建测试调度器
func NewTestScheduler() *TestScheduler {
	s := &TestScheduler{VirtualTimeScheduler: NewVirtualTimeScheduler()}
	s.VirtualTimeScheduler.self = s
	return s
}

// Schedule 在下一个tick调度任务
func (s *TestScheduler) Schedule(state interface{}, action Action) Disposable {
	return s.ScheduleAbsolute(s.Now()+1, state, action)
}

// ScheduleAfter 延迟调度任务，到期时刻不早于下一个tick
func (s *TestScheduler) ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable {
	now := s.Now()
	due := now + Ticks(delay)
	if due <= now {
		due = now + 1
	}
	return s.ScheduleAbsolute(due, state, action)
}

// Start 用默认时间轴驱动一次完整的订阅：100创建、200订阅、
// 1000释放，返回记录了全部通知的观察者
func (s *TestScheduler) Start(create func() Observable) *TestObserver {
	return s.StartAt(defaultCreated, defaultSubscribed, defaultDisposed, create)
}

// StartAt 用指定时间轴驱动一次完整的订阅并排水到队列耗尽
func (s *TestScheduler) StartAt(created, subscribed, disposed int64, create func() Observable) *TestObserver {
	observer := NewTestObserver(s)

	var source Observable
	var subscription Disposable

	s.ScheduleAbsolute(created, nil, func(Scheduler, interface{}) Disposable {
		source = create()
		return Disposed
	})
	s.ScheduleAbsolute(subscribed, nil, func(Scheduler, interface{}) Disposable {
		subscription = source.Subscribe(observer.AsObserver())
		return Disposed
	})
	s.ScheduleAbsolute(disposed, nil, func(Scheduler, interface{}) Disposable {
		if subscription != nil {
			subscription.Dispose()
		}
		return Disposed
	})

	s.VirtualTimeScheduler.Start()
	return observer
}

// CreateHotObservable 创建热Observable：录制的通知在固定虚拟
// 时刻发射，与订阅者数量和订阅时刻无关
func (s *TestScheduler) CreateHotObservable(recorded ...Recorded) *HotObservable {
	h := &HotObservable{
		scheduler: s,
		observers: make(map[int64]Observer),
	}
	h.Observable = NewObservable(h.subscribeCore)

	for _, r := range recorded {
		r := r
		s.ScheduleAbsolute(r.Time, nil, func(Scheduler, interface{}) Disposable {
			for _, observer := range h.snapshot() {
				observer(r.Notification)
			}
			return Disposed
		})
	}
	return h
}

// CreateColdObservable 创建冷Observable：录制的通知相对每次
// 订阅自身的开始时刻调度
func (s *TestScheduler) CreateColdObservable(recorded ...Recorded) *ColdObservable {
	c := &ColdObservable{
		scheduler: s,
		recorded:  recorded,
	}
	c.Observable = NewObservable(c.subscribeCore)
	return c
}

// ============================================================================
// 记录观察者 - TestObserver
// ============================================================================

// TestObserver 记录(虚拟时刻, 通知)序列供断言使用
type TestObserver struct {
	scheduler *TestScheduler
	mu        sync.Mutex
	messages  []Recorded
}

// NewTestObserver 创建记录观察者
func NewTestObserver(scheduler *TestScheduler) *TestObserver {
	return &TestObserver{scheduler: scheduler}
}

// AsObserver 返回写入记录的Observer函数
func (o *TestObserver) AsObserver() Observer {
	return func(n Notification) {
		t := o.scheduler.Now()
		o.mu.Lock()
		o.messages = append(o.messages, Recorded{Time: t, Notification: n})
		o.mu.Unlock()
	}
}

// Messages 返回已记录通知的副本
func (o *TestObserver) Messages() []Recorded {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Recorded, len(o.messages))
	copy(out, o.messages)
	return out
}

// ============================================================================
// 热Observable夹具
// ============================================================================

// HotObservable 发射时刻与订阅无关的录制Observable，
// 同时记录每次订阅的[开始, 结束)区间
type HotObservable struct {
	Observable

	scheduler *TestScheduler
	mu        sync.Mutex
	nextID    int64
	observers map[int64]Observer
	intervals []SubscriptionInterval
}

// subscribeCore 登记订阅者并记录订阅区间
func (h *HotObservable) subscribeCore(observer Observer) Disposable {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = observer
	slot := len(h.intervals)
	h.intervals = append(h.intervals, SubscriptionInterval{
		Subscribe:   h.scheduler.Now(),
		Unsubscribe: SubscriptionInfinite,
	})
	h.mu.Unlock()

	return NewBaseDisposable(func() {
		h.mu.Lock()
		delete(h.observers, id)
		h.intervals[slot].Unsubscribe = h.scheduler.Now()
		h.mu.Unlock()
	})
}

// snapshot 拷贝当前订阅者集合，发射时不持有锁
func (h *HotObservable) snapshot() []Observer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Observer, 0, len(h.observers))
	for _, observer := range h.observers {
		out = append(out, observer)
	}
	return out
}

// Subscriptions 返回已记录订阅区间的副本
func (h *HotObservable) Subscriptions() []SubscriptionInterval {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SubscriptionInterval, len(h.intervals))
	copy(out, h.intervals)
	return out
}

// ============================================================================
// 冷Observable夹具
// ============================================================================

// ColdObservable 每次订阅都从头重放录制通知的Observable，
// 发射时刻相对订阅开始时刻计算
type ColdObservable struct {
	Observable

	scheduler *TestScheduler
	recorded  []Recorded
	mu        sync.Mutex
	intervals []SubscriptionInterval
}

// subscribeCore 相对订阅时刻调度录制的通知
func (c *ColdObservable) subscribeCore(observer Observer) Disposable {
	start := c.scheduler.Now()

	c.mu.Lock()
	slot := len(c.intervals)
	c.intervals = append(c.intervals, SubscriptionInterval{
		Subscribe:   start,
		Unsubscribe: SubscriptionInfinite,
	})
	c.mu.Unlock()

	group := NewCompositeDisposable()
	for _, r := range c.recorded {
		r := r
		token := c.scheduler.ScheduleAbsolute(start+r.Time, nil, func(Scheduler, interface{}) Disposable {
			observer(r.Notification)
			return Disposed
		})
		group.Add(token)
	}

	return CombineDisposables(group, NewBaseDisposable(func() {
		c.mu.Lock()
		c.intervals[slot].Unsubscribe = c.scheduler.Now()
		c.mu.Unlock()
	}))
}

// Subscriptions 返回已记录订阅区间的副本
func (c *ColdObservable) Subscriptions() []SubscriptionInterval {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SubscriptionInterval, len(c.intervals))
	copy(out, c.intervals)
	return out
}
