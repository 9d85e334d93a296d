// Observable implementation for rxcore
// Observable核心实现与订阅Sink：强制通知语法并在终止后自动释放
package rxcore

import (
	"fmt"
	"sync/atomic"
)

// ============================================================================
// Observable 核心实现
// ============================================================================

// observableImpl Observable的核心实现。source描述如何向观察者
// 生产序列，并返回上游资源的Disposable
type observableImpl struct {
	source func(observer Observer) Disposable
	config *Config
}

// NewObservable 创建新的Observable
func NewObservable(source func(observer Observer) Disposable, options ...Option) Observable {
	config := DefaultConfig()
	for _, opt := range options {
		opt.Apply(config)
	}

	return &observableImpl{
		source: source,
		config: config,
	}
}

// Subscribe 订阅观察者。返回的Disposable拥有本次订阅获取的
// 全部资源，终止通知转发后自动释放
func (o *observableImpl) Subscribe(observer Observer) Disposable {
	sink := newSubscriptionSink(observer, o.config.Diagnostics)
	upstream := o.runSource(sink)
	sink.setUpstream(upstream)
	return sink
}

// runSource 执行source函数，panic被转换为Error通知，
// 获取失败不会越过订阅边界抛出
func (o *observableImpl) runSource(sink *subscriptionSink) (upstream Disposable) {
	defer func() {
		if r := recover(); r != nil {
			sink.notify(CreateError(recoveredError(r)))
			upstream = Disposed
		}
	}()

	upstream = o.source(sink.notify)
	if upstream == nil {
		upstream = Disposed
	}
	return upstream
}

// SubscribeWithCallbacks 使用回调函数订阅
func (o *observableImpl) SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable {
	return o.Subscribe(NewObserver(onNext, onError, onComplete))
}

// ObserveOn 把通知的投递转移到指定调度器
func (o *observableImpl) ObserveOn(scheduler Scheduler) Observable {
	return observeOn(o, scheduler, o.config.BufferSize)
}

// SubscribeOn 把订阅动作转移到指定调度器
func (o *observableImpl) SubscribeOn(scheduler Scheduler) Observable {
	return subscribeOn(o, scheduler)
}

// ============================================================================
// 订阅Sink
// ============================================================================

// subscriptionSink 订阅边界的适配器。持有上游Disposable，
// 向下游转发通知并强制执行 Next* (Error | Completed)? 语法：
// 至多一个终止通知，终止或释放后不再有任何通知
type subscriptionSink struct {
	observer    Observer
	upstream    *SingleAssignmentDisposable
	terminated  int32
	disposed    int32
	diagnostics bool
}

// newSubscriptionSink 创建订阅Sink
func newSubscriptionSink(observer Observer, diagnostics bool) *subscriptionSink {
	diagSubscriptionOpened(diagnostics)
	return &subscriptionSink{
		observer:    observer,
		upstream:    NewSingleAssignmentDisposable(),
		diagnostics: diagnostics,
	}
}

// setUpstream 挂接上游订阅。若Sink已经终止或被释放，
// 上游会被立即释放
func (s *subscriptionSink) setUpstream(upstream Disposable) {
	s.upstream.Set(upstream)
}

// notify 向下游转发一个通知
func (s *subscriptionSink) notify(n Notification) {
	if atomic.LoadInt32(&s.disposed) == 1 {
		return
	}

	if n.Kind == KindNext {
		if atomic.LoadInt32(&s.terminated) == 1 {
			return
		}
		if r := s.deliver(n); r != nil {
			// 下游panic被转换成终止错误，避免击穿共享worker
			s.notify(CreateError(recoveredError(r)))
		}
		diagNotificationDelivered(s.diagnostics)
		return
	}

	if !atomic.CompareAndSwapInt32(&s.terminated, 0, 1) {
		return
	}
	s.deliver(n)
	diagNotificationDelivered(s.diagnostics)
	s.Dispose()
}

// deliver 调用下游观察者并捕获panic
func (s *subscriptionSink) deliver(n Notification) (recovered interface{}) {
	defer func() {
		recovered = recover()
	}()
	s.observer(n)
	return nil
}

// Dispose 释放订阅。可与进行中的投递并发调用，之后不再
// 转发任何通知
func (s *subscriptionSink) Dispose() {
	if atomic.CompareAndSwapInt32(&s.disposed, 0, 1) {
		diagSubscriptionClosed(s.diagnostics)
		s.upstream.Dispose()
	}
}

// IsDisposed 检查订阅是否已释放
func (s *subscriptionSink) IsDisposed() bool {
	return atomic.LoadInt32(&s.disposed) == 1
}

// recoveredError 把recover的值转换为error
func recoveredError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("rxcore: panic in stream callback: %v", r)
}
