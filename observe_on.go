// observeOn operator for rxcore
// 把通知投递转移到目标调度器，保持顺序并保证终止即最终
package rxcore

import (
	"sync"
)

// 泵状态机，显式状态替代递归闭包，限制高吞吐下的栈深度
const (
	pumpIdle = iota
	pumpActive
	pumpDisposed
)

// observeOn 返回在scheduler上投递通知的Observable。
// 订阅动作仍在调用goroutine上同步发生，只有投递被转移
func observeOn(source Observable, scheduler Scheduler, bufferSize int) Observable {
	return NewObservable(func(observer Observer) Disposable {
		sink := &observeOnSink{
			observer:  observer,
			scheduler: scheduler,
			queue:     make([]Notification, 0, bufferSize),
			upstream:  NewSingleAssignmentDisposable(),
		}
		sink.upstream.Set(source.Subscribe(sink.enqueue))
		return sink
	})
}

// observeOnSink 单订阅的投递泵。上游通知先进入FIFO队列，
// 队列由空变非空时调度一个泵任务；泵每投递一项就重新调度
// 自己，慢消费者不会饿死调度器的执行上下文。同一订阅任一
// 时刻至多存在一个活动泵，这是顺序保证的来源
type observeOnSink struct {
	observer  Observer
	scheduler Scheduler

	mu    sync.Mutex
	queue []Notification
	state int

	upstream *SingleAssignmentDisposable
}

// enqueue 接收上游通知。投递永远不在持锁状态下进行
func (s *observeOnSink) enqueue(n Notification) {
	s.mu.Lock()
	if s.state == pumpDisposed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, n)
	start := s.state == pumpIdle
	if start {
		s.state = pumpActive
	}
	s.mu.Unlock()

	// 调度结果不保存：若Dispose与泵启动竞争，泵会在状态机上
	// 看到已释放并自行退出，这比竞速取消令牌更可靠
	if start {
		s.scheduler.Schedule(nil, s.pump)
	}
}

// pump 从队列取出一项投递给下游，仍有工作时重新调度自己。
// 终止通知投递后丢弃残留项并释放上游——终止即最终
func (s *observeOnSink) pump(scheduler Scheduler, _ interface{}) Disposable {
	s.mu.Lock()
	if s.state == pumpDisposed {
		s.mu.Unlock()
		return Disposed
	}
	if len(s.queue) == 0 {
		s.state = pumpIdle
		s.mu.Unlock()
		return Disposed
	}
	n := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	s.observer(n)

	if n.IsTerminal() {
		s.Dispose()
		return Disposed
	}

	s.mu.Lock()
	if s.state != pumpActive || len(s.queue) == 0 {
		if s.state == pumpActive {
			s.state = pumpIdle
		}
		s.mu.Unlock()
		return Disposed
	}
	s.mu.Unlock()

	return scheduler.Schedule(nil, s.pump)
}

// Dispose 释放订阅：停止泵、丢弃未投递的通知并释放上游
func (s *observeOnSink) Dispose() {
	s.mu.Lock()
	if s.state == pumpDisposed {
		s.mu.Unlock()
		return
	}
	s.state = pumpDisposed
	s.queue = nil
	s.mu.Unlock()

	s.upstream.Dispose()
}

// IsDisposed 检查订阅是否已释放
func (s *observeOnSink) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == pumpDisposed
}
