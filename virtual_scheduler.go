// Virtual time scheduler for rxcore
// 虚拟时间调度器：推进逻辑时钟，确定性地重放调度过的任务
package rxcore

import (
	"container/heap"
	"sync"
	"time"
)

// ============================================================================
// 虚拟时间调度器 - Virtual Time Scheduler
// ============================================================================

// Ticks 把时长换算成虚拟时钟tick，1纳秒对应1个tick
func Ticks(d time.Duration) int64 {
	return int64(d)
}

// VirtualTimeScheduler 以逻辑时钟驱动的确定性调度器。
// 待执行任务按(到期时间, 插入序号)全序排列，序号打破同刻
// 任务的平局，保证逐位可重现的重放
type VirtualTimeScheduler struct {
	mu      sync.Mutex
	clock   int64
	seq     int64
	pending virtualQueue
	running bool

	// self 作为调度器身份传给动作，允许TestScheduler这样的
	// 包装器覆盖重调度语义
	self Scheduler
}

// NewVirtualTimeScheduler 创建虚拟时间调度器，时钟从0开始
func NewVirtualTimeScheduler() *VirtualTimeScheduler {
	v := &VirtualTimeScheduler{}
	v.self = v
	return v
}

// Now 返回当前虚拟时钟
func (v *VirtualTimeScheduler) Now() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clock
}

// Schedule 在当前虚拟时刻调度任务
func (v *VirtualTimeScheduler) Schedule(state interface{}, action Action) Disposable {
	return v.ScheduleAbsolute(v.Now(), state, action)
}

// ScheduleAfter 在当前时刻加延迟处调度任务
func (v *VirtualTimeScheduler) ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable {
	return v.ScheduleAbsolute(v.Now()+Ticks(delay), state, action)
}

// ScheduleAbsolute 在指定虚拟时刻调度任务。释放返回的令牌会
// 把尚未运行的任务从队列中移除
func (v *VirtualTimeScheduler) ScheduleAbsolute(due int64, state interface{}, action Action) Disposable {
	item := newScheduledItem(state, action)

	v.mu.Lock()
	if due < v.clock {
		due = v.clock
	}
	entry := &virtualEntry{due: due, seq: v.seq, item: item}
	v.seq++
	heap.Push(&v.pending, entry)
	v.mu.Unlock()

	return item
}

// Start 运行所有待执行任务直到队列耗尽，时钟停在最后一个
// 任务的到期时刻
func (v *VirtualTimeScheduler) Start() {
	v.advance(0, false)
}

// StartUntil 运行到期时刻不超过horizon的任务，时钟停在horizon
func (v *VirtualTimeScheduler) StartUntil(horizon int64) {
	v.advance(horizon, true)
}

// AdvanceTo 把时钟推进到指定时刻，沿途执行到期任务
func (v *VirtualTimeScheduler) AdvanceTo(t int64) {
	v.advance(t, true)
}

// AdvanceBy 把时钟推进指定的tick数
func (v *VirtualTimeScheduler) AdvanceBy(delta int64) {
	v.advance(v.Now()+delta, true)
}

// advance 同步排水循环。执行动作时不持有锁，动作可以调度新任务
func (v *VirtualTimeScheduler) advance(until int64, bounded bool) {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		panic(&InvalidStateError{
			Op:     "VirtualTimeScheduler.advance",
			Reason: "clock is already being advanced",
		})
	}
	v.running = true

	for {
		var entry *virtualEntry
		for v.pending.Len() > 0 {
			head := v.pending[0]
			if head.item.IsDisposed() {
				heap.Pop(&v.pending)
				continue
			}
			entry = head
			break
		}
		if entry == nil || (bounded && entry.due > until) {
			break
		}
		heap.Pop(&v.pending)
		if entry.due > v.clock {
			v.clock = entry.due
		}
		v.mu.Unlock()

		entry.item.run(v.self)

		v.mu.Lock()
	}

	if bounded && until > v.clock {
		v.clock = until
	}
	v.running = false
	v.mu.Unlock()
}

// PendingCount 返回尚未运行且未取消的任务数
func (v *VirtualTimeScheduler) PendingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	count := 0
	for _, entry := range v.pending {
		if !entry.item.IsDisposed() {
			count++
		}
	}
	return count
}

// ============================================================================
// (到期时间, 序号) 优先队列
// ============================================================================

// virtualEntry 队列中的一项
type virtualEntry struct {
	due   int64
	seq   int64
	item  *scheduledItem
	index int
}

// virtualQueue 按(due, seq)排序的二叉堆
type virtualQueue []*virtualEntry

// Len 实现heap.Interface
func (q virtualQueue) Len() int { return len(q) }

// Less 先比较到期时间，同刻任务按插入序号排序
func (q virtualQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

// Swap 实现heap.Interface
func (q virtualQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

// Push 实现heap.Interface
func (q *virtualQueue) Push(x interface{}) {
	entry := x.(*virtualEntry)
	entry.index = len(*q)
	*q = append(*q, entry)
}

// Pop 实现heap.Interface
func (q *virtualQueue) Pop() interface{} {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*q = old[:n-1]
	return entry
}
