// Disposable implementations for rxcore
// 可释放资源的基础实现：单资源、单赋值槽、可替换槽与稳定组合
package rxcore

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// 基础Disposable
// ============================================================================

// baseDisposable 基础可释放资源实现，释放动作恰好执行一次
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewBaseDisposable 创建基础可释放资源，action可以为nil
func NewBaseDisposable(action func()) Disposable {
	return &baseDisposable{
		action: action,
	}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// ============================================================================
// 已释放的空实例
// ============================================================================

// disposedDisposable 永远处于已释放状态的空实现
type disposedDisposable struct{}

// Dispose 空操作
func (disposedDisposable) Dispose() {}

// IsDisposed 恒为true
func (disposedDisposable) IsDisposed() bool { return true }

// Disposed 共享的已释放实例，用作无资源可释放时的返回值
var Disposed Disposable = disposedDisposable{}

// ============================================================================
// 单赋值槽 - SingleAssignmentDisposable
// ============================================================================

// SingleAssignmentDisposable 最多容纳一个Disposable的槽。
// 先释放后赋值时，新值被立即释放；重复赋值属于编程错误
type SingleAssignmentDisposable struct {
	mu       sync.Mutex
	current  Disposable
	assigned bool
	disposed bool
}

// NewSingleAssignmentDisposable 创建单赋值槽
func NewSingleAssignmentDisposable() *SingleAssignmentDisposable {
	return &SingleAssignmentDisposable{}
}

// Set 赋值。槽已释放时立即释放d；重复赋值panic InvalidStateError
func (s *SingleAssignmentDisposable) Set(d Disposable) {
	s.mu.Lock()
	if s.assigned {
		s.mu.Unlock()
		panic(&InvalidStateError{
			Op:     "SingleAssignmentDisposable.Set",
			Reason: "disposable already assigned",
		})
	}
	s.assigned = true
	disposed := s.disposed
	if !disposed {
		s.current = d
	}
	s.mu.Unlock()

	if disposed && d != nil {
		d.Dispose()
	}
}

// Get 返回当前持有的Disposable，可能为nil
func (s *SingleAssignmentDisposable) Get() Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dispose 释放槽与其中的资源
func (s *SingleAssignmentDisposable) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	old := s.current
	s.current = nil
	s.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (s *SingleAssignmentDisposable) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// ============================================================================
// 可替换槽 - SerialDisposable
// ============================================================================

// SerialDisposable 可反复替换内容的槽，替换时释放旧值，
// 槽本身释放后再赋的值会被立即释放
type SerialDisposable struct {
	mu       sync.Mutex
	current  Disposable
	disposed bool
}

// NewSerialDisposable 创建可替换槽
func NewSerialDisposable() *SerialDisposable {
	return &SerialDisposable{}
}

// Set 替换槽中的Disposable，被替换的旧值会被释放
func (s *SerialDisposable) Set(d Disposable) {
	s.mu.Lock()
	disposed := s.disposed
	var old Disposable
	if !disposed {
		old = s.current
		s.current = d
	}
	s.mu.Unlock()

	if disposed {
		if d != nil {
			d.Dispose()
		}
		return
	}
	if old != nil {
		old.Dispose()
	}
}

// Get 返回当前持有的Disposable，可能为nil
func (s *SerialDisposable) Get() Disposable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Dispose 释放槽与当前内容
func (s *SerialDisposable) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	old := s.current
	s.current = nil
	s.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (s *SerialDisposable) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// ============================================================================
// 稳定组合
// ============================================================================

// CombineDisposables 把若干Disposable组合成一个。组合后的Dispose
// 恰好触发每个成员一次；即使某个成员释放时panic，其余成员仍会
// 被释放，最后重新抛出首个panic
func CombineDisposables(disposables ...Disposable) Disposable {
	members := make([]Disposable, 0, len(disposables))
	for _, d := range disposables {
		if d != nil {
			members = append(members, d)
		}
	}
	return &stableComposite{members: members}
}

// stableComposite 固定成员集合的一次性组合
type stableComposite struct {
	disposed int32
	members  []Disposable
}

// Dispose 释放每个成员恰好一次
func (c *stableComposite) Dispose() {
	if !atomic.CompareAndSwapInt32(&c.disposed, 0, 1) {
		return
	}
	members := c.members
	c.members = nil
	DisposeAll(members...)
}

// IsDisposed 检查是否已释放
func (c *stableComposite) IsDisposed() bool {
	return atomic.LoadInt32(&c.disposed) == 1
}

// DisposeAll 释放全部给定资源。任一成员panic不会阻止其余成员
// 的释放；全部完成后重新抛出首个panic。错误路径上的清理不可
// 因为触发条件异常而被跳过
func DisposeAll(disposables ...Disposable) {
	var firstPanic interface{}
	for _, d := range disposables {
		if d == nil {
			continue
		}
		if r := safeDispose(d); r != nil && firstPanic == nil {
			firstPanic = r
		}
	}
	if firstPanic != nil {
		panic(firstPanic)
	}
}

// safeDispose 执行Dispose并捕获panic
func safeDispose(d Disposable) (recovered interface{}) {
	defer func() {
		recovered = recover()
	}()
	d.Dispose()
	return nil
}
