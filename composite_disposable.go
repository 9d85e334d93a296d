// Composite disposable with dynamic membership for rxcore
// 支持动态增删成员的组合式资源管理器
package rxcore

import (
	"sync"

	"github.com/google/uuid"
)

// ============================================================================
// 组合式资源管理器
// ============================================================================

// DisposeToken 插入成员时返回的不透明句柄，用于在组合释放前
// 单独移除该成员
type DisposeToken struct {
	id uuid.UUID
}

// CompositeDisposable 线程安全的可变Disposable集合。
// 组合一经释放即永久释放：之后的Add会立即释放传入的资源并
// 返回拒绝标记。释放组合会恰好释放每个当前成员一次
type CompositeDisposable struct {
	mu       sync.Mutex
	disposed bool
	members  map[uuid.UUID]Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(disposables ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{
		members: make(map[uuid.UUID]Disposable),
	}
	for _, d := range disposables {
		cd.Add(d)
	}
	return cd
}

// Add 添加可释放资源，返回移除用的句柄。组合已释放时
// 立即释放d并返回ok=false
func (cd *CompositeDisposable) Add(d Disposable) (token DisposeToken, ok bool) {
	if d == nil {
		return DisposeToken{}, false
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		// 成员释放不能持有锁，避免回调中再次进入组合
		d.Dispose()
		return DisposeToken{}, false
	}
	id := uuid.New()
	cd.members[id] = d
	cd.mu.Unlock()

	return DisposeToken{id: id}, true
}

// Remove 按句柄移除并释放一个成员，成员存在时返回true
func (cd *CompositeDisposable) Remove(token DisposeToken) bool {
	cd.mu.Lock()
	d, found := cd.members[token.id]
	if found {
		delete(cd.members, token.id)
	}
	cd.mu.Unlock()

	if found {
		d.Dispose()
	}
	return found
}

// Len 返回当前成员数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.members)
}

// Dispose 释放所有成员并永久关闭组合
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	members := cd.members
	cd.members = nil
	cd.mu.Unlock()

	drained := make([]Disposable, 0, len(members))
	for _, d := range members {
		drained = append(drained, d)
	}
	DisposeAll(drained...)
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}
