// Factory functions for rxcore
// 工厂函数：供测试夹具与操作符边界用例使用的最小集合
package rxcore

// ============================================================================
// 基础工厂函数
// ============================================================================

// Create 从发射器函数创建Observable。发射器在订阅goroutine上
// 同步运行，通知语法由订阅Sink强制保证
func Create(emitter func(observer Observer)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		emitter(observer)
		return Disposed
	})
}

// Just 从给定的值创建Observable，订阅时同步发射后完成
func Just(values ...interface{}) Observable {
	return NewObservable(func(observer Observer) Disposable {
		cancel := NewBaseDisposable(nil)
		for _, value := range values {
			if cancel.IsDisposed() {
				return cancel
			}
			observer(CreateNext(value))
		}
		observer(CreateCompleted())
		return cancel
	})
}

// Empty 创建一个空的Observable，订阅时立即完成
func Empty() Observable {
	return NewObservable(func(observer Observer) Disposable {
		observer(CreateCompleted())
		return Disposed
	})
}

// Never 创建一个永不发射任何通知的Observable
func Never() Observable {
	return NewObservable(func(observer Observer) Disposable {
		return NewBaseDisposable(nil)
	})
}

// Error 创建一个订阅时立即发射错误的Observable
func Error(err error) Observable {
	return NewObservable(func(observer Observer) Disposable {
		observer(CreateError(err))
		return Disposed
	})
}

// Range 创建发射指定范围整数的Observable
func Range(start, count int) Observable {
	return NewObservable(func(observer Observer) Disposable {
		cancel := NewBaseDisposable(nil)
		for i := 0; i < count; i++ {
			if cancel.IsDisposed() {
				return cancel
			}
			observer(CreateNext(start + i))
		}
		observer(CreateCompleted())
		return cancel
	})
}
