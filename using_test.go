// Tests for the using operator
// using操作符的测试：资源生命周期与订阅生命周期的绑定
package rxcore

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsingFactoryFailure(t *testing.T) {
	t.Run("资源工厂失败只发射一个Error", func(t *testing.T) {
		boom := errors.New("acquire failed")
		var errs []error
		var values []interface{}
		subscribedUpstream := false

		Using(
			func() (Disposable, error) { return nil, boom },
			func(Disposable) (Observable, error) {
				subscribedUpstream = true
				return Just(1), nil
			},
		).SubscribeWithCallbacks(
			func(value interface{}) { values = append(values, value) },
			func(err error) { errs = append(errs, err) },
			nil,
		)

		require.Len(t, errs, 1)
		assert.Equal(t, boom, errs[0])
		assert.Empty(t, values, "失败路径上不应有Next通知")
		assert.False(t, subscribedUpstream, "资源工厂失败后不应构造Observable")
	})

	t.Run("失败前已返回的资源仍被释放", func(t *testing.T) {
		var released int32
		boom := errors.New("acquire failed late")
		partial := NewBaseDisposable(func() { atomic.AddInt32(&released, 1) })

		var errs []error
		Using(
			func() (Disposable, error) { return partial, boom },
			func(Disposable) (Observable, error) { return Just(1), nil },
		).SubscribeWithCallbacks(nil, func(err error) { errs = append(errs, err) }, nil)

		require.Len(t, errs, 1)
		assert.EqualValues(t, 1, atomic.LoadInt32(&released), "部分构造的资源仍要释放")
	})

	t.Run("Observable工厂失败时资源恰好释放一次", func(t *testing.T) {
		var released int32
		boom := errors.New("build failed")
		resource := NewBaseDisposable(func() { atomic.AddInt32(&released, 1) })

		var errs []error
		var values []interface{}
		Using(
			func() (Disposable, error) { return resource, nil },
			func(Disposable) (Observable, error) { return nil, boom },
		).SubscribeWithCallbacks(
			func(value interface{}) { values = append(values, value) },
			func(err error) { errs = append(errs, err) },
			nil,
		)

		require.Len(t, errs, 1)
		assert.Equal(t, boom, errs[0])
		assert.Empty(t, values)
		assert.EqualValues(t, 1, atomic.LoadInt32(&released))
	})

	t.Run("Observable工厂panic同样走错误路径", func(t *testing.T) {
		var released int32
		resource := NewBaseDisposable(func() { atomic.AddInt32(&released, 1) })

		var errs []error
		Using(
			func() (Disposable, error) { return resource, nil },
			func(Disposable) (Observable, error) { panic("builder exploded") },
		).SubscribeWithCallbacks(nil, func(err error) { errs = append(errs, err) }, nil)

		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "builder exploded")
		assert.EqualValues(t, 1, atomic.LoadInt32(&released))
	})
}

func TestUsingLifetime(t *testing.T) {
	t.Run("完成后资源恰好释放一次", func(t *testing.T) {
		var released int32
		resource := NewBaseDisposable(func() { atomic.AddInt32(&released, 1) })

		var values []interface{}
		completed := false
		sub := Using(
			func() (Disposable, error) { return resource, nil },
			func(r Disposable) (Observable, error) { return Just(1, 2), nil },
		).SubscribeWithCallbacks(
			func(value interface{}) { values = append(values, value) },
			nil,
			func() { completed = true },
		)

		assert.True(t, completed)
		assert.Equal(t, []interface{}{1, 2}, values)
		assert.EqualValues(t, 1, atomic.LoadInt32(&released))

		sub.Dispose()
		assert.EqualValues(t, 1, atomic.LoadInt32(&released), "重复释放不产生额外效果")
	})

	t.Run("错误终止后资源恰好释放一次", func(t *testing.T) {
		var released int32
		boom := errors.New("stream failed")
		resource := NewBaseDisposable(func() { atomic.AddInt32(&released, 1) })

		var errs []error
		Using(
			func() (Disposable, error) { return resource, nil },
			func(Disposable) (Observable, error) { return Error(boom), nil },
		).SubscribeWithCallbacks(nil, func(err error) { errs = append(errs, err) }, nil)

		require.Len(t, errs, 1)
		assert.EqualValues(t, 1, atomic.LoadInt32(&released))
	})

	t.Run("显式取消释放资源与上游订阅", func(t *testing.T) {
		var released int32
		resource := NewBaseDisposable(func() { atomic.AddInt32(&released, 1) })

		sub := Using(
			func() (Disposable, error) { return resource, nil },
			func(Disposable) (Observable, error) { return Never(), nil },
		).Subscribe(func(Notification) {})

		assert.EqualValues(t, 0, atomic.LoadInt32(&released), "订阅存活期间资源不应被释放")

		sub.Dispose()
		assert.EqualValues(t, 1, atomic.LoadInt32(&released))
	})

	t.Run("资源在虚拟时间轴上随订阅结束释放", func(t *testing.T) {
		s := NewTestScheduler()
		var releasedAt int64 = -1
		resource := NewBaseDisposable(func() { releasedAt = s.Now() })

		s.Start(func() Observable {
			return Using(
				func() (Disposable, error) { return resource, nil },
				func(Disposable) (Observable, error) {
					return s.CreateColdObservable(
						RecordedNext(10, 1),
						RecordedCompleted(20),
					), nil
				},
			)
		})

		assert.EqualValues(t, 220, releasedAt, "资源应在完成通知转发的时刻释放")
	})
}
