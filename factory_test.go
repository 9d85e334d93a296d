// Tests for factory functions
// 工厂函数的测试
package rxcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactories(t *testing.T) {
	t.Run("Just同步发射后完成", func(t *testing.T) {
		var values []interface{}
		completed := false

		Just(1, 2, 3).SubscribeWithCallbacks(
			func(value interface{}) { values = append(values, value) },
			nil,
			func() { completed = true },
		)

		assert.Equal(t, []interface{}{1, 2, 3}, values)
		assert.True(t, completed)
	})

	t.Run("Range发射整数区间", func(t *testing.T) {
		var values []interface{}
		Range(5, 3).SubscribeWithCallbacks(
			func(value interface{}) { values = append(values, value) },
			nil, nil,
		)
		assert.Equal(t, []interface{}{5, 6, 7}, values)
	})

	t.Run("Empty立即完成", func(t *testing.T) {
		completed := false
		var values []interface{}

		Empty().SubscribeWithCallbacks(
			func(value interface{}) { values = append(values, value) },
			nil,
			func() { completed = true },
		)

		assert.Empty(t, values)
		assert.True(t, completed)
	})

	t.Run("Error立即发射错误", func(t *testing.T) {
		boom := errors.New("boom")
		var got error

		Error(boom).SubscribeWithCallbacks(nil, func(err error) { got = err }, nil)

		assert.Equal(t, boom, got)
	})

	t.Run("Never不发射任何通知", func(t *testing.T) {
		sub := Never().Subscribe(func(n Notification) {
			t.Errorf("不应收到任何通知: %v", n)
		})

		assert.False(t, sub.IsDisposed())
		sub.Dispose()
		assert.True(t, sub.IsDisposed())
	})

	t.Run("Create经过语法防护", func(t *testing.T) {
		var kinds []NotificationKind
		Create(func(observer Observer) {
			observer(CreateNext("a"))
			observer(CreateCompleted())
			observer(CreateNext("b"))
		}).Subscribe(func(n Notification) {
			kinds = append(kinds, n.Kind)
		})

		assert.Equal(t, []NotificationKind{KindNext, KindCompleted}, kinds)
	})

	t.Run("冷Observable可以多次订阅", func(t *testing.T) {
		obs := Just(1, 2)
		for i := 0; i < 3; i++ {
			var values []interface{}
			obs.SubscribeWithCallbacks(
				func(value interface{}) { values = append(values, value) },
				nil, nil,
			)
			assert.Equal(t, []interface{}{1, 2}, values, "第 %d 次订阅", i)
		}
	})
}
