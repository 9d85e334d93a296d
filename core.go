// Package rxcore provides the scheduling and resource-disposal core of a reactive stream engine
// 响应式流执行引擎的调度与资源释放核心，专注于调度器抽象和订阅生命周期管理
package rxcore

import (
	"fmt"
	"time"
)

// ============================================================================
// 通知类型定义
// ============================================================================

// NotificationKind 通知的类型，封闭的变体集合
type NotificationKind int

const (
	// KindNext 携带一个数据值
	KindNext NotificationKind = iota
	// KindError 携带终止错误
	KindError
	// KindCompleted 正常完成信号
	KindCompleted
)

// Notification 表示流中的一个通知，语法为 Next* (Error | Completed)?
type Notification struct {
	Kind  NotificationKind // 通知类型
	Value interface{}      // 数据值，仅Next有效
	Err   error            // 错误信息，仅Error有效
}

// CreateNext 创建携带值的通知
func CreateNext(value interface{}) Notification {
	return Notification{Kind: KindNext, Value: value}
}

// CreateError 创建错误通知
func CreateError(err error) Notification {
	return Notification{Kind: KindError, Err: err}
}

// CreateCompleted 创建完成通知
func CreateCompleted() Notification {
	return Notification{Kind: KindCompleted}
}

// IsTerminal 检查是否为终止通知（Error或Completed）
func (n Notification) IsTerminal() bool {
	return n.Kind != KindNext
}

// String 返回通知的可读表示，便于测试输出
func (n Notification) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("Next(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("Error(%v)", n.Err)
	default:
		return "Completed"
	}
}

// ============================================================================
// 函数类型定义
// ============================================================================

// Observer 观察者函数类型，接收通知序列
type Observer func(n Notification)

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// NewObserver 从回调函数创建Observer，nil回调会被跳过
func NewObserver(onNext OnNext, onError OnError, onComplete OnComplete) Observer {
	return func(n Notification) {
		switch n.Kind {
		case KindNext:
			if onNext != nil {
				onNext(n.Value)
			}
		case KindError:
			if onError != nil {
				onError(n.Err)
			}
		case KindCompleted:
			if onComplete != nil {
				onComplete()
			}
		}
	}
}

// ============================================================================
// 生命周期管理
// ============================================================================

// Disposable 可释放资源的接口，Dispose是幂等的
type Disposable interface {
	// Dispose 释放资源，重复调用无额外效果
	Dispose()
	// IsDisposed 检查是否已释放
	IsDisposed() bool
}

// ============================================================================
// 调度器接口
// ============================================================================

// Action 被调度的工作单元。调度器把自身作为第一个参数传入，
// 动作可以用它重新调度自己而不产生递归；返回的Disposable会
// 挂接到原始的取消令牌上，释放令牌时一并取消后续工作
type Action func(scheduler Scheduler, state interface{}) Disposable

// Scheduler 调度器接口，控制任务在何处、何时执行
type Scheduler interface {
	// Schedule 尽快调度一个任务，返回取消令牌
	Schedule(state interface{}, action Action) Disposable
	// ScheduleAfter 延迟调度一个任务，返回取消令牌
	ScheduleAfter(state interface{}, delay time.Duration, action Action) Disposable
}

// ============================================================================
// Observable 核心接口
// ============================================================================

// Observable 可观察序列。订阅是唯一有副作用的操作，
// 每次订阅都是一次独立的资源获取
type Observable interface {
	// Subscribe 订阅观察者，返回的Disposable即为订阅本身
	Subscribe(observer Observer) Disposable

	// SubscribeWithCallbacks 使用回调函数订阅
	SubscribeWithCallbacks(onNext OnNext, onError OnError, onComplete OnComplete) Disposable

	// ObserveOn 把通知的投递转移到指定调度器
	ObserveOn(scheduler Scheduler) Observable

	// SubscribeOn 把订阅动作本身转移到指定调度器
	SubscribeOn(scheduler Scheduler) Observable
}

// ============================================================================
// 编程错误
// ============================================================================

// InvalidStateError 表示API使用错误（如重复设置单赋值槽、
// 在已释放的调度器上继续调度）。这类错误不可恢复，
// 通过panic快速失败暴露
type InvalidStateError struct {
	Op     string // 出错的操作
	Reason string // 错误原因
}

// Error 实现error接口
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("rxcore: %s: %s", e.Op, e.Reason)
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config Observable配置
type Config struct {
	BufferSize  int  // 内部队列的初始容量
	Diagnostics bool // 是否上报诊断计数
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		BufferSize: 16,
	}
}

// WithBufferSize 设置内部队列初始容量的选项
func WithBufferSize(size int) Option {
	return bufferSizeOption(size)
}

type bufferSizeOption int

// Apply 应用缓冲区选项
func (o bufferSizeOption) Apply(config *Config) {
	if int(o) > 0 {
		config.BufferSize = int(o)
	}
}

// WithDiagnostics 开启订阅诊断计数的选项
func WithDiagnostics() Option {
	return diagnosticsOption{}
}

type diagnosticsOption struct{}

// Apply 应用诊断选项
func (o diagnosticsOption) Apply(config *Config) {
	config.Diagnostics = true
}
