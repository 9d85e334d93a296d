// using operator for rxcore
// 把资源的生命周期绑定到订阅的生命周期上
package rxcore

// Using 获取一个资源，用它构造Observable，并保证无论订阅以
// 错误、完成还是显式取消结束，资源都被释放恰好一次。
// 资源工厂失败时观察者收到唯一的Error通知，上游永远不会被
// 订阅；已经返回的资源仍会被释放。Observable工厂失败时同样
// 转换为Error，已获取的资源被释放
func Using(resourceFactory func() (Disposable, error), observableFactory func(resource Disposable) (Observable, error)) Observable {
	return NewObservable(func(observer Observer) Disposable {
		resource, err := resourceFactory()
		if err != nil {
			if resource != nil {
				resource.Dispose()
			}
			observer(CreateError(err))
			return Disposed
		}
		if resource == nil {
			resource = Disposed
		}

		source, err := buildFromResource(observableFactory, resource)
		if err != nil {
			resource.Dispose()
			observer(CreateError(err))
			return Disposed
		}

		// 订阅与资源进入同一个稳定组合：消费者取消或终止通知
		// 转发后，两者都被释放恰好一次，顺序不作保证
		return CombineDisposables(source.Subscribe(observer), resource)
	})
}

// buildFromResource 调用Observable工厂，panic转换为error，
// 保证错误路径上资源仍会被释放
func buildFromResource(factory func(Disposable) (Observable, error), resource Disposable) (source Observable, err error) {
	defer func() {
		if r := recover(); r != nil {
			source = nil
			err = recoveredError(r)
		}
	}()
	return factory(resource)
}
