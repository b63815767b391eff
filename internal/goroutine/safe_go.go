package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// SafeGo запускает fn в отдельной горутине и гасит panic: сбой фонового
// канала доставки не должен ронять процесс.
func SafeGo(fn func()) {
	go func() {
		defer logPanic()
		fn()
	}()
}

// SafeGoWithContext запускает fn с контекстом. Контекст отвязывает
// вызывающий: время жизни горутины не связано с HTTP запросом.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer logPanic()
		fn(ctx)
	}()
}

func logPanic() {
	if r := recover(); r != nil {
		logrus.WithField("stack", string(debug.Stack())).Errorf("goroutine: восстановлена паника: %v", r)
	}
}
