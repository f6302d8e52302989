package common

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryBackoff — пауза перед единственным повтором.
var RetryBackoff = 300 * time.Millisecond

// RetryOnce выполняет fn и, если она упала с ErrUnavailable, повторяет ровно один раз
// после паузы. Отказы по правилам (нет сообщений, промокод истёк) не повторяются.
// Только для идемпотентных операций: списания сюда не передавать.
func RetryOnce[T any](ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	res, err := fn(ctx)
	if err == nil || !IsUnavailable(err) {
		return res, err
	}

	log.WithError(err).WithField("op", op).Warn("хранилище недоступно, повторяем")

	timer := time.NewTimer(RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-timer.C:
	}

	return fn(ctx)
}
