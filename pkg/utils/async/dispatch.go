package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// Result is the outcome of a handler executed by Run
type Result[T any] struct {
	Value T
	Err   error
}

// Run executes handler in a new goroutine detached from the caller's cancellation.
// The logger in ctx is preserved. The returned channel receives exactly one Result
// and is closed afterwards. A panic in handler is reported as an error Result.
func Run[T any](ctx context.Context, handler func(ctx context.Context) (T, error)) <-chan Result[T] {
	bgCtx := context.WithoutCancel(ctx)
	bgCtx = logging.With(bgCtx, logging.From(ctx))

	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				err := goerr.New("panic in async handler", goerr.V("panic", r))
				errutil.Handle(bgCtx, err, "async handler panicked")
				ch <- Result[T]{Err: err}
			}
		}()

		v, err := handler(bgCtx)
		if err != nil {
			errutil.Handle(bgCtx, err, "async handler failed")
		}
		ch <- Result[T]{Value: v, Err: err}
	}()

	return ch
}
