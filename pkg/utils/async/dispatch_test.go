package async_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/utils/async"
)

func TestRun(t *testing.T) {
	t.Run("delivers value", func(t *testing.T) {
		res := <-async.Run(context.Background(), func(ctx context.Context) (int, error) {
			return 42, nil
		})
		gt.NoError(t, res.Err)
		gt.Value(t, res.Value).Equal(42)
	})

	t.Run("delivers error", func(t *testing.T) {
		target := errors.New("boom")
		res := <-async.Run(context.Background(), func(ctx context.Context) (string, error) {
			return "", target
		})
		gt.Error(t, res.Err).Is(target)
	})

	t.Run("recovers panic", func(t *testing.T) {
		res := <-async.Run(context.Background(), func(ctx context.Context) (int, error) {
			panic("unexpected")
		})
		gt.Value(t, res.Err).NotNil()
	})

	t.Run("survives caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		started := make(chan struct{})
		release := make(chan struct{})

		ch := async.Run(ctx, func(ctx context.Context) (bool, error) {
			close(started)
			<-release
			return ctx.Err() == nil, nil
		})
		<-started
		cancel()
		close(release)

		res := <-ch
		gt.NoError(t, res.Err)
		gt.Bool(t, res.Value).True()
	})

	t.Run("channel is closed after result", func(t *testing.T) {
		ch := async.Run(context.Background(), func(ctx context.Context) (int, error) {
			return 1, nil
		})
		<-ch
		_, ok := <-ch
		gt.Bool(t, ok).False()
	})
}
