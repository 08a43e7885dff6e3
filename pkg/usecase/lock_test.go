package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func TestKeyedLock(t *testing.T) {
	t.Run("same key waits", func(t *testing.T) {
		l := usecase.NewKeyedLock()
		ctx := context.Background()

		release, err := usecase.LockKey(ctx, l, "p1")
		gt.NoError(t, err).Required()

		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = usecase.LockKey(waitCtx, l, "p1")
		gt.Error(t, err).Is(context.DeadlineExceeded)

		other, err := usecase.LockKey(ctx, l, "p2")
		gt.NoError(t, err).Required()
		other()

		release()
		again, err := usecase.LockKey(ctx, l, "p1")
		gt.NoError(t, err).Required()
		again()
	})

	t.Run("entries are dropped after release", func(t *testing.T) {
		l := usecase.NewKeyedLock()
		release, err := usecase.LockKey(context.Background(), l, "p1")
		gt.NoError(t, err).Required()
		gt.Value(t, usecase.KeyedLockSize(l)).Equal(1)

		release()
		release()
		gt.Value(t, usecase.KeyedLockSize(l)).Equal(0)
	})
}
