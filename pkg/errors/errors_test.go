package errors

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsFollowsChain(t *testing.T) {
	base := stderrors.New("connection reset")
	err := Wrap(ErrCodeStructural, Transient(base, "fetch path"), "apply merge at %d", 42)

	assert.True(t, Is(err, ErrCodeStructural))
	assert.True(t, Is(err, ErrCodeTransientRemote))
	assert.False(t, Is(err, ErrCodeNotFound))
	assert.Equal(t, ErrCodeStructural, GetCode(err))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "apply merge at 42")
}

func TestTransientNil(t *testing.T) {
	assert.NoError(t, Transient(nil, "nothing"))
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		retries := 0
		err := Retry(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return Transient(stderrors.New("timeout"), "call")
			}
			return nil
		}, func(int, error) { retries++ })

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
	})

	t.Run("returns non transient error at once", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 5, time.Millisecond, func() error {
			calls++
			return New(ErrCodeInvalidInput, "bad")
		}, nil)

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 4, time.Millisecond, func() error {
			calls++
			return Transient(stderrors.New("down"), "call")
		}, nil)

		assert.True(t, IsTransient(err))
		assert.Equal(t, 4, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, 4, time.Second, func() error {
			return Transient(stderrors.New("down"), "call")
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestAnnotateKeepsCode(t *testing.T) {
	err := Annotate(Transient(stderrors.New("reset"), "lookup"), "node %d", 7)
	assert.Equal(t, ErrCodeTransientRemote, GetCode(err))
	assert.Equal(t, ErrCodeInternal, GetCode(Annotate(stderrors.New("x"), "y")))
	assert.NoError(t, Annotate(nil, "nothing"))
}
