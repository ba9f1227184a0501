package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboarding/pkg/domain-errors"
)

func TestShardedTransactor_SerializesSameKey(t *testing.T) {
	tr := NewShardedTransactor()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.RunInTx(ctx, "customer-1", func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestShardedTransactor_PropagatesError(t *testing.T) {
	tr := NewShardedTransactor()
	boom := errors.New("boom")
	err := tr.RunInTx(context.Background(), "k", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestShardedTransactor_CancelledContext(t *testing.T) {
	tr := NewShardedTransactor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := tr.RunInTx(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestFrom_Empty(t *testing.T) {
	_, ok := From(context.Background())
	assert.False(t, ok)
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}
