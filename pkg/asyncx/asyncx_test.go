package asyncx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/asyncx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestFuture_AwaitIsRepeatable(t *testing.T) {
	calls := 0
	f := asyncx.Run(func() (int, error) {
		calls++
		return 42, nil
	})

	v, err := f.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = f.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestAll_KeepsOrderAndReturnsFirstError(t *testing.T) {
	ctx := context.Background()

	out, err := asyncx.All(ctx,
		func(context.Context) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "a", nil
		},
		func(context.Context) (string, error) { return "b", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	first := errors.New("first")
	_, err = asyncx.All(ctx,
		func(context.Context) (string, error) { return "", first },
		func(context.Context) (string, error) { return "", errors.New("second") },
	)
	assert.ErrorIs(t, err, first)
}

func TestBounded_IgnoresCallerCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	cancel()

	got, err := asyncx.Bounded(parent, time.Second, func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, _ := ctx.Value(ctxKey{}).(string)
		return v, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestBoundedErr_AppliesDeadline(t *testing.T) {
	err := asyncx.BoundedErr(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
