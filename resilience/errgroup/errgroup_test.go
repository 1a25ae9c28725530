package errgroup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAllSucceed(t *testing.T) {
	group, _ := WithContext(context.Background())

	for i := 0; i < 5; i++ {
		group.Go(func() error { return nil })
	}

	assert.NoError(t, group.Wait())
}

func TestGroupFirstErrorWinsAndCancels(t *testing.T) {
	group, ctx := WithContext(context.Background())
	boom := errors.New("boom")

	group.Go(func() error { return boom })
	group.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("cancellation never arrived")
		}
	})

	require.ErrorIs(t, group.Wait(), boom)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not canceled after Wait")
	}
}

func TestGroupRecoversPanic(t *testing.T) {
	group, _ := WithContext(context.Background())

	group.Go(func() error { panic("unexpected state") })

	err := group.Wait()
	require.ErrorIs(t, err, ErrPanicRecovered)
	assert.Contains(t, err.Error(), "unexpected state")
}

func TestGroupWaitCancelsContext(t *testing.T) {
	group, ctx := WithContext(context.Background())

	group.Go(func() error { return nil })
	require.NoError(t, group.Wait())

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not canceled after Wait")
	}
}
