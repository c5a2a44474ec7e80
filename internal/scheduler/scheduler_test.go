package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWithRecover(t *testing.T) {
	s := &Scheduler{}

	t.Run("panic is swallowed", func(t *testing.T) {
		task := s.taskWithRecover(func(ctx context.Context) error {
			panic("boom")
		}, "panicking")
		assert.NotPanics(t, func() { task(context.Background()) })
	})

	t.Run("request id is attached", func(t *testing.T) {
		var rqID string
		task := s.taskWithRecover(func(ctx context.Context) error {
			rqID = utils.GetRequestIDFromCtx(ctx)
			return errors.New("failed")
		}, "failing")
		task(context.Background())
		assert.NotEmpty(t, rqID)
	})
}

func TestNewOneTimeJobRuns(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	done := make(chan struct{})
	err := s.NewOneTimeJob("once", func(ctx context.Context) error {
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("one time job did not run")
	}
}
