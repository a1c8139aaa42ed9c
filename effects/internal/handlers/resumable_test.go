package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects/internal/handlers"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumableHandler_ResumesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	handler := handlers.NewResumableHandler(ctx, 1,
		func(_ context.Context, x int) (int, error) { return x * 2, nil },
		func() {},
	)
	defer handler.Close()

	ch := handler.PerformEffect(ctx, 21)
	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)

	_, ok = <-ch
	assert.False(t, ok, "resume channel must be closed after one result")
}

func TestResumableHandler_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()
	handler := handlers.NewResumableHandler(ctx, 1,
		func(context.Context, string) (string, error) { return "", boom },
		func() {},
	)
	defer handler.Close()

	res := <-handler.PerformEffect(ctx, "x")
	assert.ErrorIs(t, res.Err, boom)
}

func TestResumableHandler_PanicBecomesError(t *testing.T) {
	ctx := context.Background()
	handler := handlers.NewResumableHandler(ctx, 1,
		func(_ context.Context, x int) (int, error) {
			if x < 0 {
				panic("negative")
			}
			return x, nil
		},
		func() {},
	)
	defer handler.Close()

	res := <-handler.PerformEffect(ctx, -1)
	assert.ErrorIs(t, res.Err, handlers.ErrHandlerPanic)

	// the worker survives
	res = <-handler.PerformEffect(ctx, 3)
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Value)
}

func TestResumableHandler_ClosedScopeReportsError(t *testing.T) {
	ctx := context.Background()
	handler := handlers.NewResumableHandler(ctx, 1,
		func(_ context.Context, x int) (int, error) { return x, nil },
		func() {},
	)
	handler.Close()
	time.Sleep(50 * time.Millisecond) // let the worker close its channel

	select {
	case res := <-handler.PerformEffect(ctx, 1):
		assert.ErrorIs(t, res.Err, effectmodel.ErrEffectScopeClosed)
	case <-time.After(time.Second):
		t.Fatal("closed handler never resumed")
	}
}

func TestResumableHandler_QueuedPayloadGetsScopeClosed(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := handlers.NewResumableHandler(ctx, 4,
		func(_ context.Context, x int) (int, error) {
			if x == 1 {
				close(entered)
				<-release
			}
			return x, nil
		},
		func() {},
	)

	first := handler.PerformEffect(ctx, 1)
	<-entered
	second := handler.PerformEffect(ctx, 2)
	handler.Close()
	close(release)

	res := <-first
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Value)

	select {
	case res := <-second:
		assert.ErrorIs(t, res.Err, effectmodel.ErrEffectScopeClosed)
	case <-time.After(time.Second):
		t.Fatal("queued performer never resumed")
	}

	res = <-handler.PerformEffect(ctx, 3)
	assert.ErrorIs(t, res.Err, effectmodel.ErrEffectScopeClosed)
}

func TestPartitionableResumableHandler_SerializesPerKey(t *testing.T) {
	ctx := context.Background()

	var (
		mu      sync.Mutex
		running = map[string]int{}
		overlap bool
	)
	handler := handlers.NewPartitionableResumableHandler(ctx,
		effectmodel.EffectScopeConfig{BufferSize: 4, NumWorkers: 4},
		func(_ context.Context, msg dummyMessage) (int, error) {
			mu.Lock()
			running[msg.group]++
			if running[msg.group] > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running[msg.group]--
			mu.Unlock()
			return msg.id, nil
		},
		func() {},
	)
	defer handler.Close()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := dummyMessage{id: i, group: fmt.Sprintf("g%d", i%5)}
			res := <-handler.PerformEffect(ctx, msg)
			assert.NoError(t, res.Err)
			assert.Equal(t, i, res.Value)
		}(i)
	}
	wg.Wait()

	assert.False(t, overlap, "payloads with one partition key ran concurrently")
}
