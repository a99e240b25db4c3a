package api

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luispater/feeOptOut/internal/portal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProcessor struct {
	inFlight atomic.Int32
	overlaps atomic.Int32
	done     atomic.Int32
}

func (p *countingProcessor) ProcessTask(context.Context, *RequestTask) portal.Response {
	if p.inFlight.Add(1) > 1 {
		p.overlaps.Add(1)
	}
	time.Sleep(2 * time.Millisecond)
	p.inFlight.Add(-1)
	p.done.Add(1)
	return portal.Response{Success: true, ShouldContinue: true}
}

func TestRequestQueueSequential(t *testing.T) {
	processor := &countingProcessor{}
	q := NewRequestQueue(processor)
	require.NoError(t, q.Start())
	assert.Error(t, q.Start())

	tasks := make([]*RequestTask, 0, 5)
	for i := 0; i < 5; i++ {
		task := &RequestTask{ID: "t", Response: make(chan portal.Response, 1)}
		require.NoError(t, q.AddTask(task))
		tasks = append(tasks, task)
	}
	for _, task := range tasks {
		select {
		case resp := <-task.Response:
			assert.True(t, resp.Success)
		case <-time.After(5 * time.Second):
			t.Fatal("task was not processed")
		}
	}

	assert.Zero(t, processor.overlaps.Load())
	assert.Equal(t, int32(5), processor.done.Load())

	require.NoError(t, q.Stop())
	assert.False(t, q.IsRunning())
	assert.Error(t, q.AddTask(&RequestTask{Response: make(chan portal.Response, 1)}))
	assert.Error(t, q.Stop())
}

func TestRequestQueueDropsAbandonedTasks(t *testing.T) {
	processor := &countingProcessor{}
	q := NewRequestQueue(processor)
	require.NoError(t, q.Start())
	defer func() { _ = q.Stop() }()

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	abandoned := &RequestTask{ID: "gone", Context: gone, Response: make(chan portal.Response, 1)}
	live := &RequestTask{ID: "live", Context: context.Background(), Response: make(chan portal.Response, 1)}
	require.NoError(t, q.AddTask(abandoned))
	require.NoError(t, q.AddTask(live))

	select {
	case resp := <-live.Response:
		assert.True(t, resp.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("live task was not processed")
	}

	assert.Empty(t, abandoned.Response)
	assert.Equal(t, int32(1), processor.done.Load())
	stats := q.Stats()
	assert.Equal(t, int64(1), stats.Processed)
	assert.Equal(t, int64(1), stats.Dropped)
}
