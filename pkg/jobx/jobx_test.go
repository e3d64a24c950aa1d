package jobx_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/jobx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubQueue keeps jobs in a map and records what the client asked of it.
type stubQueue struct {
	mu        sync.Mutex
	jobs      map[string]*jobx.JobInfo
	enqueued  []jobx.Job
	completed []string
	retried   []string
}

func newStubQueue() *stubQueue { return &stubQueue{jobs: map[string]*jobx.JobInfo{}} }

func (q *stubQueue) Enqueue(_ context.Context, job jobx.Job) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, job)
	return "job-1", nil
}

func (q *stubQueue) EnqueueDelayed(ctx context.Context, job jobx.Job, _ time.Duration) (string, error) {
	return q.Enqueue(ctx, job)
}

func (q *stubQueue) GetJob(_ context.Context, id string) (*jobx.JobInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.jobs[id], nil
}

func (q *stubQueue) Dequeue(context.Context, []string, time.Duration) (*jobx.JobInfo, error) {
	return nil, nil
}

func (q *stubQueue) Complete(_ context.Context, id string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, id)
	q.jobs[id].Status = jobx.JobStatusCompleted
	return nil
}

func (q *stubQueue) Fail(_ context.Context, id string, msg string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := q.jobs[id]
	j.Error = msg
	if j.Exhausted() {
		j.Status = jobx.JobStatusFailed
		return false, nil
	}
	j.Status = jobx.JobStatusRetrying
	return true, nil
}

func (q *stubQueue) Retry(_ context.Context, id string, _ time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = append(q.retried, id)
	return nil
}

func (q *stubQueue) PromoteScheduled(context.Context, []string) error { return nil }

func (q *stubQueue) add(j *jobx.JobInfo) *jobx.JobInfo {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[j.ID] = j
	return j
}

func TestClient_EnqueueAppliesDefaults(t *testing.T) {
	q := newStubQueue()
	c := jobx.NewClient(q, jobx.WithQueues("reconcile"), jobx.WithMaxRetries(7))

	job, err := jobx.NewJob("t", "", map[string]string{"k": "v"})
	require.NoError(t, err)
	_, err = c.Enqueue(context.Background(), job)
	require.NoError(t, err)

	require.Len(t, q.enqueued, 1)
	assert.Equal(t, "reconcile", q.enqueued[0].Queue)
	assert.Equal(t, 7, q.enqueued[0].MaxRetries)
	assert.JSONEq(t, `{"k":"v"}`, string(q.enqueued[0].Payload))

	_, err = c.Enqueue(context.Background(), jobx.Job{})
	assert.True(t, errx.IsCode(err, jobx.CodeInvalidJob))
}

func TestClient_ProcessOutcomes(t *testing.T) {
	q := newStubQueue()
	c := jobx.NewClient(q)
	c.Register("ok", func(context.Context, *jobx.JobInfo) error { return nil })
	c.Register("flaky", func(context.Context, *jobx.JobInfo) error { return errors.New("try again") })
	c.Register("panics", func(context.Context, *jobx.JobInfo) error { panic("boom") })
	ctx := context.Background()

	ok := q.add(&jobx.JobInfo{ID: "1", Type: "ok", Attempts: 1, MaxRetries: 3})
	c.Process(ctx, ok)
	assert.Equal(t, jobx.JobStatusCompleted, ok.Status)

	flaky := q.add(&jobx.JobInfo{ID: "2", Type: "flaky", Attempts: 1, MaxRetries: 3})
	c.Process(ctx, flaky)
	assert.Equal(t, jobx.JobStatusRetrying, flaky.Status)
	assert.Equal(t, []string{"2"}, q.retried)

	last := q.add(&jobx.JobInfo{ID: "3", Type: "flaky", Attempts: 4, MaxRetries: 3})
	c.Process(ctx, last)
	assert.Equal(t, jobx.JobStatusFailed, last.Status)
	assert.Equal(t, []string{"2"}, q.retried)

	panicky := q.add(&jobx.JobInfo{ID: "4", Type: "panics", Attempts: 1, MaxRetries: 0})
	c.Process(ctx, panicky)
	assert.Equal(t, jobx.JobStatusFailed, panicky.Status)
	assert.Contains(t, panicky.Error, "panic")

	orphan := q.add(&jobx.JobInfo{ID: "5", Type: "unknown", Attempts: 1})
	c.Process(ctx, orphan)
	assert.Contains(t, orphan.Error, jobx.CodeNoHandler.Code)
}

func TestJobInfo_Decode(t *testing.T) {
	j := &jobx.JobInfo{ID: "1", Payload: []byte(`{"a":1}`)}
	var v struct{ A int }
	require.NoError(t, j.Decode(&v))
	assert.Equal(t, 1, v.A)

	j.Payload = []byte(`nope`)
	assert.True(t, errx.IsCode(j.Decode(&v), jobx.CodeInvalidPayload))
}
