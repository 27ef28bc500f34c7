package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) AdvanceDays(n int) { c.t = c.t.Add(time.Duration(n) * day) }

type recordingJournal struct {
	events []Event
	err    error
}

func (j *recordingJournal) Record(e Event) error {
	if j.err != nil {
		return j.err
	}
	j.events = append(j.events, e)
	return nil
}

func (j *recordingJournal) kinds() []EventKind {
	out := make([]EventKind, len(j.events))
	for i, e := range j.events {
		out[i] = e.Kind
	}
	return out
}

func newService(t *testing.T, clock *fakeClock, opts ...Option) *LendingService {
	t.Helper()
	svc, err := NewLendingService(DefaultConfig(), append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return svc
}
