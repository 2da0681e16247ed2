package daily

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	batches [][]string
	err     error
	calls   int
}

func (s *scriptedSource) Random(ctx context.Context, n int) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func TestPickSkipsNonArticlesAndDuplicates(t *testing.T) {
	src := &scriptedSource{batches: [][]string{{"Category:Foods", "Pizza", "Pizza", "Albert Einstein"}}}
	p := New(src)

	c, err := p.Pick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Pizza", c.Start)
	assert.Equal(t, "Albert_Einstein", c.Target)
}

func TestPickRetriesShortBatches(t *testing.T) {
	src := &scriptedSource{batches: [][]string{{"Help:Contents"}, {"Tokyo", "Jazz"}}}
	c, err := New(src).Pick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, "Tokyo", c.Start)
}

func TestPickGivesUp(t *testing.T) {
	src := &scriptedSource{err: errors.New("503")}
	_, err := New(src).Pick(context.Background())
	assert.ErrorIs(t, err, ErrNoPair)
	assert.Equal(t, maxAttempts, src.calls)
}

func TestCurrentIsStableWithinADay(t *testing.T) {
	src := &scriptedSource{batches: [][]string{{"Tokyo", "Jazz"}, {"Moon", "Cheese"}}}
	p := New(src)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p.clock = func() time.Time { return now }

	first, err := p.Current(context.Background())
	require.NoError(t, err)
	again, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, "2026-03-01", first.Date)

	now = now.Add(24 * time.Hour)
	next, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Moon", next.Start)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	p := New(&scriptedSource{})
	assert.Error(t, p.Start("not a schedule"))

	require.NoError(t, p.Start("@daily"))
	p.Stop()
}
