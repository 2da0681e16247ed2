package observe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/wikirace/internal/browser"
)

type staticViewer struct {
	page browser.Page
	err  error
}

func (v staticViewer) Current(ctx context.Context) (browser.Page, error) { return v.page, v.err }

func TestRegistryObserve(t *testing.T) {
	r := NewRegistry()
	id := r.Register(staticViewer{page: browser.Page{URL: "https://en.wikipedia.org/wiki/Pizza", Title: "Pizza"}})
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())

	page, err := r.Observe(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Pizza", page.Title)

	r.Unregister(id)
	_, err = r.Observe(context.Background(), id)
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.Zero(t, r.Len())
}

func TestRegistryPassesDriverError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("target closed")
	id := r.Register(staticViewer{err: boom})

	_, err := r.Observe(context.Background(), id)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryIDsAreUnique(t *testing.T) {
	r := NewRegistry()
	a := r.Register(staticViewer{})
	b := r.Register(staticViewer{})
	assert.NotEqual(t, a, b)
}
