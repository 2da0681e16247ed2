package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup(Options{Level: "loud"}))
}

func TestFileOutputCarriesContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wikirace.log")
	require.NoError(t, Setup(Options{Level: "debug", FilePath: path, MaxSizeMB: 1}))
	t.Cleanup(func() { _ = Setup(Options{Level: "info"}) })

	ctx := WithFields(context.Background(), "race", "r-1")
	ctx = WithFields(ctx, "side", "agent")
	WithContext(ctx).Infof("[Navigator] step %d", 3)
	Debugf("[Game] plain %s", "line")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"[Navigator] step 3"`)
	assert.Contains(t, out, `"race":"r-1"`)
	assert.Contains(t, out, `"side":"agent"`)
	assert.Contains(t, out, "[Game] plain line")
}

func TestDisableSilencesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiet.log")
	require.NoError(t, Setup(Options{FilePath: path}))
	t.Cleanup(func() {
		Enable()
		_ = Setup(Options{Level: "info"})
	})

	Disable()
	Info("hidden")
	WithContext(context.Background()).Warnf("hidden %s", "too")
	Enable()
	Info("visible")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "visible")
}
