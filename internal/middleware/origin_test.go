package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed("", nil))
	assert.True(t, OriginAllowed("http://localhost:5173", nil))
	assert.True(t, OriginAllowed("http://127.0.0.1", nil))
	assert.False(t, OriginAllowed("http://localhost.evil.com", nil))
	assert.False(t, OriginAllowed("https://example.com", nil))
	assert.True(t, OriginAllowed("https://example.com", []string{"https://example.com"}))
	assert.True(t, OriginAllowed("https://anything.dev", []string{"*"}))
}
