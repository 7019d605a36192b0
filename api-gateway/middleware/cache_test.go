package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheSkipsPaymentState(t *testing.T) {
	cfg := DefaultCacheConfig()

	assert.True(t, isPathSkipped("/api/payments/123", cfg.SkipPaths))
	assert.True(t, isPathSkipped("/api/webhooks/gateway", cfg.SkipPaths))
	assert.False(t, isPathSkipped("/api/iban/validate", cfg.SkipPaths))
	assert.False(t, isPathSkipped("/health", cfg.SkipPaths))
}
