package dns

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCacheEntry(t *testing.T) {
	t.Parallel()

	logger := log.New(io.Discard)

	// test expire
	dns := NewCachedDNSResolver("8.8.8.8:53", 1*time.Second, 10*time.Second, 1*time.Millisecond, logger)
	dns.updateCache("1.1.1.1", []string{"asdf.com", "ghjkl.com"})
	time.Sleep(5 * time.Millisecond)
	res, ok := dns.getCacheEntry("1.1.1.1")
	assert.False(t, ok, "cache not expired: %v", res)

	dns = NewCachedDNSResolver("8.8.8.8:53", 1*time.Second, 10*time.Second, 1*time.Hour, logger)
	dns.updateCache("1.1.1.1", []string{"asdf.com", "ghjkl.com"})
	res, ok = dns.getCacheEntry("1.1.1.1")
	require.True(t, ok, "cache expired and should not be")
	assert.Equal(t, []string{"asdf.com", "ghjkl.com"}, res)
}

func TestFailedLookupIsCached(t *testing.T) {
	t.Parallel()

	dns := NewCachedDNSResolver("", time.Second, time.Second, time.Hour, log.New(io.Discard))
	dns.updateCache("192.0.2.1", []string{})

	res, err := dns.CachedDNSLookup(t.Context(), "192.0.2.1")
	require.NoError(t, err)
	assert.Empty(t, res)
}
