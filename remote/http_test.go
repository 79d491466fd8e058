package remote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPClientSeparatesFeedTimeouts(t *testing.T) {
	h := NewHTTPClient("http://store.internal", 5*time.Second)

	assert.Equal(t, 5*time.Second, h.client.ReadTimeout)
	assert.Equal(t, 5*time.Second, h.client.WriteTimeout)

	// a quiet long poll holds the connection for the whole window; the
	// feed client must not cut it with the regular read deadline
	assert.Zero(t, h.feed.ReadTimeout)
	assert.Greater(t, longPollWindow, h.timeout)
}
