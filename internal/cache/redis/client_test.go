package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseKey(t *testing.T) {
	a := ResponseKey("Luật  Lao động")
	b := ResponseKey("  luật lao ĐỘNG ")
	c := ResponseKey("luật thuế")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, responsePrefix))
}

func TestUnreachableServerIsAnError(t *testing.T) {
	rc := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := New(rc, time.Minute)
	defer c.Close()

	ctx := context.Background()

	var dst map[string]any
	hit, err := c.GetResponse(ctx, "luật lao động", &dst)
	require.Error(t, err)
	assert.False(t, hit)

	assert.Error(t, c.SetResponse(ctx, "luật lao động", map[string]string{"content": "x"}))
	assert.Error(t, c.SetResponse(ctx, "x", func() {}))
}
