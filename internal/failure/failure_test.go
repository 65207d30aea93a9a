package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("iteration 3: %w", New(Retrieval, "index search", errors.New("boom")))

	k, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, Retrieval, k)
	assert.True(t, Is(err, Retrieval))
	assert.False(t, Is(err, ModelError))
	assert.Contains(t, err.Error(), "retrieval: index search: boom")
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"model unavailable", New(ModelUnavailable, "generate", errors.New("429")), true},
		{"model error", New(ModelError, "generate", errors.New("400")), false},
		{"config", Configf("mode", "invalid mode %q", "7"), false},
		{"retrieval over unavailable grpc", New(Retrieval, "search", fmt.Errorf("search rpc: %w", status.Error(codes.Unavailable, "down"))), true},
		{"retrieval over invalid grpc", New(Retrieval, "search", status.Error(codes.InvalidArgument, "bad")), false},
		{"retrieval deadline", New(Retrieval, "embed", context.DeadlineExceeded), true},
		{"plain", errors.New("plain"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsTransient(c.err))
		})
	}
}

func TestTransientHTTP(t *testing.T) {
	assert.True(t, TransientHTTP(429))
	assert.True(t, TransientHTTP(503))
	assert.False(t, TransientHTTP(400))
	assert.False(t, TransientHTTP(401))
}
