package qdrant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/rag-agent/internal/config"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		host   string
		port   int
		useTLS bool
	}{
		{"rest port maps to grpc", "http://localhost:6333", "localhost", 6334, false},
		{"grpc port kept", "http://qdrant:6334", "qdrant", 6334, false},
		{"no port", "https://xyz.cloud.qdrant.io", "xyz.cloud.qdrant.io", 6334, true},
		{"custom port", "http://10.0.0.5:7000", "10.0.0.5", 7000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.useTLS, useTLS)
		})
	}
}

func TestParseURL_Invalid(t *testing.T) {
	for _, raw := range []string{"", "localhost", "http://host:abc"} {
		_, _, _, err := parseURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewBackend_RequiresDimensions(t *testing.T) {
	_, err := NewBackend(config.QdrantConfig{URL: "http://localhost:6333", Collection: "c"}, 0)
	assert.ErrorContains(t, err, "dimensions")
}
