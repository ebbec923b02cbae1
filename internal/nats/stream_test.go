package nats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

func TestEventSubject(t *testing.T) {
	assert.Equal(t, "events.c1.user", EventSubject("c1", "user"))
	assert.Equal(t, "events.conv_1.assistant", EventSubject("conv.1", "assistant"))
	assert.Equal(t, "events.a_b_.user", EventSubject("a b*", "user"))
	assert.Equal(t, "events._.user", EventSubject("", "user"))
}

func TestOptionsRequiresURL(t *testing.T) {
	_, err := options(Config{}, logger.NewNop(), make(chan struct{}))
	require.Error(t, err)
}

func TestOptionsTLS(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing ca file", Config{URL: "nats://localhost:4222", CAFile: filepath.Join(dir, "missing.pem")}, "read CA file"},
		{"unparseable ca", Config{URL: "nats://localhost:4222", CAFile: bad}, "parse CA certificate"},
		{"cert without key", Config{URL: "nats://localhost:4222", CertFile: "client.pem"}, "must be set together"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := options(tt.cfg, logger.NewNop(), make(chan struct{}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOptionsPlain(t *testing.T) {
	opts, err := options(Config{URL: "nats://localhost:4222", Token: "secret"}, logger.NewNop(), make(chan struct{}))
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}
