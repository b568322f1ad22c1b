package rosz

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros-sub001/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestContextDefaults(t *testing.T) {
	t.Setenv(EnvDomainID, "")
	t.Setenv(EnvSessionConfig, "")
	ctx := newTestContext(t, transport.NewMemoryBus())

	assert.Equal(t, uint32(0), ctx.DomainID())
	assert.Len(t, ctx.SessionID(), 32)
	assert.Empty(t, ctx.Enclave())
	assert.NotNil(t, ctx.Logger())
}

func TestContextConfigFile(t *testing.T) {
	t.Setenv(EnvDomainID, "")
	params := writeFile(t, "params.yaml", "talker:\n  ros__parameters:\n    rate: 20\n")
	path := writeFile(t, "rosz.yaml", `
domain_id: 3
enclave: /secure
connect_timeout: 2s
remap: ["chatter:=/from_file", "other:=/other_file"]
params_files: [`+params+`]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)

	ctx := newTestContext(t, transport.NewMemoryBus(), func(b *ContextBuilder) {
		b.WithConfigFile(path).WithRemapRule("chatter:=/from_builder")
	})
	assert.Equal(t, uint32(3), ctx.DomainID())
	assert.Equal(t, "/secure", ctx.Enclave())

	node := newTestNode(t, ctx, "talker")
	fq, err := node.ResolveName("chatter")
	require.NoError(t, err)
	assert.Equal(t, "/from_builder", fq, "builder rules win over the file")
	fq, err = node.ResolveName("other")
	require.NoError(t, err)
	assert.Equal(t, "/other_file", fq)

	ps, err := node.CreateParameterServer()
	require.NoError(t, err)
	v, ok := ps.Get("rate")
	require.True(t, ok)
	assert.Equal(t, int64(20), v.IntegerValue)
}

func TestContextEnvironment(t *testing.T) {
	path := writeFile(t, "rosz.yaml", "domain_id: 3\nenclave: /env_file\n")
	t.Setenv(EnvSessionConfig, path)
	t.Setenv(EnvDomainID, "7")

	ctx := newTestContext(t, transport.NewMemoryBus())
	assert.Equal(t, uint32(7), ctx.DomainID(), "ROS_DOMAIN_ID wins over the file")
	assert.Equal(t, "/env_file", ctx.Enclave())

	builder := newTestContext(t, transport.NewMemoryBus(), func(b *ContextBuilder) { b.WithDomainID(9) })
	assert.Equal(t, uint32(9), builder.DomainID())
}

func TestContextArgs(t *testing.T) {
	t.Setenv(EnvDomainID, "")
	t.Setenv(EnvSessionConfig, "")
	ctx := newTestContext(t, transport.NewMemoryBus(), func(b *ContextBuilder) {
		b.WithArgs([]string{"--ros-args", "-r", "chatter:=/talk", "-r", "__ns:=/robot", "-e", "/args"})
	})
	assert.Equal(t, "/args", ctx.Enclave())

	node := newTestNode(t, ctx, "talker")
	assert.Equal(t, "/robot", node.Namespace())
	assert.Equal(t, "/robot/talker", node.FullyQualifiedName())
	fq, err := node.ResolveName("chatter")
	require.NoError(t, err)
	assert.Equal(t, "/talk", fq)

	override := newTestContext(t, transport.NewMemoryBus(), func(b *ContextBuilder) {
		b.WithArgs([]string{"--ros-args", "-e", "/args"}).WithEnclave("/builder")
	})
	assert.Equal(t, "/builder", override.Enclave())
}

func TestContextBuildErrors(t *testing.T) {
	t.Setenv(EnvSessionConfig, "")
	tests := []struct {
		name  string
		env   string
		build func(*ContextBuilder)
	}{
		{name: "bad domain env", env: "seven"},
		{name: "missing config file", build: func(b *ContextBuilder) { b.WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")) }},
		{name: "unknown mode", build: func(b *ContextBuilder) { b.WithMode("carrier-pigeon") }},
		{name: "bad remap", build: func(b *ContextBuilder) { b.WithRemapRule("no-separator") }},
		{name: "bad log level", build: func(b *ContextBuilder) { b.WithLogLevel("LOUD") }},
		{name: "bad args", build: func(b *ContextBuilder) { b.WithArgs([]string{"--ros-args", "--bogus"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDomainID, tt.env)
			b := NewContext().WithMemoryBus(transport.NewMemoryBus())
			if tt.build != nil {
				tt.build(b)
			}
			_, err := b.Build()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestContextCloseClosesNodes(t *testing.T) {
	bus := transport.NewMemoryBus()
	ctx, err := NewContext().WithMemoryBus(bus).Build()
	require.NoError(t, err)
	_, err = ctx.CreateNode("short_lived").Build()
	require.NoError(t, err)

	observer := newTestContext(t, bus)
	ok, err := observer.NodeExists("short_lived", "/")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Close())
	ok, err = observer.NodeExists("short_lived", "/")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ctx.CreateNode("late").Build()
	assert.ErrorIs(t, err, ErrContextClosed)
}

func TestContextKeepsCallerSession(t *testing.T) {
	session := transport.NewMemoryBus().Session()
	t.Cleanup(func() { _ = session.Close() })

	ctx, err := NewContext().WithTransport(session).Build()
	require.NoError(t, err)
	assert.Equal(t, session.ID(), ctx.SessionID())
	require.NoError(t, ctx.Close())

	token, err := session.DeclareToken("@ros2_lv/0/watcher")
	require.NoError(t, err, "session stays open after the context closes")
	require.NoError(t, token.Close())
}

func TestNodeIDsPerContext(t *testing.T) {
	ctx := newTestContext(t, transport.NewMemoryBus())
	a := newTestNode(t, ctx, "a")
	b := newTestNode(t, ctx, "b")
	assert.Equal(t, uint32(0), a.ID())
	assert.Equal(t, uint32(1), b.ID())

	_, err := ctx.CreateNode("bad name").Build()
	assert.ErrorIs(t, err, ErrInvalidName)
}
