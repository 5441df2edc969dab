package upstream

import (
	"testing"

	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/stretchr/testify/assert"
)

func TestNewManager_SkipsDisabledUpstreams(t *testing.T) {
	specs := map[string]*resolver.UpstreamSpec{
		"on":  {ID: "on", Enabled: true, Transport: resolver.TransportStdio, Command: "echo"},
		"off": {ID: "off", Enabled: false, Transport: resolver.TransportStdio, Command: "echo"},
	}
	m := NewManager(specs)

	_, ok := m.Get("on")
	assert.True(t, ok)
	_, ok = m.Get("off")
	assert.False(t, ok)
	assert.Len(t, m.IDs(), 1)
}

func TestSession_InitialState(t *testing.T) {
	s := New(&resolver.UpstreamSpec{ID: "fs", Transport: resolver.TransportStdio, Command: "echo"})
	assert.Equal(t, StateInitial, s.State())
	assert.Nil(t, s.LastError())
}

func TestSession_ConnectUnknownTransport_IsTerminal(t *testing.T) {
	s := New(&resolver.UpstreamSpec{ID: "fs", Transport: "carrier-pigeon"})
	err := s.Connect(nil) //nolint:staticcheck // buildClient fails before ctx is used
	assert := assert.New(t)
	assert.Error(err)
	assert.Equal(StateTerminal, s.State())
}

func TestSession_ConnectStdioMissingCommand_IsTerminal(t *testing.T) {
	s := New(&resolver.UpstreamSpec{ID: "fs", Transport: resolver.TransportStdio})
	err := s.Connect(nil) //nolint:staticcheck
	assert := assert.New(t)
	assert.Error(err)
	assert.Equal(StateTerminal, s.State())
}

func TestSession_CallToolBeforeConnect_ErrNotConnected(t *testing.T) {
	s := New(&resolver.UpstreamSpec{ID: "fs", Transport: resolver.TransportStdio, Command: "echo"})
	_, err := s.CallTool(nil, "read", nil) //nolint:staticcheck
	assert.ErrorIs(t, err, ErrNotConnected)
}
