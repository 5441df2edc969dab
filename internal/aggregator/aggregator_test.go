package aggregator

import (
	"testing"

	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/samteezy/mcproxy/internal/upstream"
	"github.com/stretchr/testify/assert"
)

func TestNamespacedName(t *testing.T) {
	assert.Equal(t, "fs__read_file", NamespacedName("fs", "read_file"))
}

func TestNamespacedURI(t *testing.T) {
	assert.Equal(t, "fs://file.txt", NamespacedURI("fs", "file.txt"))
}

func TestNew_EmptyCatalogBeforeFirstRefresh(t *testing.T) {
	m := upstream.NewManager(map[string]*resolver.UpstreamSpec{})
	a := New(m)
	assert.Empty(t, a.Tools())
	assert.Empty(t, a.Resources())
	assert.Empty(t, a.Prompts())

	_, ok := a.FindTool("fs__read")
	assert.False(t, ok)
}

func TestRefresh_SkipsDisconnectedSessions(t *testing.T) {
	specs := map[string]*resolver.UpstreamSpec{
		"fs": {ID: "fs", Enabled: true, Transport: resolver.TransportStdio, Command: "echo"},
	}
	m := upstream.NewManager(specs)
	a := New(m)

	// no sessions are ever connected in this unit test (no real subprocess);
	// Refresh must leave the catalog empty rather than erroring.
	a.Refresh(nil) //nolint:staticcheck
	assert.Empty(t, a.Tools())
}

func TestUpstreamCounts_EmptyWhenNoCatalog(t *testing.T) {
	m := upstream.NewManager(map[string]*resolver.UpstreamSpec{})
	a := New(m)
	assert.Empty(t, a.UpstreamCounts())
}
