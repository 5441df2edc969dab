package supervisor

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/samteezy/mcproxy/internal/logsink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mcproxy.config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const noUpstreamsConfig = `{
	"version": 1,
	"downstream": {"transport": "stdio"},
	"upstreams": {},
	"defaults": {},
	"compression": {"baseUrl": "http://example.invalid", "model": "gpt-4o-mini"},
	"masking": {"enabled": false}
}`

func TestSupervisor_StartWithNoUpstreams_Succeeds(t *testing.T) {
	path := writeTestConfig(t, noUpstreamsConfig)
	s := New(path, logsink.New())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.NotNil(t, s.Handler())
}

func TestSupervisor_Reload_SwapsGraphWithoutError(t *testing.T) {
	path := writeTestConfig(t, noUpstreamsConfig)
	s := New(path, logsink.New())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	before := s.current.Load()
	require.NoError(t, s.Reload(context.Background()))
	after := s.current.Load()

	assert.NotSame(t, before, after)
}

func TestSupervisor_Reload_InvalidConfigOnDisk_LeavesOldGraphLive(t *testing.T) {
	path := writeTestConfig(t, noUpstreamsConfig)
	s := New(path, logsink.New())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	before := s.current.Load()
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "downstream": {"transport": "carrier-pigeon"}}`), 0o644))

	err := s.Reload(context.Background())
	assert.Error(t, err)
	assert.Same(t, before, s.current.Load())
}

func TestSupervisor_AdminMux_HealthEndpointServesAfterStart(t *testing.T) {
	path := writeTestConfig(t, noUpstreamsConfig)
	s := New(path, logsink.New())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.AdminMux().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
