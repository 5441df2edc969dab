// Package upstream manages the lifecycle of connections to upstream MCP
// servers: spawning stdio subprocesses or dialing HTTP/SSE endpoints,
// tracking connection state, and exposing the thin list/call operations the
// aggregator needs.
package upstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/resolver"
)

// State is a position in the upstream session's lifecycle.
type State string

const (
	StateInitial      State = "initial"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateTerminal     State = "terminal"
)

// ErrNotConnected is returned by call operations issued while the session
// is not in StateConnected.
var ErrNotConnected = fmt.Errorf("upstream: session not connected")

// Session owns one upstream MCP server connection and its current state.
type Session struct {
	mu    sync.RWMutex
	spec  *resolver.UpstreamSpec
	state State
	cli   *client.Client
	err   error
}

// New constructs a Session in StateInitial. It does not connect.
func New(spec *resolver.UpstreamSpec) *Session {
	return &Session{spec: spec, state: StateInitial}
}

// ID returns the upstream's configured id.
func (s *Session) ID() string {
	return s.spec.ID
}

// State reports the session's current lifecycle position.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the error that caused the most recent Disconnected or
// Terminal transition, if any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Session) setState(st State, err error) {
	s.mu.Lock()
	s.state = st
	s.err = err
	s.mu.Unlock()
}

// Connect builds the transport for the upstream's declared kind and
// performs the MCP initialize handshake. An unsupported transport or a
// stdio upstream missing its command is a fatal configuration error, per
// spec.md §4.E — both leave the session in StateTerminal rather than
// retrying forever.
func (s *Session) Connect(ctx context.Context) error {
	if s.State() == StateConnected {
		log.Warn().Str("upstream", s.spec.ID).Msg("connect called on already-connected session, ignoring")
		return nil
	}
	s.setState(StateConnecting, nil)

	cli, err := s.buildClient()
	if err != nil {
		s.setState(StateTerminal, err)
		return err
	}

	if err := cli.Start(ctx); err != nil {
		s.setState(StateDisconnected, err)
		return err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "mcproxy", Version: "dev"}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		s.setState(StateDisconnected, err)
		return err
	}

	s.mu.Lock()
	s.cli = cli
	s.mu.Unlock()
	s.setState(StateConnected, nil)
	log.Info().Str("upstream", s.spec.ID).Str("transport", string(s.spec.Transport)).Msg("upstream connected")
	return nil
}

func (s *Session) buildClient() (*client.Client, error) {
	switch s.spec.Transport {
	case resolver.TransportStdio:
		if s.spec.Command == "" {
			return nil, fmt.Errorf("upstream %q: stdio transport requires a command", s.spec.ID)
		}
		env := make([]string, 0, len(s.spec.Env))
		for k, v := range s.spec.Env {
			env = append(env, k+"="+v)
		}
		return client.NewStdioMCPClient(s.spec.Command, env, s.spec.Args...)
	case resolver.TransportStreamableHTTP:
		if s.spec.URL == "" {
			return nil, fmt.Errorf("upstream %q: streamable-http transport requires a url", s.spec.ID)
		}
		return client.NewStreamableHttpClient(s.spec.URL)
	case resolver.TransportSSE:
		if s.spec.URL == "" {
			return nil, fmt.Errorf("upstream %q: sse transport requires a url", s.spec.ID)
		}
		return client.NewSSEMCPClient(s.spec.URL)
	default:
		return nil, fmt.Errorf("upstream %q: unknown transport %q", s.spec.ID, s.spec.Transport)
	}
}

// Disconnect tears down the transport and moves the session back to
// StateDisconnected so a later Connect can retry.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cli := s.cli
	s.cli = nil
	s.mu.Unlock()
	if cli != nil {
		_ = cli.Close()
	}
	s.setState(StateDisconnected, nil)
}

func (s *Session) client() (*client.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateConnected || s.cli == nil {
		return nil, ErrNotConnected
	}
	return s.cli, nil
}

// ListTools returns the upstream's tool catalog.
func (s *Session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	cli, err := s.client()
	if err != nil {
		return nil, err
	}
	res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Tools, nil
}

// ListResources returns the upstream's resource catalog.
func (s *Session) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	cli, err := s.client()
	if err != nil {
		return nil, err
	}
	res, err := cli.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, err
	}
	return res.Resources, nil
}

// ListPrompts returns the upstream's prompt catalog.
func (s *Session) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	cli, err := s.client()
	if err != nil {
		return nil, err
	}
	res, err := cli.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Prompts, nil
}

// CallTool invokes originalName (already stripped of its namespace prefix)
// on this upstream and returns the result as mcp-go decodes it. A legacy
// response carrying toolResult instead of content is not converted into
// content entries.
func (s *Session) CallTool(ctx context.Context, originalName string, args map[string]any) (*mcp.CallToolResult, error) {
	cli, err := s.client()
	if err != nil {
		return nil, err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = originalName
	req.Params.Arguments = args
	res, err := cli.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ReadResource reads originalURI from this upstream.
func (s *Session) ReadResource(ctx context.Context, originalURI string) (*mcp.ReadResourceResult, error) {
	cli, err := s.client()
	if err != nil {
		return nil, err
	}
	req := mcp.ReadResourceRequest{}
	req.Params.URI = originalURI
	return cli.ReadResource(ctx, req)
}

// GetPrompt fetches originalName from this upstream.
func (s *Session) GetPrompt(ctx context.Context, originalName string, args map[string]string) (*mcp.GetPromptResult, error) {
	cli, err := s.client()
	if err != nil {
		return nil, err
	}
	req := mcp.GetPromptRequest{}
	req.Params.Name = originalName
	req.Params.Arguments = args
	return cli.GetPrompt(ctx, req)
}
