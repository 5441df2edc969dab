// Package router dispatches a namespaced tool call through virtual-field
// extraction, masking, parameter-override injection, and on to the
// upstream session, per spec.md §4.J.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/aggregator"
	"github.com/samteezy/mcproxy/internal/llmclient"
	"github.com/samteezy/mcproxy/internal/masker"
	"github.com/samteezy/mcproxy/internal/pii"
	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/samteezy/mcproxy/internal/schema"
	"github.com/samteezy/mcproxy/internal/upstream"
)

// Router holds the collaborators needed to turn one downstream tool call
// into an upstream call plus the masking restoration map the response
// pipeline needs afterward.
type Router struct {
	aggregator *aggregator.Aggregator
	manager    *upstream.Manager
	resolver   *resolver.Resolver
	masker     *masker.Masker
	idempotent *IdempotentSet
	llmClient  *llmclient.Client // optional: nil disables the masking LLM fallback pass
	llmModel   string

	mu       sync.Mutex
	inFlight map[string]*call
}

type call struct {
	done   chan struct{}
	result *mcp.CallToolResult
	err    error
}

// New builds a Router over its collaborators. llmClient may be nil, which
// disables the masking LLM fallback pass regardless of per-tool policy.
func New(agg *aggregator.Aggregator, manager *upstream.Manager, res *resolver.Resolver, msk *masker.Masker, idempotent *IdempotentSet, llmClient *llmclient.Client, llmModel string) *Router {
	return &Router{
		aggregator: agg,
		manager:    manager,
		resolver:   res,
		masker:     msk,
		idempotent: idempotent,
		llmClient:  llmClient,
		llmModel:   llmModel,
		inFlight:   make(map[string]*call),
	}
}

// ErrUnknownTool is returned when the namespaced tool name does not match
// any tool currently in the aggregator's catalog.
var ErrUnknownTool = fmt.Errorf("router: unknown tool")

// CallResult bundles the upstream's raw result with the data the response
// pipeline needs to finish processing it.
type CallResult struct {
	Raw         *mcp.CallToolResult
	Restore     *masker.Map
	Goal        string
	Bypass      bool
	Policy      resolver.Resolved
	CacheKeyArgs map[string]any
}

// Dispatch extracts virtual fields, masks arguments, injects parameter
// overrides, and calls the upstream for namespacedName. Identical
// concurrent calls to an idempotent tool are single-flighted: only the
// first caller reaches the upstream, and every caller sharing its cache
// key receives the same result.
func (r *Router) Dispatch(ctx context.Context, namespacedName string, args map[string]any, singleFlightKey string) (CallResult, error) {
	entry, ok := r.aggregator.FindTool(namespacedName)
	if !ok {
		return CallResult{}, ErrUnknownTool
	}

	policy := r.resolver.Resolve(namespacedName)
	goalName, bypassName := schema.VirtualFieldNames(r.resolver.GoalPrefix())

	goal, cleanedArgs := extractVirtualField[string](args, goalName)
	bypass, cleanedArgs := extractVirtualField[bool](cleanedArgs, bypassName)

	maskedArgs := cleanedArgs
	var restoreMap *masker.Map
	if policy.Masking.Enabled {
		maskedArgs, restoreMap = r.masker.MaskArgs(cleanedArgs, policy.Masking.EnabledKinds, policy.Masking.CustomPatterns)
		if policy.Masking.LLMFallback && r.llmClient != nil {
			maskedArgs = r.applyLLMFallback(ctx, maskedArgs, policy.Masking.LLMFallbackThreshold)
		}
	}

	for k, v := range r.resolver.ParameterOverrides(namespacedName) {
		maskedArgs[k] = v
	}

	if r.idempotent.IsIdempotent(entry.OriginalName) && singleFlightKey != "" {
		return r.dispatchSingleFlight(ctx, singleFlightKey, entry, maskedArgs, restoreMap, goal, bypass, policy, cleanedArgs)
	}

	raw, err := r.callUpstream(ctx, entry, maskedArgs)
	if err != nil {
		return CallResult{}, err
	}
	return CallResult{Raw: raw, Restore: restoreMap, Goal: goal, Bypass: bypass, Policy: policy, CacheKeyArgs: cleanedArgs}, nil
}

func (r *Router) dispatchSingleFlight(ctx context.Context, key string, entry aggregator.Entry[mcp.Tool], maskedArgs map[string]any, restoreMap *masker.Map, goal string, bypass bool, policy resolver.Resolved, cacheArgs map[string]any) (CallResult, error) {
	r.mu.Lock()
	if existing, ok := r.inFlight[key]; ok {
		r.mu.Unlock()
		<-existing.done
		return CallResult{Raw: existing.result, Restore: restoreMap, Goal: goal, Bypass: bypass, Policy: policy, CacheKeyArgs: cacheArgs}, existing.err
	}
	c := &call{done: make(chan struct{})}
	r.inFlight[key] = c
	r.mu.Unlock()

	c.result, c.err = r.callUpstream(ctx, entry, maskedArgs)

	r.mu.Lock()
	delete(r.inFlight, key)
	r.mu.Unlock()
	close(c.done)

	return CallResult{Raw: c.result, Restore: restoreMap, Goal: goal, Bypass: bypass, Policy: policy, CacheKeyArgs: cacheArgs}, c.err
}

// applyLLMFallback runs the masking LLM fallback pass over the already
// regex-masked argument tree. A failure here is absorbed: the
// regex-masked args are returned unchanged rather than failing the call,
// per spec.md §7's MaskingLLMFailed handling.
func (r *Router) applyLLMFallback(ctx context.Context, args map[string]any, threshold pii.Tier) map[string]any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	masked, err := r.masker.LLMFallback(ctx, r.llmClient, r.llmModel, string(raw), threshold)
	if err != nil {
		log.Warn().Err(err).Msg("masking llm fallback failed, using regex-only result")
		return args
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(masked), &out); err != nil {
		return args
	}
	return out
}

func (r *Router) callUpstream(ctx context.Context, entry aggregator.Entry[mcp.Tool], args map[string]any) (*mcp.CallToolResult, error) {
	sess, ok := r.manager.Get(entry.UpstreamID)
	if !ok {
		return nil, fmt.Errorf("router: upstream %q not found: %w", entry.UpstreamID, upstream.ErrNotConnected)
	}
	return sess.CallTool(ctx, entry.OriginalName, args)
}

// extractVirtualField removes a virtual field by name from args (if
// present, coercing to T) and returns both its value and the remaining
// argument map. Missing or wrong-typed fields yield the zero value and
// leave args otherwise untouched.
func extractVirtualField[T any](args map[string]any, name string) (T, map[string]any) {
	var zero T
	if args == nil {
		return zero, map[string]any{}
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	raw, ok := out[name]
	if !ok {
		return zero, out
	}
	delete(out, name)
	val, ok := raw.(T)
	if !ok {
		return zero, out
	}
	return val, out
}
