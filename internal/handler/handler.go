// Package handler implements the downstream-facing MCP method handlers and
// the admin HTTP surface, per spec.md §4.K.
package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/aggregator"
	"github.com/samteezy/mcproxy/internal/cache"
	"github.com/samteezy/mcproxy/internal/compressor"
	"github.com/samteezy/mcproxy/internal/masker"
	"github.com/samteezy/mcproxy/internal/resolver"
	"github.com/samteezy/mcproxy/internal/router"
	"github.com/samteezy/mcproxy/internal/schema"
	"github.com/samteezy/mcproxy/internal/upstream"
)

// Handler answers the downstream client's MCP requests by delegating to
// the aggregator for catalog operations and to the router/compressor for
// tools/call.
type Handler struct {
	aggregator *aggregator.Aggregator
	manager    *upstream.Manager
	resolver   *resolver.Resolver
	router     *router.Router
	compressor *compressor.Compressor
	toolCache  *cache.Cache
	resCache   *cache.Cache
	goalPrefix string
}

// New builds a Handler over its collaborators.
func New(agg *aggregator.Aggregator, manager *upstream.Manager, res *resolver.Resolver, rt *router.Router, comp *compressor.Compressor, toolCache, resCache *cache.Cache, goalPrefix string) *Handler {
	return &Handler{
		aggregator: agg,
		manager:    manager,
		resolver:   res,
		router:     rt,
		compressor: comp,
		toolCache:  toolCache,
		resCache:   resCache,
		goalPrefix: goalPrefix,
	}
}

// ListTools returns every visible tool's namespaced, transformed
// definition. Tools whose resolved policy marks them Hidden are omitted.
func (h *Handler) ListTools(ctx context.Context) []mcp.Tool {
	entries := h.aggregator.Tools()
	out := make([]mcp.Tool, 0, len(entries))
	for _, e := range entries {
		name := aggregator.NamespacedName(e.UpstreamID, e.OriginalName)
		policy := h.resolver.Resolve(name)
		if policy.Hidden {
			continue
		}

		tool := e.Item
		tool.Name = name
		desc, _ := h.resolver.DescriptionOverride(name)
		tool.Description = schema.DescriptionFor(e.Item.Description, desc, policy, h.goalPrefix)

		rawSchema := toRawSchema(e.Item)
		transformed := schema.Transform(rawSchema, policy, desc, h.resolver.HiddenParameters(name), h.goalPrefix)
		applyRawSchema(&tool, transformed)

		out = append(out, tool)
	}
	return out
}

// ListResources returns every resource, namespaced.
func (h *Handler) ListResources(ctx context.Context) []mcp.Resource {
	entries := h.aggregator.Resources()
	out := make([]mcp.Resource, 0, len(entries))
	for _, e := range entries {
		r := e.Item
		r.URI = aggregator.NamespacedURI(e.UpstreamID, e.OriginalName)
		out = append(out, r)
	}
	return out
}

// ListPrompts returns every prompt, namespaced.
func (h *Handler) ListPrompts(ctx context.Context) []mcp.Prompt {
	entries := h.aggregator.Prompts()
	out := make([]mcp.Prompt, 0, len(entries))
	for _, e := range entries {
		p := e.Item
		p.Name = aggregator.NamespacedName(e.UpstreamID, e.OriginalName)
		out = append(out, p)
	}
	return out
}

// CallTool runs the full tools/call pipeline: cache lookup, router
// dispatch (masking + upstream call), bypass shortcut, compression, cache
// store, then PII restoration over the final text, per spec.md §4.K.
func (h *Handler) CallTool(ctx context.Context, namespacedName string, args map[string]any) (*mcp.CallToolResult, error) {
	policy := h.resolver.Resolve(namespacedName)

	goal, _ := extractGoalForCacheKey(args, h.goalPrefix)
	cacheKey := cache.ToolKey(namespacedName, args, goal)
	bypass, _ := extractBypassForCacheKey(args, h.goalPrefix)

	if !bypass && policy.Cache.Enabled {
		if cached, ok := h.toolCache.Get(cacheKey); ok {
			if result, ok := cached.(*mcp.CallToolResult); ok {
				log.Debug().Str("tool", namespacedName).Msg("tool cache hit")
				h.compressor.Metrics().RecordCacheHit()
				return result, nil
			}
		}
		h.compressor.Metrics().RecordCacheMiss()
	}

	callResult, err := h.router.Dispatch(ctx, namespacedName, args, cacheKey)
	if err != nil {
		if policy.Cache.Enabled && policy.Cache.CacheErrors {
			// errors are not cached here; CacheErrors controls whether a
			// future retry short-circuits on a cached failure shape,
			// which callers can layer on top via the returned error.
			_ = err
		}
		return nil, fmt.Errorf("handler: tool call failed: %w", err)
	}

	result := callResult.Raw
	if !callResult.Bypass && policy.Compression.Enabled {
		result = h.compress(ctx, namespacedName, cacheKey, callResult, policy)
	}

	if callResult.Restore != nil {
		restoreContentText(result, callResult.Restore)
	}

	if !callResult.Bypass && policy.Cache.Enabled && !(result.IsError && !policy.Cache.CacheErrors) {
		h.toolCache.Set(cacheKey, result, policy.Cache.TTLSeconds)
	}

	return result, nil
}

func (h *Handler) compress(ctx context.Context, namespacedName, cacheKey string, callResult router.CallResult, policy resolver.Resolved) *mcp.CallToolResult {
	upstreamID, _, _ := resolver.ParseNamespacedName(namespacedName)
	for i, content := range callResult.Raw.Content {
		text, ok := content.(mcp.TextContent)
		if !ok {
			continue
		}
		compressed, err := h.compressor.Compress(ctx, upstreamID, cacheKey, callResult.Goal, text.Text, policy.Compression)
		if err != nil {
			log.Warn().Err(err).Str("tool", namespacedName).Msg("compression failed, returning raw result")
			continue
		}
		text.Text = compressed.Text
		callResult.Raw.Content[i] = text
	}
	return callResult.Raw
}

// ReadResource reads a namespaced resource URI through its upstream
// session, serving from cache when the resolver's cache policy for that
// upstream's defaults allows it.
func (h *Handler) ReadResource(ctx context.Context, namespacedURI string) (*mcp.ReadResourceResult, error) {
	entry, ok := h.aggregator.FindResource(namespacedURI)
	if !ok {
		return nil, fmt.Errorf("handler: unknown resource %q", namespacedURI)
	}

	policy := h.resolver.Resolve(aggregator.NamespacedName(entry.UpstreamID, ""))
	cacheKey := cache.ResourceKey(namespacedURI)
	if policy.Cache.Enabled {
		if cached, ok := h.resCache.Get(cacheKey); ok {
			if result, ok := cached.(*mcp.ReadResourceResult); ok {
				return result, nil
			}
		}
	}

	sess, ok := h.manager.Get(entry.UpstreamID)
	if !ok {
		return nil, fmt.Errorf("handler: upstream %q not found", entry.UpstreamID)
	}
	result, err := sess.ReadResource(ctx, entry.OriginalName)
	if err != nil {
		return nil, fmt.Errorf("handler: read resource failed: %w", err)
	}

	if policy.Cache.Enabled {
		h.resCache.Set(cacheKey, result, policy.Cache.TTLSeconds)
	}
	return result, nil
}

// GetPrompt fetches a namespaced prompt through its upstream session.
func (h *Handler) GetPrompt(ctx context.Context, namespacedName string, args map[string]string) (*mcp.GetPromptResult, error) {
	entry, ok := h.aggregator.FindPrompt(namespacedName)
	if !ok {
		return nil, fmt.Errorf("handler: unknown prompt %q", namespacedName)
	}
	sess, ok := h.manager.Get(entry.UpstreamID)
	if !ok {
		return nil, fmt.Errorf("handler: upstream %q not found", entry.UpstreamID)
	}
	return sess.GetPrompt(ctx, entry.OriginalName, args)
}

// NewRequestID returns a fresh request identifier for admin/log tracing.
func NewRequestID() string {
	return uuid.NewString()
}

func restoreContentText(result *mcp.CallToolResult, restore *masker.Map) {
	if result == nil {
		return
	}
	for i, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			text.Text = masker.Restore(text.Text, restore)
			result.Content[i] = text
		}
	}
}

func extractGoalForCacheKey(args map[string]any, prefix string) (string, bool) {
	goalName, _ := schema.VirtualFieldNames(prefix)
	if args == nil {
		return "", false
	}
	v, ok := args[goalName].(string)
	return v, ok
}

// extractBypassForCacheKey peeks at the bypass virtual field without
// mutating args, so CallTool can decide whether to consult the cache before
// router.Dispatch strips the field on its way to the upstream.
func extractBypassForCacheKey(args map[string]any, prefix string) (bool, bool) {
	_, bypassName := schema.VirtualFieldNames(prefix)
	if args == nil {
		return false, false
	}
	v, ok := args[bypassName].(bool)
	return v, ok
}

// toRawSchema converts an mcp.Tool's InputSchema into the flat
// map[string]any shape the schema package transforms.
func toRawSchema(t mcp.Tool) map[string]any {
	props := make(map[string]any, len(t.InputSchema.Properties))
	for k, v := range t.InputSchema.Properties {
		props[k] = v
	}
	required := make([]any, 0, len(t.InputSchema.Required))
	for _, r := range t.InputSchema.Required {
		required = append(required, r)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func applyRawSchema(tool *mcp.Tool, raw map[string]any) {
	props, _ := raw["properties"].(map[string]any)
	newProps := make(map[string]any, len(props))
	for k, v := range props {
		newProps[k] = v
	}
	tool.InputSchema.Properties = newProps

	var required []string
	if reqAny, ok := raw["required"].([]any); ok {
		for _, r := range reqAny {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	tool.InputSchema.Required = required
}
