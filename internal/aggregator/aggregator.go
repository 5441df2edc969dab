// Package aggregator maintains the merged, namespaced catalog of every
// connected upstream's tools, resources, and prompts, and fans refresh
// operations out across upstreams with per-upstream failure isolation.
package aggregator

import (
	"context"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/samteezy/mcproxy/internal/upstream"
)

const namespaceSep = "__"

// Entry pairs a namespaced catalog item with the upstream it came from and
// its original, un-namespaced name.
type Entry[T any] struct {
	UpstreamID   string
	OriginalName string
	Item         T
}

type catalog struct {
	tools     []Entry[mcp.Tool]
	resources []Entry[mcp.Resource]
	prompts   []Entry[mcp.Prompt]
}

// Aggregator holds the current merged catalog as an immutable snapshot,
// swapped atomically on each refresh so readers never observe a partial
// update (copy-on-write, per spec.md §4.F).
type Aggregator struct {
	manager *upstream.Manager

	mu  sync.RWMutex
	cur *catalog
}

// New builds an Aggregator over the given upstream manager. The catalog is
// empty until the first Refresh.
func New(manager *upstream.Manager) *Aggregator {
	return &Aggregator{manager: manager, cur: &catalog{}}
}

// Refresh re-lists tools, resources, and prompts from every upstream
// session currently in StateConnected. A single upstream's failure is
// logged and excluded from the new snapshot; it does not abort the other
// upstreams' refresh or leave the aggregator in a half-updated state.
func (a *Aggregator) Refresh(ctx context.Context) {
	sessions := a.manager.All()

	next := &catalog{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for id, sess := range sessions {
		if sess.State() != upstream.StateConnected {
			continue
		}
		wg.Add(1)
		go func(id string, sess *upstream.Session) {
			defer wg.Done()

			tools, err := sess.ListTools(ctx)
			if err != nil {
				log.Warn().Err(err).Str("upstream", id).Msg("list tools failed")
				tools = nil
			}
			resources, err := sess.ListResources(ctx)
			if err != nil {
				log.Warn().Err(err).Str("upstream", id).Msg("list resources failed")
				resources = nil
			}
			prompts, err := sess.ListPrompts(ctx)
			if err != nil {
				log.Warn().Err(err).Str("upstream", id).Msg("list prompts failed")
				prompts = nil
			}

			mu.Lock()
			for _, t := range tools {
				next.tools = append(next.tools, Entry[mcp.Tool]{UpstreamID: id, OriginalName: t.Name, Item: t})
			}
			for _, r := range resources {
				next.resources = append(next.resources, Entry[mcp.Resource]{UpstreamID: id, OriginalName: r.URI, Item: r})
			}
			for _, p := range prompts {
				next.prompts = append(next.prompts, Entry[mcp.Prompt]{UpstreamID: id, OriginalName: p.Name, Item: p})
			}
			mu.Unlock()
		}(id, sess)
	}
	wg.Wait()

	a.mu.Lock()
	a.cur = next
	a.mu.Unlock()
}

// NamespacedName joins an upstream id and its tool/prompt's original name.
func NamespacedName(upstreamID, originalName string) string {
	return upstreamID + namespaceSep + originalName
}

// NamespacedURI joins an upstream id and a resource's original URI.
func NamespacedURI(upstreamID, originalURI string) string {
	return upstreamID + "://" + originalURI
}

// Tools returns every tool in the current snapshot, namespaced.
func (a *Aggregator) Tools() []Entry[mcp.Tool] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur.tools
}

// Resources returns every resource in the current snapshot, namespaced.
func (a *Aggregator) Resources() []Entry[mcp.Resource] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur.resources
}

// Prompts returns every prompt in the current snapshot, namespaced.
func (a *Aggregator) Prompts() []Entry[mcp.Prompt] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur.prompts
}

// FindTool looks up a namespaced tool name in the current snapshot.
func (a *Aggregator) FindTool(namespacedName string) (Entry[mcp.Tool], bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.cur.tools {
		if NamespacedName(e.UpstreamID, e.OriginalName) == namespacedName {
			return e, true
		}
	}
	return Entry[mcp.Tool]{}, false
}

// FindResource looks up a namespaced resource URI in the current snapshot.
func (a *Aggregator) FindResource(namespacedURI string) (Entry[mcp.Resource], bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.cur.resources {
		if NamespacedURI(e.UpstreamID, e.OriginalName) == namespacedURI {
			return e, true
		}
	}
	return Entry[mcp.Resource]{}, false
}

// FindPrompt looks up a namespaced prompt name in the current snapshot.
func (a *Aggregator) FindPrompt(namespacedName string) (Entry[mcp.Prompt], bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, e := range a.cur.prompts {
		if NamespacedName(e.UpstreamID, e.OriginalName) == namespacedName {
			return e, true
		}
	}
	return Entry[mcp.Prompt]{}, false
}

// UpstreamCounts returns the number of tools known for each upstream id
// currently present in the snapshot.
func (a *Aggregator) UpstreamCounts() map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range a.cur.tools {
		counts[e.UpstreamID]++
	}
	return counts
}
