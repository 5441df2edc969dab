// Package schema transforms an upstream tool's raw JSON schema into what
// the downstream client sees: description overrides, hidden parameters
// removed, and virtual goal/bypass fields injected, per spec.md §4.G.
package schema

import (
	"fmt"

	"github.com/samteezy/mcproxy/internal/resolver"
)

// GoalParam and BypassParam name the suffixes appended to the resolver's
// configured vendor prefix to build the injected virtual field names, e.g.
// prefix "mcp" yields "_mcp_goal" and "_mcp_bypass".
const (
	GoalParam   = "goal"
	BypassParam = "bypass"
)

// VirtualFieldNames returns the two injected field names for a given vendor
// prefix, in the fixed order the schema always presents them: goal first,
// then bypass.
func VirtualFieldNames(prefix string) (goal, bypass string) {
	return fmt.Sprintf("_%s_%s", prefix, GoalParam), fmt.Sprintf("_%s_%s", prefix, BypassParam)
}

// Transform applies parameter hiding and virtual field injection to
// rawSchema (a decoded JSON Schema object, typically
// {"type":"object","properties":{...},"required":[...]}) for one tool.
// descriptionOverride is not used here; DescriptionFor builds the tool's
// description.
func Transform(rawSchema map[string]any, resolved resolver.Resolved, descriptionOverride string, hiddenParams []string, goalPrefix string) map[string]any {
	out := cloneSchema(rawSchema)

	props, _ := out["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	} else {
		props = cloneProps(props)
	}

	for _, name := range hiddenParams {
		delete(props, name)
	}
	out["required"] = removeFromRequired(out["required"], hiddenParams)

	goalName, bypassName := VirtualFieldNames(goalPrefix)

	if resolved.GoalAware {
		props[goalName] = map[string]any{
			"type":        "string",
			"description": "What you're trying to accomplish with this call. Used to guide result compression toward what matters.",
		}
		out["required"] = appendToRequired(out["required"], goalName)
	}
	if resolved.Bypass {
		props[bypassName] = map[string]any{
			"type":        "boolean",
			"description": "Optional: skip compression and return the raw upstream result.",
		}
	}

	out["properties"] = props
	return out
}

// DescriptionFor returns the description the downstream client should see
// for a tool: the configured override if present (else the original), with
// an explanatory sentence naming the injected virtual fields appended when
// either is present, per spec.md §4.G steps 3-4. Scenario 1 requires the
// final description to contain both "_mcp_goal" and "_mcp_bypass" when both
// are injected.
func DescriptionFor(original, override string, resolved resolver.Resolved, goalPrefix string) string {
	base := original
	if override != "" {
		base = override
	}
	goalName, bypassName := VirtualFieldNames(goalPrefix)

	var sentence string
	switch {
	case resolved.GoalAware && resolved.Bypass:
		sentence = fmt.Sprintf("Requires %q to steer result compression and accepts optional %q to skip it.", goalName, bypassName)
	case resolved.GoalAware:
		sentence = fmt.Sprintf("Requires %q to steer result compression.", goalName)
	case resolved.Bypass:
		sentence = fmt.Sprintf("Accepts optional %q to skip result compression.", bypassName)
	default:
		return base
	}
	if base == "" {
		return sentence
	}
	return base + " " + sentence
}

func cloneSchema(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneProps(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func appendToRequired(required any, name string) any {
	list, _ := required.([]any)
	for _, r := range list {
		if s, ok := r.(string); ok && s == name {
			return list
		}
	}
	return append(list, name)
}

func removeFromRequired(required any, hidden []string) any {
	list, ok := required.([]any)
	if !ok || len(hidden) == 0 {
		return required
	}
	hiddenSet := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		hiddenSet[h] = true
	}
	out := make([]any, 0, len(list))
	for _, r := range list {
		if name, ok := r.(string); ok && hiddenSet[name] {
			continue
		}
		out = append(out, r)
	}
	return out
}
