// Package facts implements the Fact Registry (C2 / "MindFill"): tracking
// known/unknown rationale slots extracted from an Agent's Plan. Grounded on
// iagents/tool.py's MindFillTool (set_unknown_facts/fill_mind/
// get_known_facts/get_unknown_facts), with fill_mind's JSON parsing
// delegated to the jsonfmt package instead of Python's eval().
package facts

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/iagents/core/jsonfmt"
)

// bracketToken matches non-nested [slot_name] tokens in Plan text.
var bracketToken = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Registry owns one Agent's known/unknown fact sets. Invariant (spec
// invariant #2): known ∩ unknown = ∅, and every key in either set appears
// as a bracket token in the current Plan at the time it was set.
type Registry struct {
	known   map[string]string
	unknown map[string]struct{}
}

func New() *Registry {
	return &Registry{
		known:   make(map[string]string),
		unknown: make(map[string]struct{}),
	}
}

// SetUnknownFromPlan extracts every bracket token from planText and installs
// the slot names as unknown facts, replacing whatever was tracked before
// (this is called once, at MARK time, per spec §4.5 Think step 2).
func (r *Registry) SetUnknownFromPlan(planText string) {
	matches := bracketToken.FindAllStringSubmatch(planText, -1)
	r.unknown = make(map[string]struct{}, len(matches))
	for _, m := range matches {
		r.unknown[m[1]] = struct{}{}
	}
}

// MergeUpdates applies an LLM-produced {slot: value} JSON mapping (already
// reformatted by jsonfmt) to planText, per spec §4.2:
//   - for each (k, v): if "[k]" literally appears in planText and k is
//     currently unknown, rewrite the token to "[k](Solved, which is v)",
//     then record (k, v) in known and drop k from unknown — unless v's
//     rendering case-insensitively contains "unknown", in which case the
//     value is tentative: it is kept only in the rewritten plan text and k
//     stays unknown (never in known), so known ∩ unknown stays empty.
//
// Returns the rewritten plan text.
func (r *Registry) MergeUpdates(ctx context.Context, reformatter *jsonfmt.Reformatter, planText, updatesText string) string {
	reformed := reformatter.ReformFree(ctx, updatesText)

	updates, err := parseFlatJSON(reformed)
	if err != nil {
		// Spec §7 "Plan update yields no JSON": keep prior Plan and all
		// current unknown_facts, continue.
		return planText
	}

	for key, value := range updates {
		token := "[" + key + "]"
		if !strings.Contains(planText, token) {
			continue
		}
		if _, isUnknown := r.unknown[key]; !isUnknown {
			continue
		}

		planText = strings.ReplaceAll(planText, token, fmt.Sprintf("[%s](Solved, which is %s)", key, value))
		if !strings.Contains(strings.ToLower(value), "unknown") {
			r.known[key] = value
			delete(r.unknown, key)
		}
	}

	return planText
}

// KnownFacts returns a copy of the known slot->value map.
func (r *Registry) KnownFacts() map[string]string {
	out := make(map[string]string, len(r.known))
	for k, v := range r.known {
		out[k] = v
	}
	return out
}

// UnknownFacts returns the current unresolved slot names.
func (r *Registry) UnknownFacts() []string {
	out := make([]string, 0, len(r.unknown))
	for k := range r.unknown {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RenderKnown produces the deterministic "known fact: X --> Y" enumeration
// used verbatim inside prompts.
func (r *Registry) RenderKnown() string {
	keys := make([]string, 0, len(r.known))
	for k := range r.known {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("known fact: %s --> %s", k, r.known[k]))
	}
	return strings.Join(lines, "\n")
}

// RenderUnknown produces the deterministic "unknown fact: X" enumeration.
func (r *Registry) RenderUnknown() string {
	keys := r.UnknownFacts()
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("unknown fact: %s", k))
	}
	return strings.Join(lines, "\n")
}

// Invariant reports whether known ∩ unknown = ∅ holds, for tests to assert
// spec invariant #2 directly.
func (r *Registry) Invariant() bool {
	for k := range r.known {
		if _, ok := r.unknown[k]; ok {
			return false
		}
	}
	return true
}
