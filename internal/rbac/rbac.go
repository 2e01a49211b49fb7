// Package rbac decides which panel actions a tenant's granted access scopes
// allow.
package rbac

import (
	"sort"
	"strings"
)

type Scope string
type Action string

const (
	ScopeReadProducts         Scope = "read_products"
	ScopeWriteMarketingEvents Scope = "write_marketing_events"
)

const (
	// ActionAnalyze covers commands that only read caller-supplied content.
	ActionAnalyze Action = "analyze"
	// ActionReadStore covers commands that read the tenant's catalog.
	ActionReadStore Action = "read_store"
	// ActionPublish creates a marketing event on the tenant's store.
	ActionPublish Action = "publish"
)

// Grants is the set of scopes granted at install time. An empty set means the
// install did not record scopes and every action is allowed.
type Grants map[Scope]struct{}

// ParseGrants reads a comma or space separated scope list. A write scope
// implies the matching read scope.
func ParseGrants(raw string) Grants {
	grants := Grants{}
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		scope := Scope(strings.ToLower(strings.TrimSpace(field)))
		if scope == "" {
			continue
		}
		grants[scope] = struct{}{}
		if name, ok := strings.CutPrefix(string(scope), "write_"); ok {
			grants[Scope("read_"+name)] = struct{}{}
		}
	}
	return grants
}

func (g Grants) Has(scope Scope) bool {
	_, ok := g[scope]
	return ok
}

func (g Grants) String() string {
	out := make([]string, 0, len(g))
	for scope := range g {
		out = append(out, string(scope))
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// Required returns the scope an action needs, or "" when none is needed.
func Required(action Action) Scope {
	switch action {
	case ActionReadStore:
		return ScopeReadProducts
	case ActionPublish:
		return ScopeWriteMarketingEvents
	default:
		return ""
	}
}

func Can(grants Grants, action Action) bool {
	if len(grants) == 0 {
		return true
	}
	required := Required(action)
	return required == "" || grants.Has(required)
}
