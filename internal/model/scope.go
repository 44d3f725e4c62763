package model

import (
	"fmt"
	"strings"
)

// WildcardAction is the action component that matches any action on a resource.
const WildcardAction = "*"

// AdminResource is the resource whose wildcard scope grants the highest
// privilege tier.
const AdminResource = "admin"

// Scope is a parsed "resource:action" capability. Scopes are parsed once at
// provisioning time and compared structurally; wildcard matching is an
// explicit comparison, not a string-prefix check.
type Scope struct {
	Resource string
	Action   string
}

// ParseScope parses a single "resource:action" string.
func ParseScope(s string) (Scope, error) {
	resource, action, ok := strings.Cut(s, ":")
	if !ok || resource == "" || action == "" {
		return Scope{}, fmt.Errorf("malformed scope %q: want resource:action", s)
	}
	return Scope{Resource: resource, Action: action}, nil
}

// ParseScopes parses a scope list, preserving order.
func ParseScopes(raw []string) ([]Scope, error) {
	scopes := make([]Scope, 0, len(raw))
	for _, s := range raw {
		sc, err := ParseScope(s)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

// String returns the wire form "resource:action".
func (s Scope) String() string {
	return s.Resource + ":" + s.Action
}

// IsWildcard reports whether the scope grants every action on its resource.
func (s Scope) IsWildcard() bool {
	return s.Action == WildcardAction
}

// IsAdminWildcard reports whether the scope is the admin:* super scope.
func (s Scope) IsAdminWildcard() bool {
	return s.Resource == AdminResource && s.IsWildcard()
}

// Matches reports whether this granted scope satisfies the required one.
// A wildcard action satisfies any action on the same resource; admin:*
// satisfies everything.
func (s Scope) Matches(required Scope) bool {
	if s.IsAdminWildcard() {
		return true
	}
	if s.Resource != required.Resource {
		return false
	}
	return s.IsWildcard() || s.Action == required.Action
}
