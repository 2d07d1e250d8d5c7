package route

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Class is the access class of a route.
type Class uint8

const (
	// Protected routes need a signed-in subject. Unknown paths are Protected.
	Protected Class = iota
	// Public routes are open to everyone who is not banned.
	Public
	// AuthEntry routes (login, register) are for anonymous visitors only.
	AuthEntry
	// AdminOnly routes need the admin role.
	AdminOnly
	// SignOut routes stay reachable for banned subjects.
	SignOut
)

func (c Class) String() string {
	switch c {
	case Protected:
		return "protected"
	case Public:
		return "public"
	case AuthEntry:
		return "auth_entry"
	case AdminOnly:
		return "admin_only"
	case SignOut:
		return "sign_out"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Rule classifies a path. With Prefix set it also covers every path below
// Pattern on a segment boundary: "/admin" covers "/admin/users" but not
// "/administrator".
type Rule struct {
	Pattern string
	Class   Class
	Prefix  bool
}

type prefixRule struct {
	pattern string
	class   Class
}

// Table maps request paths to classes. Exact rules win over prefix rules;
// among prefix rules the longest pattern wins.
type Table struct {
	exact    map[string]Class
	prefixes []prefixRule
}

// ErrBadPattern is returned by NewTable for patterns that are not clean
// absolute paths.
var ErrBadPattern = errors.New("route: pattern must be a clean absolute path")

// NewTable builds a Table from rules. Duplicate exact patterns are rejected.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{exact: make(map[string]Class, len(rules))}
	seenPrefix := make(map[string]bool)

	for _, r := range rules {
		if r.Pattern == "" || r.Pattern[0] != '/' || Normalize(r.Pattern) != r.Pattern {
			return nil, fmt.Errorf("%w: %q", ErrBadPattern, r.Pattern)
		}
		if r.Prefix {
			if seenPrefix[r.Pattern] {
				return nil, fmt.Errorf("route: duplicate prefix rule %q", r.Pattern)
			}
			seenPrefix[r.Pattern] = true
			t.prefixes = append(t.prefixes, prefixRule{pattern: r.Pattern, class: r.Class})
			continue
		}
		if _, dup := t.exact[r.Pattern]; dup {
			return nil, fmt.Errorf("route: duplicate rule %q", r.Pattern)
		}
		t.exact[r.Pattern] = r.Class
	}

	sort.Slice(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].pattern) > len(t.prefixes[j].pattern)
	})
	return t, nil
}

// MustTable is NewTable for package-level tables; it panics on error.
func MustTable(rules ...Rule) *Table {
	t, err := NewTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Classify returns the class of p.
func (t *Table) Classify(p string) Class {
	p = Normalize(p)
	if c, ok := t.exact[p]; ok {
		return c
	}
	for _, r := range t.prefixes {
		if r.pattern == "/" || p == r.pattern || strings.HasPrefix(p, r.pattern+"/") {
			return r.class
		}
	}
	return Protected
}

// Normalize cleans p to an absolute path without a trailing slash.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

// DefaultTable is the page layout served by the bundled HTTP surface.
func DefaultTable() *Table {
	return MustTable(
		Rule{Pattern: "/", Class: Public},
		Rule{Pattern: "/login", Class: AuthEntry},
		Rule{Pattern: "/register", Class: AuthEntry},
		Rule{Pattern: "/forgot-password", Class: Public},
		Rule{Pattern: "/reset-password", Class: Public},
		Rule{Pattern: "/verify-email", Class: Public},
		Rule{Pattern: "/banned", Class: Public},
		Rule{Pattern: "/logout", Class: SignOut},
		Rule{Pattern: "/oauth", Class: Public, Prefix: true},
		Rule{Pattern: "/dashboard", Class: Protected, Prefix: true},
		Rule{Pattern: "/settings", Class: Protected, Prefix: true},
		Rule{Pattern: "/admin", Class: AdminOnly, Prefix: true},
	)
}
