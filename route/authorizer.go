package route

// Subject is the part of session claims the authorizer reads.
type Subject struct {
	Authenticated bool
	Admin         bool
	Banned        bool
}

// Anonymous is the subject of a request without a session.
var Anonymous = Subject{}

// Decision is the result of a check: allow, or redirect to Redirect.
type Decision struct {
	Allow    bool
	Redirect string
}

// Allowed is the allow decision.
var Allowed = Decision{Allow: true}

// RedirectTo returns a redirect decision.
func RedirectTo(target string) Decision {
	return Decision{Redirect: target}
}

// Pages are the redirect targets.
type Pages struct {
	Login     string
	Dashboard string
	Banned    string
}

// DefaultPages returns /login, /dashboard and /banned.
func DefaultPages() Pages {
	return Pages{Login: "/login", Dashboard: "/dashboard", Banned: "/banned"}
}

// Authorizer applies the route precedence over a Table. It is immutable and
// safe for concurrent use.
type Authorizer struct {
	table *Table
	pages Pages
}

// NewAuthorizer returns an Authorizer. Empty pages fall back to
// DefaultPages.
func NewAuthorizer(table *Table, pages Pages) *Authorizer {
	def := DefaultPages()
	if pages.Login == "" {
		pages.Login = def.Login
	}
	if pages.Dashboard == "" {
		pages.Dashboard = def.Dashboard
	}
	if pages.Banned == "" {
		pages.Banned = def.Banned
	}
	if table == nil {
		table = DefaultTable()
	}
	return &Authorizer{table: table, pages: pages}
}

// Pages returns the configured redirect targets.
func (a *Authorizer) Pages() Pages {
	return a.pages
}

// Classify exposes the table lookup.
func (a *Authorizer) Classify(p string) Class {
	return a.table.Classify(p)
}

// Check decides the request for path p.
func (a *Authorizer) Check(p string, s Subject) Decision {
	p = Normalize(p)
	class := a.table.Classify(p)

	if s.Banned && s.Authenticated {
		if p == a.pages.Banned || class == SignOut {
			return Allowed
		}
		return RedirectTo(a.pages.Banned)
	}

	switch class {
	case AuthEntry:
		if s.Authenticated {
			return RedirectTo(a.pages.Dashboard)
		}
	case AdminOnly:
		if !s.Authenticated {
			return RedirectTo(a.pages.Login)
		}
		if !s.Admin {
			return RedirectTo(a.pages.Dashboard)
		}
	case Protected:
		if !s.Authenticated {
			return RedirectTo(a.pages.Login)
		}
	}
	return Allowed
}
