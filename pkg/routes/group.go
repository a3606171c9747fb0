package routes

import "net/http"

// Group nests routes under a shared path prefix. Child groups extend the
// parent prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds every route in groups to mux and returns the patterns it
// registered, in declaration order.
func Register(mux *http.ServeMux, groups ...Group) []string {
	var patterns []string
	walk(groups, "", func(pattern string, route Route) {
		mux.HandleFunc(pattern, route.Handler)
		patterns = append(patterns, pattern)
	})
	return patterns
}

// Patterns returns the mux patterns groups would register, without
// registering them.
func Patterns(groups ...Group) []string {
	var patterns []string
	walk(groups, "", func(pattern string, _ Route) {
		patterns = append(patterns, pattern)
	})
	return patterns
}

func walk(groups []Group, parent string, visit func(string, Route)) {
	for _, g := range groups {
		prefix := parent + g.Prefix
		for _, r := range g.Routes {
			visit(r.pattern(prefix), r)
		}
		walk(g.Children, prefix, visit)
	}
}
