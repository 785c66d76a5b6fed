package resolve

import "github.com/nerrad567/gray-logic-bridge/internal/catalog"

// Engine bundles the resolver with the generic category it checks.
type Engine struct {
	category Category
}

// NewEngine creates an engine for the given generic category.
func NewEngine(category Category) *Engine {
	return &Engine{category: category}
}

// Category returns the engine's generic category.
func (e *Engine) Category() Category {
	return e.category
}

// ResolveOne returns the single best device for query.
func (e *Engine) ResolveOne(cat *catalog.Catalog, aliases catalog.AliasTable, query string) (Match, bool) {
	return FindDevice(cat, aliases, query)
}

// ResolveMany returns every device consistent with query. When the lookup
// is restricted to the category's kind, matches are narrowed by any
// category qualifier the query contains.
func (e *Engine) ResolveMany(cat *catalog.Catalog, aliases catalog.AliasTable, query string, opts ...Option) []Match {
	matches := FindDevices(cat, aliases, query, opts...)

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasKind || o.kind != e.category.Kind {
		return matches
	}
	return e.category.Narrow(query, matches)
}

// DetectGenericCategory reports whether query asks for the category in a
// room without naming an instance.
func (e *Engine) DetectGenericCategory(cat *catalog.Catalog, query string) bool {
	return e.category.IsGenericRequest(cat, query)
}

// MembersOfGenericCategory lists the category's devices in the room query
// names.
func (e *Engine) MembersOfGenericCategory(cat *catalog.Catalog, query string) []Match {
	return e.category.Members(cat, query)
}
