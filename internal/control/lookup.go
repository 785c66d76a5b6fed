package control

import (
	"context"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
	"github.com/nerrad567/gray-logic-bridge/internal/resolve"
)

// DeviceView is a device as reported by Lookup.
type DeviceView struct {
	Room  string `json:"room"`
	Name  string `json:"name"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

// LookupResult shows how a query resolves without changing anything.
type LookupResult struct {
	Query   string       `json:"query"`
	Best    *DeviceView  `json:"best"`
	Matches []DeviceView `json:"matches"`
	Generic bool         `json:"generic"`
	Members []DeviceView `json:"members,omitempty"`
}

// Lookup resolves query the way the commands would: the single best
// device, every match (blinds only when blindsOnly is set), and whether
// the query is a generic category request.
func (s *Service) Lookup(ctx context.Context, query string, blindsOnly bool) (LookupResult, error) {
	result := LookupResult{Query: query, Matches: []DeviceView{}}

	err := s.store.View(ctx, func(doc *catalog.Document, aliases catalog.AliasTable) error {
		if m, ok := s.engine.ResolveOne(doc.Catalog, aliases, query); ok {
			best := view(m)
			result.Best = &best
		}

		var opts []resolve.Option
		if blindsOnly {
			opts = append(opts, resolve.OfKind(catalog.KindBlind))
		}
		for _, m := range s.engine.ResolveMany(doc.Catalog, aliases, query, opts...) {
			result.Matches = append(result.Matches, view(m))
		}

		if s.engine.DetectGenericCategory(doc.Catalog, query) {
			result.Generic = true
			for _, m := range s.engine.MembersOfGenericCategory(doc.Catalog, query) {
				result.Members = append(result.Members, view(m))
			}
		}
		return nil
	})
	if err != nil {
		return LookupResult{}, err
	}
	return result, nil
}

func view(m resolve.Match) DeviceView {
	return DeviceView{
		Room:  m.Room.Name,
		Name:  m.Device.Name,
		Label: m.Label(),
		Kind:  m.Device.Kind.String(),
		Value: m.Device.Value.Interface(),
	}
}
