package resolve

import "github.com/nerrad567/gray-logic-bridge/internal/catalog"

// Default blind vocabulary: Italian, as used by the installation, plus
// English.
var (
	DefaultBlindTriggers = []string{"tapparella", "tapparelle", "blind", "blinds"}

	DefaultBlindQualifiers = []string{
		"sud", "nord", "est", "ovest",
		"lavandino", "portafinestra", "finestra", "botola", "ingresso",
		"south", "north", "east", "west",
		"window", "sink", "french-door", "trapdoor", "entrance",
	}
)

// Category describes a kind of device users name generically, as in
// "tapparelle cucina", without saying which one.
type Category struct {
	// Kind is the device kind the category enumerates.
	Kind catalog.Kind

	// triggers name the category; at least one must appear in a query.
	triggers TokenSet
	// qualifiers pinpoint an instance; any of them makes a query specific.
	qualifiers TokenSet
}

// NewCategory builds a category from trigger and qualifier words.
// Words are normalized; multi-word entries contribute each word.
func NewCategory(kind catalog.Kind, triggers, qualifiers []string) Category {
	return Category{
		Kind:       kind,
		triggers:   wordSet(triggers),
		qualifiers: wordSet(qualifiers),
	}
}

// Blinds returns the blind category with the default vocabulary.
func Blinds() Category {
	return NewCategory(catalog.KindBlind, DefaultBlindTriggers, DefaultBlindQualifiers)
}

func wordSet(words []string) TokenSet {
	set := make(TokenSet)
	for _, w := range words {
		for t := range Tokenize(w) {
			set[t] = struct{}{}
		}
	}
	return set
}

// IsGenericRequest reports whether query names the category and a room of
// cat without any qualifier, e.g. "tapparella cucina" but not
// "tapparella sud cucina".
func (c Category) IsGenericRequest(cat *catalog.Catalog, query string) bool {
	tokens := Tokenize(query)
	if !tokens.HasAny(c.triggers) || tokens.HasAny(c.qualifiers) {
		return false
	}
	_, ok := matchRoom(cat, tokens)
	return ok
}

// Members returns the category's devices in the first room, in catalog
// order, whose name words all appear in query. Later rooms are never
// considered, even if they also match. No matching room yields nil.
func (c Category) Members(cat *catalog.Catalog, query string) []Match {
	room, ok := matchRoom(cat, Tokenize(query))
	if !ok {
		return nil
	}
	var members []Match
	for _, dev := range room.Devices {
		if dev != nil && dev.Kind == c.Kind {
			members = append(members, Match{Room: room, Device: dev})
		}
	}
	return members
}

// Narrow drops matches that lack a qualifier the query uses.
//
// "tapparella sud cucina" overlaps "cucina tapparella lavandino" by two
// words, so both kitchen blinds match it; the qualifier "sud" is what tells
// them apart. A match is kept when its candidate phrases contain every
// qualifier of the query. If that would leave nothing, matches is returned
// unchanged.
func (c Category) Narrow(query string, matches []Match) []Match {
	wanted := make(TokenSet)
	for w := range Tokenize(query) {
		if c.qualifiers.Has(w) {
			wanted[w] = struct{}{}
		}
	}
	if len(wanted) == 0 || len(matches) < 2 {
		return matches
	}

	var kept []Match
	for _, m := range matches {
		words := make(TokenSet)
		for _, cand := range Candidates(m.Room, m.Device) {
			for w := range Tokenize(cand) {
				words[w] = struct{}{}
			}
		}
		if wanted.SubsetOf(words) {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return matches
	}
	return kept
}

// matchRoom returns the first room whose non-empty word set is contained
// in tokens. Rooms whose value was malformed still take part.
func matchRoom(cat *catalog.Catalog, tokens TokenSet) (*catalog.Room, bool) {
	if cat == nil {
		return nil, false
	}
	for _, room := range cat.Rooms {
		words := Tokenize(room.Name)
		if len(words) > 0 && words.SubsetOf(tokens) {
			return room, true
		}
	}
	return nil, false
}
