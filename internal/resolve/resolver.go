package resolve

import (
	"iter"
	"strings"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
)

// Match is a resolved device together with the room that holds it.
type Match struct {
	Room   *catalog.Room
	Device *catalog.Device
}

// Label returns the name shown to a user choosing between matches.
func (m Match) Label() string {
	return m.Device.Label(m.Room.Name)
}

// Option narrows a multi-device lookup.
type Option func(*options)

type options struct {
	kind    catalog.Kind
	hasKind bool
}

// OfKind restricts FindDevices to devices of kind k.
func OfKind(k catalog.Kind) Option {
	return func(o *options) {
		o.kind = k
		o.hasKind = true
	}
}

// Devices yields every (room, device) pair of cat in catalog order.
// Malformed entries were already dropped at decode time.
func Devices(cat *catalog.Catalog) iter.Seq2[*catalog.Room, *catalog.Device] {
	return func(yield func(*catalog.Room, *catalog.Device) bool) {
		if cat == nil {
			return
		}
		for _, room := range cat.Rooms {
			for _, dev := range room.Devices {
				if dev == nil {
					continue
				}
				if !yield(room, dev) {
					return
				}
			}
		}
	}
}

// FindDevice returns the single best device for query.
//
// An exact match against any candidate phrase wins outright, first in
// catalog order. Failing that, the device with the highest word overlap is
// returned if the overlap reaches MinScore; ties go to the earlier device.
func FindDevice(cat *catalog.Catalog, aliases catalog.AliasTable, query string) (Match, bool) {
	target := Canonicalize(query, aliases)

	for room, dev := range Devices(cat) {
		for _, c := range Candidates(room, dev) {
			if c == target {
				return Match{Room: room, Device: dev}, true
			}
		}
	}

	tokens := Tokenize(target)
	var best Match
	bestScore := 0
	for room, dev := range Devices(cat) {
		for _, c := range Candidates(room, dev) {
			if s := tokens.Overlap(Tokenize(c)); s > bestScore {
				bestScore = s
				best = Match{Room: room, Device: dev}
			}
		}
	}

	if bestScore < MinScore {
		return Match{}, false
	}
	return best, true
}

// FindDevices returns every device consistent with query, in catalog order.
//
// A device matches when the canonical query is a substring of one of its
// candidate phrases, or when some candidate overlaps the query by at least
// MinScore words. The substring test works on raw text, so a short query
// can match inside a longer word. Devices sharing a room and a code name
// (display name when there is no code name) are reported once.
func FindDevices(cat *catalog.Catalog, aliases catalog.AliasTable, query string, opts ...Option) []Match {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	target := Canonicalize(query, aliases)
	tokens := Tokenize(target)

	var found []Match
	seen := make(map[dedupKey]bool)
	for room, dev := range Devices(cat) {
		if o.hasKind && dev.Kind != o.kind {
			continue
		}

		cands := Candidates(room, dev)
		if !containsHit(target, cands) && bestScore(tokens, cands) < MinScore {
			continue
		}

		key := keyOf(room, dev)
		if seen[key] {
			continue
		}
		seen[key] = true
		found = append(found, Match{Room: room, Device: dev})
	}
	return found
}

func containsHit(target string, cands [3]string) bool {
	if target == "" {
		return false
	}
	for _, c := range cands {
		if strings.Contains(c, target) {
			return true
		}
	}
	return false
}

type dedupKey struct {
	room string
	name string
}

func keyOf(room *catalog.Room, dev *catalog.Device) dedupKey {
	name := Normalize(dev.Code.Name)
	if name == "" {
		name = Normalize(dev.Name)
	}
	return dedupKey{room: room.Name, name: name}
}
