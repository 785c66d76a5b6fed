package resolve

import (
	"testing"

	"github.com/nerrad567/gray-logic-bridge/internal/catalog"
)

func blind(name, code string) *catalog.Device {
	return &catalog.Device{Name: name, Code: catalog.Code{Name: code}, Kind: catalog.KindBlind, Value: catalog.LevelValue(0)}
}

func light(name, code string) *catalog.Device {
	return &catalog.Device{Name: name, Code: catalog.Code{Name: code}, Value: catalog.BoolValue(false)}
}

// testCatalog is a small house used across the resolver tests.
func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Rooms: []*catalog.Room{
		{Name: "cucina", Devices: []*catalog.Device{
			blind("tapparella sud", "tapparella-cucina-sud"),
			blind("tapparella lavandino", "tapparella-cucina-lavandino"),
			light("luce tavolo grande", "luce-tavolo"),
		}},
		{Name: "sala", Devices: []*catalog.Device{
			light("luce tavolo", ""),
			blind("tapparella portafinestra", "tapparella-sala"),
		}},
		{Name: "bagno", Devices: []*catalog.Device{
			light("luce specchio", "luce-bagno"),
		}},
	}}
}

func labels(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Room.Name + "/" + m.Device.Name
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindDevice(t *testing.T) {
	cat := testCatalog()
	aliases := catalog.AliasTable{
		{Canonical: "luce specchio", Synonyms: []string{"luce del bagno"}},
	}

	tests := []struct {
		name     string
		query    string
		wantRoom string
		wantDev  string
		wantOK   bool
	}{
		{
			name:     "exact display name",
			query:    "Luce Specchio",
			wantRoom: "bagno", wantDev: "luce specchio", wantOK: true,
		},
		{
			name:     "exact code name",
			query:    "tapparella-sala",
			wantRoom: "sala", wantDev: "tapparella portafinestra", wantOK: true,
		},
		{
			name:     "exact room plus name",
			query:    "cucina  tapparella lavandino",
			wantRoom: "cucina", wantDev: "tapparella lavandino", wantOK: true,
		},
		{
			name:     "exact beats an earlier fuzzy match",
			query:    "luce tavolo",
			wantRoom: "sala", wantDev: "luce tavolo", wantOK: true,
		},
		{
			name:     "fuzzy at threshold",
			query:    "specchio bagno",
			wantRoom: "bagno", wantDev: "luce specchio", wantOK: true,
		},
		{
			name:     "fuzzy tie goes to catalog order",
			query:    "tapparella cucina",
			wantRoom: "cucina", wantDev: "tapparella sud", wantOK: true,
		},
		{
			name:     "alias synonym",
			query:    "luce del bagno",
			wantRoom: "bagno", wantDev: "luce specchio", wantOK: true,
		},
		{
			name:   "single shared word is not enough",
			query:  "luce",
			wantOK: false,
		},
		{
			name:   "unknown",
			query:  "caldaia",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := FindDevice(cat, aliases, tt.query)
			if ok != tt.wantOK {
				t.Fatalf("FindDevice(%q) ok = %v, want %v", tt.query, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if m.Room.Name != tt.wantRoom || m.Device.Name != tt.wantDev {
				t.Errorf("FindDevice(%q) = %s/%s, want %s/%s", tt.query, m.Room.Name, m.Device.Name, tt.wantRoom, tt.wantDev)
			}
		})
	}
}

func TestFindDeviceThresholdBoundary(t *testing.T) {
	cat := &catalog.Catalog{Rooms: []*catalog.Room{
		{Name: "r", Devices: []*catalog.Device{light("a b c", "")}},
	}}

	if _, ok := FindDevice(cat, nil, "a b"); !ok {
		t.Error("FindDevice(a b) not found, want score-2 match")
	}
	if _, ok := FindDevice(cat, nil, "a"); ok {
		t.Error("FindDevice(a) found, want not found at score 1")
	}
}

func TestFindDevices(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		name  string
		query string
		opts  []Option
		want  []string
	}{
		{
			name:  "substring of several names",
			query: "tapparella",
			want: []string{
				"cucina/tapparella sud",
				"cucina/tapparella lavandino",
				"sala/tapparella portafinestra",
			},
		},
		{
			name:  "fuzzy on room plus name",
			query: "tapparella cucina",
			opts:  []Option{OfKind(catalog.KindBlind)},
			want: []string{
				"cucina/tapparella sud",
				"cucina/tapparella lavandino",
			},
		},
		{
			name:  "kind filter excludes lights",
			query: "luce tavolo",
			opts:  []Option{OfKind(catalog.KindBlind)},
			want:  []string{},
		},
		{
			name:  "no filter includes every kind",
			query: "luce tavolo",
			want: []string{
				"cucina/luce tavolo grande",
				"sala/luce tavolo",
			},
		},
		{
			name:  "raw substring matches inside a word",
			query: "gno",
			want:  []string{"bagno/luce specchio"},
		},
		{
			name:  "nothing",
			query: "caldaia",
			want:  []string{},
		},
		{
			name:  "empty query matches nothing",
			query: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labels(FindDevices(cat, nil, tt.query, tt.opts...))
			if !equalStrings(got, tt.want) {
				t.Errorf("FindDevices(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestFindDevicesDeduplicates(t *testing.T) {
	cat := &catalog.Catalog{Rooms: []*catalog.Room{
		{Name: "studio", Devices: []*catalog.Device{
			// Display name and code name both contain the query.
			blind("tapparella studio", "tapparella studio nord"),
			// Same physical device listed twice under one code name.
			blind("tapparella doppia", "tapparella studio nord"),
			// No code name: keyed by display name.
			blind("tapparella est", ""),
			blind("Tapparella  EST", ""),
		}},
		{Name: "ufficio", Devices: []*catalog.Device{
			// Same code name in another room is a different device.
			blind("tapparella ufficio", "tapparella studio nord"),
		}},
	}}

	got := labels(FindDevices(cat, nil, "tapparella"))
	want := []string{
		"studio/tapparella studio",
		"studio/tapparella est",
		"ufficio/tapparella ufficio",
	}
	if !equalStrings(got, want) {
		t.Errorf("FindDevices() = %v, want %v", got, want)
	}
}

func TestDevicesIterationOrder(t *testing.T) {
	var got []string
	for room, dev := range Devices(testCatalog()) {
		got = append(got, room.Name+"/"+dev.Name)
		if len(got) == 4 {
			break
		}
	}
	want := []string{
		"cucina/tapparella sud",
		"cucina/tapparella lavandino",
		"cucina/luce tavolo grande",
		"sala/luce tavolo",
	}
	if !equalStrings(got, want) {
		t.Errorf("Devices() = %v, want %v", got, want)
	}

	for range Devices(nil) {
		t.Error("Devices(nil) yielded a pair")
	}
}
