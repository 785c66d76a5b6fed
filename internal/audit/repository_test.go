package audit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-bridge/migrations"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreateFillsDefaults(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	entry := &Entry{
		Action:     ActionCommand,
		EntityType: EntityDevice,
		EntityID:   "cucina/tapparella sud",
		Source:     SourceAPI,
		Details:    map[string]any{"value": 40, "query": "tapparella sud"},
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !strings.HasPrefix(entry.ID, "aud-") || len(entry.ID) != len("aud-")+8 {
		t.Errorf("ID = %q, want aud- plus 8 characters", entry.ID)
	}
	if entry.CreatedAt.IsZero() || entry.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want a UTC time", entry.CreatedAt)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("List() = %+v, want one entry", result)
	}

	got := result.Logs[0]
	if got.ID != entry.ID || got.EntityID != "cucina/tapparella sud" || got.UserID != "" {
		t.Errorf("stored entry = %+v", got)
	}
	// JSON numbers come back as float64.
	if got.Details["value"] != float64(40) || got.Details["query"] != "tapparella sud" {
		t.Errorf("Details = %v", got.Details)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, entry.CreatedAt)
	}
}

func TestListFiltersAndPages(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	seed := []Entry{
		{Action: ActionCommand, EntityType: EntityDevice, EntityID: "cucina/luce", Source: SourceAPI},
		{Action: ActionCommand, EntityType: EntityDevice, EntityID: "sala/luce", Source: SourceAPI, UserID: "alexa"},
		{Action: ActionScene, EntityType: EntityScene, EntityID: "buonanotte", Source: SourceAPI},
		{Action: ActionExternalState, EntityType: EntityDevice, EntityID: "cucina/luce", Source: SourceField},
	}
	for i := range seed {
		seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("seeding: %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantIDs   []string
	}{
		{"all newest first", Filter{}, 4, []string{seed[3].ID, seed[2].ID, seed[1].ID, seed[0].ID}},
		{"by action", Filter{Action: ActionCommand}, 2, []string{seed[1].ID, seed[0].ID}},
		{"by entity", Filter{EntityType: EntityDevice, EntityID: "cucina/luce"}, 2, []string{seed[3].ID, seed[0].ID}},
		{"by source", Filter{Source: SourceField}, 1, []string{seed[3].ID}},
		{"since", Filter{Since: base.Add(2 * time.Minute)}, 2, []string{seed[3].ID, seed[2].ID}},
		{"paged", Filter{Limit: 2, Offset: 1}, 4, []string{seed[2].ID, seed[1].ID}},
		{"past the end", Filter{Offset: 10}, 4, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Logs) != len(tt.wantIDs) {
				t.Fatalf("got %d logs, want %d", len(result.Logs), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if result.Logs[i].ID != id {
					t.Errorf("Logs[%d].ID = %q, want %q", i, result.Logs[i].ID, id)
				}
			}
		})
	}
}

func TestFilterNormalize(t *testing.T) {
	tests := []struct {
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{Filter{}, DefaultLimit, 0},
		{Filter{Limit: 10, Offset: 5}, 10, 5},
		{Filter{Limit: 5000}, MaxLimit, 0},
		{Filter{Limit: -1, Offset: -3}, DefaultLimit, 0},
	}

	for _, tt := range tests {
		got := tt.in.normalize()
		if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
			t.Errorf("normalize(%+v) = limit %d offset %d, want %d %d",
				tt.in, got.Limit, got.Offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
