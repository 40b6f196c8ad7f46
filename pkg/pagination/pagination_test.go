package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 500: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCursorEncodeParse(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(want.Encode())
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", got, want)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, in := range []string{"not base64!", "e30", "bm9wZQ"} {
		if _, err := ParseCursor(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("expected nil cursor for blank input, got %v %v", c, err)
	}
}

type item struct {
	ID        uuid.UUID `gorm:"primaryKey"`
	CreatedAt time.Time
}

func TestKeysetWalksAllRowsOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:keyset?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&item{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		// two rows share each timestamp so the id tiebreak is exercised
		at := base.Add(time.Duration(i/2) * time.Minute)
		if err := db.Create(&item{ID: uuid.New(), CreatedAt: at}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	seen := map[uuid.UUID]bool{}
	var cursor *Cursor
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatal("pagination did not terminate")
		}
		var rows []item
		if err := db.Scopes(Keyset(cursor, 2)).Find(&rows).Error; err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		page := Trim(rows, 2, func(r item) Cursor { return Cursor{CreatedAt: r.CreatedAt, ID: r.ID} })
		for _, r := range page.Items {
			if seen[r.ID] {
				t.Fatalf("row %s returned twice", r.ID)
			}
			seen[r.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		if cursor, err = ParseCursor(page.NextCursor); err != nil {
			t.Fatalf("parse next: %v", err)
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 rows, saw %d", len(seen))
	}
}

func TestTrimEmpty(t *testing.T) {
	page := Trim[item](nil, 2, func(item) Cursor { return Cursor{} })
	if page.Items == nil || page.NextCursor != "" {
		t.Fatalf("unexpected page %+v", page)
	}
}
