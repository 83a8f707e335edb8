package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/somersetwc/website/internal/leads"
	"github.com/somersetwc/website/internal/pricing"
	"github.com/somersetwc/website/internal/testdb"
)

func TestStoreSaveGetDelete(t *testing.T) {
	store := NewStore(testdb.Open(t))
	ctx := context.Background()

	d := &Draft{
		Step:      StepContact,
		Services:  []pricing.Service{pricing.ServiceWindows},
		Property:  pricing.PropertyTerraced,
		Bedrooms:  2,
		Frequency: pricing.FrequencyEightWeekly,
		Contact:   leads.ContactDetails{Name: "Lee"},
	}
	if err := store.Save(ctx, d); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.ID == "" {
		t.Fatalf("Save did not assign an id")
	}

	d.Step = StepReview
	if err := store.Save(ctx, d); err != nil {
		t.Fatalf("Save update: %v", err)
	}

	got, err := store.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Step != StepReview || got.Bedrooms != 2 || got.Contact.Name != "Lee" || got.Frequency != pricing.FrequencyEightWeekly {
		t.Fatalf("draft not round-tripped: %+v", got)
	}

	if err := store.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStorePurgeBefore(t *testing.T) {
	store := NewStore(testdb.Open(t))
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	stale := NewDraft()
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("Save stale: %v", err)
	}

	store.now = func() time.Time { return base.Add(48 * time.Hour) }
	fresh := NewDraft()
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("Save fresh: %v", err)
	}

	n, err := store.PurgeBefore(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d drafts, want 1", n)
	}
	if _, err := store.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh draft was purged: %v", err)
	}
}
