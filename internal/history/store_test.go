package history

import (
	"context"
	"testing"

	"github.com/haasonsaas/relay/pkg/models"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	aliases := []string{"ping", "help", "give"}
	for _, alias := range aliases {
		err := store.Record(ctx, Entry{
			Channel: models.ChannelTelegram,
			ChatID:  "chat-1",
			UserID:  "user-1",
			Alias:   alias,
			Outcome: "executed",
		})
		if err != nil {
			t.Fatalf("Record(%q) returned error: %v", alias, err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(recent))
	}
	// Newest first.
	if recent[0].Alias != "give" || recent[1].Alias != "help" {
		t.Errorf("Recent order = [%s %s], want [give help]", recent[0].Alias, recent[1].Alias)
	}
	if recent[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
	if recent[0].Channel != models.ChannelTelegram {
		t.Errorf("Channel = %q, want telegram", recent[0].Channel)
	}

	all, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent(0) returned error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Recent(0) returned %d entries, want 3", len(all))
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	testStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	defer store.Close()
	testStore(t, store)
}
