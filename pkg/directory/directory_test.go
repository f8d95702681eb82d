package directory

import (
	"errors"
	"testing"

	"chatcore/pkg/models"
	"chatcore/pkg/presence"
	"chatcore/pkg/store"
)

func newFixture(t *testing.T) (*store.Store, *presence.Tracker, *Directory) {
	t.Helper()
	st := store.New(store.Config{UserID: "me"})
	tr := presence.NewTracker()
	d := New(Config{UserID: "me", Store: st, Presence: tr})
	d.Attach()
	return st, tr, d
}

func TestUpsertReturnsStableID(t *testing.T) {
	_, _, d := newFixture(t)
	alice := models.User{ID: "u-alice", Username: "alice"}
	id1, err := d.Upsert(alice)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	id2, err := d.Upsert(alice)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("same participant must map to one conversation: %s != %s", id1, id2)
	}
	if got := len(d.List("")); got != 1 {
		t.Fatalf("want 1 conversation, got %d", got)
	}
}

func TestUpsertRefreshesParticipantRecord(t *testing.T) {
	_, _, d := newFixture(t)
	id, err := d.Upsert(models.User{ID: "u-alice", Username: "alice"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := d.Upsert(models.User{ID: "u-alice", Username: "alice", FirstName: "Alice", LastName: "Liddell"}); err != nil {
		t.Fatalf("refresh upsert: %v", err)
	}
	p, err := d.Participant(id)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if p.FirstName != "Alice" || p.LastName != "Liddell" {
		t.Fatalf("names not refreshed: %+v", p)
	}
}

func TestUpsertRejectsSelf(t *testing.T) {
	_, _, d := newFixture(t)
	if _, err := d.Upsert(models.User{ID: "me"}); !errors.Is(err, ErrSelfConversation) {
		t.Fatalf("want ErrSelfConversation, got %v", err)
	}
}

func TestSummaryTracksStore(t *testing.T) {
	st, _, d := newFixture(t)
	id, err := d.Upsert(models.User{ID: "u-alice", Username: "alice"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.IngestInbound(id, models.Message{ID: "srv-1", Sender: "u-alice", Content: "hi", TS: 100}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := st.IngestInbound(id, models.Message{ID: "srv-2", Sender: "u-alice", Content: "there", TS: 200}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	sm, ok := d.Summary(id)
	if !ok {
		t.Fatal("summary missing")
	}
	if sm.LastID != "srv-2" || sm.LastBody != "there" || sm.Unread != 2 {
		t.Fatalf("summary not derived from store: %+v", sm)
	}

	if err := st.MarkRead(id, "srv-2"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	sm, _ = d.Summary(id)
	if sm.Unread != 0 {
		t.Fatalf("unread must drop to 0 after mark read, got %d", sm.Unread)
	}
}

func TestInboundFromUnknownSenderCreatesConversation(t *testing.T) {
	st, _, d := newFixture(t)
	if err := st.IngestInbound("conv-x", models.Message{ID: "srv-1", Sender: "u-carol", Content: "hello", TS: 100}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	sm, ok := d.Summary("conv-x")
	if !ok {
		t.Fatal("conversation not discovered from inbound message")
	}
	if sm.Participant.ID != "u-carol" || sm.Unread != 1 {
		t.Fatalf("discovered summary wrong: %+v", sm)
	}

	// a later upsert for the same sender reuses the discovered conversation
	id, err := d.Upsert(models.User{ID: "u-carol", Username: "carol"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if id != "conv-x" {
		t.Fatalf("want discovered conversation reused, got %s", id)
	}
}

func TestPresenceMirroredOntoSummaries(t *testing.T) {
	_, tr, d := newFixture(t)
	id, err := d.Upsert(models.User{ID: "u-alice", Username: "alice"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d.OnPresenceChanged("u-alice", true)
	sm, _ := d.Summary(id)
	if !sm.Online {
		t.Fatal("summary must reflect online presence")
	}
	if !tr.IsOnline("u-alice") {
		t.Fatal("tracker must record presence")
	}
	d.OnPresenceChanged("u-alice", false)
	sm, _ = d.Summary(id)
	if sm.Online {
		t.Fatal("summary must reflect offline presence")
	}
	// presence for a user with no conversation is tracked, not an error
	d.OnPresenceChanged("u-nobody", true)
	if !tr.IsOnline("u-nobody") {
		t.Fatal("tracker must record presence for unknown users")
	}
}

func TestListOrdersByRecentActivity(t *testing.T) {
	st, _, d := newFixture(t)
	a, _ := d.Upsert(models.User{ID: "u-alice", Username: "alice"})
	b, _ := d.Upsert(models.User{ID: "u-bob", Username: "bob"})
	if err := st.IngestInbound(a, models.Message{ID: "srv-1", Sender: "u-alice", Content: "old", TS: 100}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := st.IngestInbound(b, models.Message{ID: "srv-2", Sender: "u-bob", Content: "new", TS: 200}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	got := d.List("")
	if len(got) != 2 || got[0].ID != b || got[1].ID != a {
		t.Fatalf("want most recent first, got %+v", got)
	}
}

func TestListFiltersByName(t *testing.T) {
	_, _, d := newFixture(t)
	if _, err := d.Upsert(models.User{ID: "u-alice", Username: "wonder", FirstName: "Alice", LastName: "Liddell"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := d.Upsert(models.User{ID: "u-bob", Username: "builder", FirstName: "Bob", LastName: "Mason"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	for _, q := range []string{"ali", "LIDD", "wonder"} {
		got := d.List(q)
		if len(got) != 1 || got[0].Participant.ID != "u-alice" {
			t.Fatalf("filter %q: got %+v", q, got)
		}
	}
	if got := d.List("zzz"); len(got) != 0 {
		t.Fatalf("want empty result, got %+v", got)
	}
	if got := d.List(""); len(got) != 2 {
		t.Fatalf("empty filter must match all, got %d", len(got))
	}
}

func TestParticipantUnknownConversation(t *testing.T) {
	_, _, d := newFixture(t)
	if _, err := d.Participant("conv-404"); !errors.Is(err, ErrUnknownConversation) {
		t.Fatalf("want ErrUnknownConversation, got %v", err)
	}
}
