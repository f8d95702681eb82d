package store

import (
	"errors"
	"testing"

	"chatcore/pkg/models"
)

func msg(id, sender string, ts int64, status models.Status) models.Message {
	return models.Message{ID: id, Sender: sender, Content: "body " + id, TS: ts, Status: status}
}

func idsOf(ms []models.Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestAppendKeepsTimestampOrder(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("srv-2", "alice", 200, models.StatusDelivered)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append("c1", msg("srv-1", "alice", 100, models.StatusDelivered)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append("c1", msg("srv-3", "alice", 300, models.StatusDelivered)); err != nil {
		t.Fatalf("append: %v", err)
	}
	got := idsOf(s.Messages("c1"))
	want := []string{"srv-1", "srv-2", "srv-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch: got %v want %v", got, want)
		}
	}
}

func TestEqualTimestampsKeepArrivalOrder(t *testing.T) {
	s := New(Config{UserID: "me"})
	for _, id := range []string{"srv-a", "srv-b", "srv-c"} {
		if err := s.Append("c1", msg(id, "alice", 500, models.StatusDelivered)); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	got := idsOf(s.Messages("c1"))
	want := []string{"srv-a", "srv-b", "srv-c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie-break broke arrival order: got %v", got)
		}
	}
}

func TestAppendRejectsLivePendingID(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("tmp-1", "me", 100, models.StatusPending)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err := s.Append("c1", msg("tmp-1", "me", 200, models.StatusPending))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("want ErrDuplicateID, got %v", err)
	}
}

func TestReconcileReplacesPending(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("srv-1", "alice", 100, models.StatusDelivered)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append("c1", msg("tmp-1", "me", 200, models.StatusPending)); err != nil {
		t.Fatalf("append pending: %v", err)
	}
	server := models.Message{ID: "srv-2", Sender: "me", Content: "body tmp-1", TS: 250}
	if err := s.Reconcile("c1", "tmp-1", server); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	log := s.Messages("c1")
	if len(log) != 2 {
		t.Fatalf("want 2 messages, got %d", len(log))
	}
	got := log[1]
	if got.ID != "srv-2" || got.Status != models.StatusSent || got.TS != 250 {
		t.Fatalf("confirmed message wrong: %+v", got)
	}
	for _, m := range log {
		if m.ID == "tmp-1" {
			t.Fatalf("optimistic copy survived reconcile: %v", idsOf(log))
		}
	}
}

// A confirmed timestamp earlier than a message that arrived in the
// meantime must move the reconciled message back to its true slot.
func TestReconcileRepositionsByConfirmedTimestamp(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("tmp-1", "me", 300, models.StatusPending)); err != nil {
		t.Fatalf("append pending: %v", err)
	}
	if err := s.IngestInbound("c1", msg("srv-9", "alice", 200, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Reconcile("c1", "tmp-1", models.Message{ID: "srv-10", TS: 100}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	got := idsOf(s.Messages("c1"))
	want := []string{"srv-10", "srv-9"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestReconcileUnknownTempID(t *testing.T) {
	s := New(Config{UserID: "me"})
	err := s.Reconcile("c1", "tmp-nope", models.Message{ID: "srv-1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

// When the confirmed message already arrived through the inbound path,
// reconcile drops the optimistic copy instead of duplicating it.
func TestReconcileAfterInboundOfSameMessage(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("tmp-1", "me", 100, models.StatusPending)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.IngestInbound("c1", models.Message{ID: "srv-1", Sender: "me", Content: "hi", TS: 120}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Reconcile("c1", "tmp-1", models.Message{ID: "srv-1", TS: 120}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	log := s.Messages("c1")
	if len(log) != 1 || log[0].ID != "srv-1" {
		t.Fatalf("want single srv-1, got %v", idsOf(log))
	}
}

func TestFailIsTerminal(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("tmp-1", "me", 100, models.StatusPending)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Fail("c1", "tmp-1"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	log := s.Messages("c1")
	if len(log) != 1 || log[0].Status != models.StatusFailed {
		t.Fatalf("want failed message in log, got %+v", log)
	}
	// a late ack for a failed message has nothing to reconcile
	if err := s.Reconcile("c1", "tmp-1", models.Message{ID: "srv-1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound after fail, got %v", err)
	}
}

func TestIngestInboundDeduplicates(t *testing.T) {
	s := New(Config{UserID: "me"})
	in := models.Message{ID: "srv-1", Sender: "alice", Content: "hello", TS: 100}
	if err := s.IngestInbound("c1", in); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if err := s.IngestInbound("c1", in); err != nil {
		t.Fatalf("redelivery must be a no-op, got %v", err)
	}
	if got := len(s.Messages("c1")); got != 1 {
		t.Fatalf("want 1 message after redelivery, got %d", got)
	}
}

func TestIngestInboundRejectsTempID(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.IngestInbound("c1", models.Message{ID: "tmp-1", Sender: "alice"}); err == nil {
		t.Fatal("want error for temporary id on inbound")
	}
	if err := s.IngestInbound("c1", models.Message{Sender: "alice"}); err == nil {
		t.Fatal("want error for empty id on inbound")
	}
}

func TestIngestInboundForcesDelivered(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.IngestInbound("c1", models.Message{ID: "srv-1", Sender: "alice", Status: models.StatusRead, TS: 100}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if got := s.Messages("c1")[0].Status; got != models.StatusDelivered {
		t.Fatalf("inbound status must be delivered, got %s", got)
	}
}

func TestMarkRead(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.IngestInbound("c1", msg("srv-1", "alice", 100, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Append("c1", models.Message{ID: "srv-2", Sender: "me", Content: "mine", TS: 150, Status: models.StatusSent}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.IngestInbound("c1", msg("srv-3", "alice", 200, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.IngestInbound("c1", msg("srv-4", "alice", 300, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if err := s.MarkRead("c1", "srv-3"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	log := s.Messages("c1")
	if log[0].Status != models.StatusRead || log[2].Status != models.StatusRead {
		t.Fatalf("foreign messages up to srv-3 must be read: %+v", log)
	}
	if log[1].Status != models.StatusSent {
		t.Fatalf("own message must never be marked read: %+v", log[1])
	}
	if log[3].Status != models.StatusDelivered {
		t.Fatalf("message after the boundary must stay delivered: %+v", log[3])
	}
	if got := s.UnreadCount("c1"); got != 1 {
		t.Fatalf("want 1 unread, got %d", got)
	}

	// idempotent
	if err := s.MarkRead("c1", "srv-3"); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if got := s.UnreadCount("c1"); got != 1 {
		t.Fatalf("unread changed on repeat mark read: %d", got)
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.MarkRead("c1", "srv-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMarkReadSkipsFailed(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.Append("c1", msg("tmp-1", "alice", 100, models.StatusPending)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Fail("c1", "tmp-1"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := s.IngestInbound("c1", msg("srv-1", "alice", 200, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.MarkRead("c1", "srv-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if got := s.Messages("c1")[0].Status; got != models.StatusFailed {
		t.Fatalf("failed is terminal, got %s", got)
	}
}

func TestSequenceIsSnapshot(t *testing.T) {
	s := New(Config{UserID: "me"})
	if err := s.IngestInbound("c1", msg("srv-1", "alice", 100, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	seq := s.Sequence("c1")
	if err := s.IngestInbound("c1", msg("srv-2", "alice", 200, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	n := 0
	for range seq {
		n++
	}
	if n != 1 {
		t.Fatalf("snapshot must not observe later mutations, got %d", n)
	}
	// restartable
	n = 0
	for range seq {
		n++
	}
	if n != 1 {
		t.Fatalf("second pass over the same sequence, got %d", n)
	}
}

func TestOnChangeNotifies(t *testing.T) {
	s := New(Config{UserID: "me"})
	var seen []string
	s.OnChange(func(id string) { seen = append(seen, id) })
	if err := s.IngestInbound("c1", msg("srv-1", "alice", 100, "")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.MarkRead("c1", "srv-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// repeat mark-read changes nothing, so no notification
	if err := s.MarkRead("c1", "srv-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(seen) != 2 || seen[0] != "c1" || seen[1] != "c1" {
		t.Fatalf("want two notifications for c1, got %v", seen)
	}
}
