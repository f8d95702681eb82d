// Package store keeps the authoritative ordered message log for every
// conversation, merges inbound deliveries with optimistic local sends and
// reconciles pending messages once the server acknowledges them. An
// optional pebble journal persists the log across restarts.
package store

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"chatcore/pkg/ids"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/pkg/models"
)

var (
	// ErrNotFound reports a reconcile or mark-read against a message the
	// store does not hold. This is a caller bug, not a recoverable state.
	ErrNotFound = errors.New("message not found")
	// ErrDuplicateID reports an append reusing a temporary id that is
	// still unreconciled in the same conversation.
	ErrDuplicateID = errors.New("duplicate message id")
)

// Config configures a Store.
type Config struct {
	// UserID is the current user; mark-read never touches their own
	// messages.
	UserID string
	// Journal, when non-nil, receives every accepted mutation and can
	// replay the log on the next start.
	Journal *Journal
}

// Store is safe for concurrent use. All mutations for a conversation are
// serialized behind one mutex, which keeps the ordered-log invariant even
// when transport callbacks and user actions overlap.
type Store struct {
	mu        sync.Mutex
	user      string
	journal   *Journal
	convs     map[string][]models.Message
	serverIDs map[string]map[string]struct{}
	pending   map[string]map[string]struct{}
	seq       uint64
	listeners []func(conversationID string)
}

// New returns an empty store for the given user.
func New(cfg Config) *Store {
	return &Store{
		user:      cfg.UserID,
		journal:   cfg.Journal,
		convs:     make(map[string][]models.Message),
		serverIDs: make(map[string]map[string]struct{}),
		pending:   make(map[string]map[string]struct{}),
	}
}

// OnChange registers a listener invoked with the conversation id after
// every accepted mutation. Register listeners during wiring, before the
// store sees traffic.
func (s *Store) OnChange(fn func(conversationID string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Append inserts a message into the conversation's log, keeping the log
// sorted by order key. Pending messages are tracked under their temporary
// id until reconciled or failed; reusing a live temporary id is rejected.
func (s *Store) Append(conversationID string, msg models.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("append: message id is empty")
	}
	s.mu.Lock()
	msg.Conversation = conversationID
	if msg.TS == 0 {
		msg.TS = time.Now().UTC().UnixNano()
	}
	if msg.Status == models.StatusPending {
		if _, ok := s.pending[conversationID][msg.ID]; ok {
			s.mu.Unlock()
			return fmt.Errorf("append %s: %w", msg.ID, ErrDuplicateID)
		}
		if s.pending[conversationID] == nil {
			s.pending[conversationID] = make(map[string]struct{})
		}
		s.pending[conversationID][msg.ID] = struct{}{}
	} else if !ids.IsTemp(msg.ID) {
		s.rememberServerID(conversationID, msg.ID)
	}
	msg.Seq = s.nextSeq()
	s.insert(conversationID, msg)
	s.record(msg)
	s.mu.Unlock()
	s.notify(conversationID)
	return nil
}

// Reconcile replaces the Pending message identified by tempID with its
// server-confirmed form. The confirmed message is re-inserted at the
// position its confirmed timestamp dictates, which may differ from the
// optimistic slot. Missing pending entries surface ErrNotFound.
func (s *Store) Reconcile(conversationID, tempID string, server models.Message) error {
	s.mu.Lock()
	if _, ok := s.pending[conversationID][tempID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("reconcile %s: %w", tempID, ErrNotFound)
	}
	idx := s.indexOf(conversationID, tempID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("reconcile %s: %w", tempID, ErrNotFound)
	}
	old := s.convs[conversationID][idx]
	s.removeAt(conversationID, idx)
	delete(s.pending[conversationID], tempID)
	s.supersede(old)

	if _, dup := s.serverIDs[conversationID][server.ID]; dup {
		// The confirmed message already arrived through the inbound
		// path; dropping the optimistic copy is all that is left.
		logger.Debug("reconcile_already_delivered", "conversation", conversationID, "id", server.ID)
		s.mu.Unlock()
		s.notify(conversationID)
		return nil
	}

	confirmed := server
	confirmed.Conversation = conversationID
	if confirmed.TS == 0 {
		confirmed.TS = old.TS
	}
	if confirmed.Content == "" {
		confirmed.Content = old.Content
	}
	if confirmed.Sender == "" {
		confirmed.Sender = old.Sender
	}
	if confirmed.Recipient == "" {
		confirmed.Recipient = old.Recipient
	}
	if confirmed.Status == "" || confirmed.Status == models.StatusPending {
		confirmed.Status = models.StatusSent
	}
	confirmed.Seq = s.nextSeq()
	s.insert(conversationID, confirmed)
	s.rememberServerID(conversationID, confirmed.ID)
	s.record(confirmed)
	s.mu.Unlock()
	s.notify(conversationID)
	metrics.MessagesReconciled.Inc()
	logger.Debug("message_reconciled", "conversation", conversationID, "temp_id", tempID, "id", confirmed.ID)
	return nil
}

// Fail marks the Pending message identified by tempID as Failed. The
// message keeps its temporary id and stays in the log so the presentation
// layer can offer a retry; Failed is terminal.
func (s *Store) Fail(conversationID, tempID string) error {
	s.mu.Lock()
	if _, ok := s.pending[conversationID][tempID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("fail %s: %w", tempID, ErrNotFound)
	}
	idx := s.indexOf(conversationID, tempID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("fail %s: %w", tempID, ErrNotFound)
	}
	delete(s.pending[conversationID], tempID)
	s.convs[conversationID][idx].Status = models.StatusFailed
	s.record(s.convs[conversationID][idx])
	s.mu.Unlock()
	s.notify(conversationID)
	metrics.SendFailures.Inc()
	logger.Info("message_send_failed", "conversation", conversationID, "temp_id", tempID)
	return nil
}

// IngestInbound appends a message received from the wire as Delivered.
// Redelivery of an already-stored server id is an idempotent no-op.
func (s *Store) IngestInbound(conversationID string, msg models.Message) error {
	if msg.ID == "" || ids.IsTemp(msg.ID) {
		return fmt.Errorf("ingest: invalid server message id %q", msg.ID)
	}
	s.mu.Lock()
	if _, dup := s.serverIDs[conversationID][msg.ID]; dup {
		s.mu.Unlock()
		metrics.DuplicateInbound.Inc()
		logger.Debug("inbound_duplicate_dropped", "conversation", conversationID, "id", msg.ID)
		return nil
	}
	msg.Conversation = conversationID
	msg.Status = models.StatusDelivered
	if msg.TS == 0 {
		msg.TS = time.Now().UTC().UnixNano()
	}
	msg.Seq = s.nextSeq()
	s.insert(conversationID, msg)
	s.rememberServerID(conversationID, msg.ID)
	s.record(msg)
	s.mu.Unlock()
	s.notify(conversationID)
	metrics.MessagesInbound.Inc()
	return nil
}

// MarkRead sets Read on every message whose order key is at or before the
// key of upToID and whose sender is not the current user. Idempotent;
// unknown upToID surfaces ErrNotFound.
func (s *Store) MarkRead(conversationID, upToID string) error {
	s.mu.Lock()
	idx := s.indexOf(conversationID, upToID)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("mark read %s: %w", upToID, ErrNotFound)
	}
	changed := false
	log := s.convs[conversationID]
	for i := 0; i <= idx; i++ {
		m := &log[i]
		if m.Sender == s.user || m.Status == models.StatusRead || m.Status == models.StatusFailed {
			continue
		}
		m.Status = models.StatusRead
		s.record(*m)
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify(conversationID)
	}
	return nil
}

// Messages returns a snapshot of the conversation's log in display order.
func (s *Store) Messages(conversationID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.convs[conversationID]))
	copy(out, s.convs[conversationID])
	return out
}

// Sequence returns a restartable iterator over a call-time snapshot of the
// conversation's log. It is finite and does not observe later mutations.
func (s *Store) Sequence(conversationID string) iter.Seq[models.Message] {
	snapshot := s.Messages(conversationID)
	return func(yield func(models.Message) bool) {
		for _, m := range snapshot {
			if !yield(m) {
				return
			}
		}
	}
}

// LastMessage returns the message with the greatest order key, if any.
func (s *Store) LastMessage(conversationID string) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.convs[conversationID]
	if len(log) == 0 {
		return models.Message{}, false
	}
	return log[len(log)-1], true
}

// UnreadCount counts messages not yet Read that were not sent by the
// current user.
func (s *Store) UnreadCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.convs[conversationID] {
		if m.Sender != s.user && m.Status != models.StatusRead {
			n++
		}
	}
	return n
}

// Conversations returns the ids of every conversation with stored
// messages.
func (s *Store) Conversations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.convs))
	for id := range s.convs {
		out = append(out, id)
	}
	return out
}

// --- internals; callers hold s.mu ---

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) rememberServerID(conversationID, id string) {
	if s.serverIDs[conversationID] == nil {
		s.serverIDs[conversationID] = make(map[string]struct{})
	}
	s.serverIDs[conversationID][id] = struct{}{}
}

// insert places msg so the log stays sorted by (TS, Seq). The common case
// is an append at the tail; late-arriving confirmations walk back to their
// slot.
func (s *Store) insert(conversationID string, msg models.Message) {
	log := s.convs[conversationID]
	i := len(log)
	for i > 0 && msg.Before(log[i-1]) {
		i--
	}
	log = append(log, models.Message{})
	copy(log[i+1:], log[i:])
	log[i] = msg
	s.convs[conversationID] = log
}

func (s *Store) removeAt(conversationID string, idx int) {
	log := s.convs[conversationID]
	s.convs[conversationID] = append(log[:idx], log[idx+1:]...)
}

func (s *Store) indexOf(conversationID, msgID string) int {
	for i, m := range s.convs[conversationID] {
		if m.ID == msgID {
			return i
		}
	}
	return -1
}

// record journals a message best-effort; a sick disk must not take the
// session down with it.
func (s *Store) record(msg models.Message) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(msg); err != nil {
		logger.Warn("journal_record_failed", "conversation", msg.Conversation, "id", msg.ID, "error", err)
	}
}

func (s *Store) supersede(msg models.Message) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Supersede(msg); err != nil {
		logger.Warn("journal_supersede_failed", "conversation", msg.Conversation, "id", msg.ID, "error", err)
	}
}

func (s *Store) notify(conversationID string) {
	s.mu.Lock()
	fns := make([]func(string), len(s.listeners))
	copy(fns, s.listeners)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(conversationID)
	}
}

// LoadJournal replays the configured journal into the store. It is meant
// to run once during startup, before listeners and traffic are attached.
func (s *Store) LoadJournal() error {
	if s.journal == nil {
		return nil
	}
	var n int
	err := s.journal.Replay(func(msg models.Message) {
		s.mu.Lock()
		if msg.Status == models.StatusPending {
			if s.pending[msg.Conversation] == nil {
				s.pending[msg.Conversation] = make(map[string]struct{})
			}
			s.pending[msg.Conversation][msg.ID] = struct{}{}
		} else if !ids.IsTemp(msg.ID) {
			s.rememberServerID(msg.Conversation, msg.ID)
		}
		if msg.Seq > s.seq {
			s.seq = msg.Seq
		}
		s.insert(msg.Conversation, msg)
		s.mu.Unlock()
		n++
	})
	if err != nil {
		return fmt.Errorf("journal replay: %w", err)
	}
	logger.Info("journal_replayed", "messages", n)
	return nil
}
