// Package directory maintains the set of conversation summaries and keeps
// them consistent with the message store and the presence tracker. It is
// the lookup path from a participant to their conversation: one
// conversation per participant, created on first contact.
package directory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"chatcore/pkg/ids"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/pkg/models"
	"chatcore/pkg/presence"
	"chatcore/pkg/store"
)

var (
	// ErrSelfConversation rejects a conversation with the current user.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
	// ErrUnknownConversation reports a lookup for a conversation id the
	// directory has never seen.
	ErrUnknownConversation = errors.New("unknown conversation")
)

// Config configures a Directory.
type Config struct {
	UserID   string
	Store    *store.Store
	Presence *presence.Tracker
}

// Directory derives a summary per conversation from the store and the
// presence tracker. Subscribe it to the store with Attach during wiring.
type Directory struct {
	mu            sync.Mutex
	user          string
	store         *store.Store
	presence      *presence.Tracker
	byParticipant map[string]string
	summaries     map[string]models.Summary
}

// New returns a directory for the given user.
func New(cfg Config) *Directory {
	return &Directory{
		user:          cfg.UserID,
		store:         cfg.Store,
		presence:      cfg.Presence,
		byParticipant: make(map[string]string),
		summaries:     make(map[string]models.Summary),
	}
}

// Attach subscribes the directory to store change notifications and
// builds summaries for any conversations already present (journal
// replay). Call once during wiring.
func (d *Directory) Attach() {
	d.store.OnChange(d.OnStoreChanged)
	for _, id := range d.store.Conversations() {
		d.OnStoreChanged(id)
	}
}

// Upsert returns the conversation id for the participant, creating the
// conversation on first contact. Calling it again for the same
// participant returns the same id and refreshes the stored User record,
// so a later lookup through the user-search collaborator can fill in
// names the first contact lacked.
func (d *Directory) Upsert(participant models.User) (string, error) {
	if participant.ID == "" {
		return "", fmt.Errorf("upsert: participant id is empty")
	}
	if participant.ID == d.user {
		return "", fmt.Errorf("upsert %s: %w", participant.ID, ErrSelfConversation)
	}
	d.mu.Lock()
	id, ok := d.byParticipant[participant.ID]
	if !ok {
		id = ids.NewConversationID()
		d.byParticipant[participant.ID] = id
		d.summaries[id] = models.Summary{
			ID:          id,
			Participant: participant,
			Online:      d.presence.IsOnline(participant.ID),
		}
		logger.Info("conversation_created", "conversation", id, "participant", participant.ID)
	} else {
		sm := d.summaries[id]
		sm.Participant = participant
		d.summaries[id] = sm
	}
	d.mu.Unlock()
	d.recompute(id)
	return id, nil
}

// OnStoreChanged recomputes the last message and unread count for the
// conversation. A change for a conversation the directory has never seen
// (inbound message from a new contact restored from the journal, or a
// first message racing the search flow) creates a summary with a bare
// participant record carrying only the sender id.
func (d *Directory) OnStoreChanged(conversationID string) {
	d.mu.Lock()
	if _, ok := d.summaries[conversationID]; !ok {
		participant := models.User{}
		if last, ok := d.lastForeignSender(conversationID); ok {
			participant = models.User{ID: last}
		}
		if participant.ID == "" {
			// nothing to key the conversation on yet
			d.mu.Unlock()
			return
		}
		d.byParticipant[participant.ID] = conversationID
		d.summaries[conversationID] = models.Summary{
			ID:          conversationID,
			Participant: participant,
			Online:      d.presence.IsOnline(participant.ID),
		}
		logger.Info("conversation_discovered", "conversation", conversationID, "participant", participant.ID)
	}
	d.mu.Unlock()
	d.recompute(conversationID)
}

// lastForeignSender finds the counterparty id from the stored log. Caller
// holds d.mu; the store has its own lock.
func (d *Directory) lastForeignSender(conversationID string) (string, bool) {
	for _, m := range d.store.Messages(conversationID) {
		if m.Sender != d.user {
			return m.Sender, true
		}
		if m.Recipient != "" && m.Recipient != d.user {
			return m.Recipient, true
		}
	}
	return "", false
}

// OnPresenceChanged records the presence event and mirrors it onto every
// conversation whose participant is userID.
func (d *Directory) OnPresenceChanged(userID string, online bool) {
	d.presence.SetOnline(userID, online)
	d.mu.Lock()
	for id, sm := range d.summaries {
		if sm.Participant.ID == userID {
			sm.Online = online
			d.summaries[id] = sm
		}
	}
	d.mu.Unlock()
}

// Summary returns the current summary for the conversation.
func (d *Directory) Summary(conversationID string) (models.Summary, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sm, ok := d.summaries[conversationID]
	return sm, ok
}

// Participant returns the User on the other side of the conversation.
func (d *Directory) Participant(conversationID string) (models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sm, ok := d.summaries[conversationID]
	if !ok {
		return models.User{}, fmt.Errorf("participant %s: %w", conversationID, ErrUnknownConversation)
	}
	return sm.Participant, nil
}

// List returns conversation summaries ordered by most-recent activity,
// optionally filtered by a case-insensitive substring match on the
// participant's username or names. Safe to call repeatedly; it never
// mutates state.
func (d *Directory) List(filter string) []models.Summary {
	d.mu.Lock()
	out := make([]models.Summary, 0, len(d.summaries))
	for _, sm := range d.summaries {
		if sm.Participant.Matches(filter) {
			out = append(out, sm)
		}
	}
	d.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].MoreRecent(out[j]) })
	return out
}

// recompute rebuilds the derived fields of one summary from the store and
// refreshes the total-unread gauge.
func (d *Directory) recompute(conversationID string) {
	last, hasLast := d.store.LastMessage(conversationID)
	unread := d.store.UnreadCount(conversationID)

	d.mu.Lock()
	sm, ok := d.summaries[conversationID]
	if !ok {
		d.mu.Unlock()
		return
	}
	if hasLast {
		sm.LastID = last.ID
		sm.LastBody = last.Content
		sm.LastTS = last.TS
		sm.LastSeq = last.Seq
	}
	sm.Unread = unread
	sm.Online = d.presence.IsOnline(sm.Participant.ID)
	d.summaries[conversationID] = sm

	total := 0
	for _, s := range d.summaries {
		total += s.Unread
	}
	d.mu.Unlock()
	metrics.UnreadMessages.Set(float64(total))
}
