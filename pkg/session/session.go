// Package session is the single mutation point for user-driven chat
// actions. The controller owns the active-conversation state, turns sends
// into optimistic store inserts and routes transport callbacks (acks,
// failures, inbound messages, presence) into the store and directory.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chatcore/pkg/directory"
	"chatcore/pkg/ids"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
	"chatcore/pkg/validation"
)

// ErrEmptyContent rejects a send whose content is blank after trimming.
var ErrEmptyContent = errors.New("message content is empty")

// OutboundMessage is the payload handed to the transport collaborator for
// transmission. TempID lets the transport correlate the eventual ack or
// failure back to the optimistic insert.
type OutboundMessage struct {
	Conversation string `json:"conversation"`
	TempID       string `json:"temp_id"`
	Recipient    string `json:"recipient"`
	Content      string `json:"content"`
}

// Outbound is implemented by the transport collaborator. Send must not
// block on network confirmation; the result arrives later through
// HandleSendAck or HandleSendFailed.
type Outbound interface {
	Send(OutboundMessage) error
}

// Config wires a Controller. UserID is the identity context: set once at
// construction, never read from ambient state.
type Config struct {
	UserID    string
	Store     *store.Store
	Directory *directory.Directory
	Outbound  Outbound
}

// Controller mediates user actions into store and directory mutations.
// inflight maps each unresolved temporary id to its conversation so acks
// and failures need only the temporary id.
type Controller struct {
	mu       sync.Mutex
	user     string
	active   string
	inflight map[string]string
	store    *store.Store
	dir      *directory.Directory
	outbound Outbound
}

// New returns a controller for the given identity.
func New(cfg Config) *Controller {
	return &Controller{
		user:     cfg.UserID,
		inflight: make(map[string]string),
		store:    cfg.Store,
		dir:      cfg.Directory,
		outbound: cfg.Outbound,
	}
}

// SetOutbound installs the transport collaborator. Wiring-time only: the
// transport needs the controller as its event sink before it can exist,
// so the outbound side is attached after dialing.
func (c *Controller) SetOutbound(out Outbound) {
	c.mu.Lock()
	c.outbound = out
	c.mu.Unlock()
}

// Select makes the conversation active and marks everything in it read —
// viewing a conversation reads it. Passing the empty string deselects
// without any mark-read. The mark-read-on-select policy lives only here
// so a transport-defined read-receipt policy could replace it.
func (c *Controller) Select(conversationID string) error {
	if conversationID == "" {
		c.mu.Lock()
		c.active = ""
		c.mu.Unlock()
		return nil
	}
	if _, ok := c.dir.Summary(conversationID); !ok {
		return fmt.Errorf("select %s: %w", conversationID, directory.ErrUnknownConversation)
	}
	c.mu.Lock()
	c.active = conversationID
	c.mu.Unlock()
	if last, ok := c.store.LastMessage(conversationID); ok {
		if err := c.store.MarkRead(conversationID, last.ID); err != nil {
			return fmt.Errorf("select %s: %w", conversationID, err)
		}
	}
	logger.Debug("conversation_selected", "conversation", conversationID)
	return nil
}

// Active returns the currently selected conversation id, or "".
func (c *Controller) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Send validates content, appends a Pending message under a fresh
// temporary id and hands the payload to the transport. It returns the
// temporary id immediately; confirmation or failure arrives later as a
// separate callback.
func (c *Controller) Send(conversationID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("send: %w", ErrEmptyContent)
	}
	if err := validation.Content(content); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	participant, err := c.dir.Participant(conversationID)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	msg := models.Message{
		ID:        ids.NewTempID(),
		Sender:    c.user,
		Recipient: participant.ID,
		Content:   content,
		TS:        time.Now().UTC().UnixNano(),
		Status:    models.StatusPending,
	}
	if err := c.store.Append(conversationID, msg); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	c.mu.Lock()
	c.inflight[msg.ID] = conversationID
	outbound := c.outbound
	c.mu.Unlock()
	metrics.MessagesSent.Inc()
	if outbound != nil {
		out := OutboundMessage{
			Conversation: conversationID,
			TempID:       msg.ID,
			Recipient:    participant.ID,
			Content:      content,
		}
		if err := outbound.Send(out); err != nil {
			// keep the optimistic insert; the message just fails fast
			logger.Warn("outbound_send_failed", "conversation", conversationID, "temp_id", msg.ID, "error", err)
			if ferr := c.HandleSendFailed(msg.ID); ferr != nil {
				logger.Error("fail_after_outbound_error", "temp_id", msg.ID, "error", ferr)
			}
		}
	}
	return msg.ID, nil
}

// resolve returns and forgets the conversation an unresolved temporary id
// belongs to, falling back to the hint when the id is unknown (e.g. after
// a restart that replayed the journal).
func (c *Controller) resolve(tempID, hint string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv, ok := c.inflight[tempID]; ok {
		delete(c.inflight, tempID)
		return conv, nil
	}
	if hint != "" {
		return hint, nil
	}
	return "", fmt.Errorf("temp id %s: %w", tempID, store.ErrNotFound)
}

// HandleSendAck reconciles the Pending message with its server-confirmed
// form. Acks apply even when the user has since left the conversation;
// the state is conversation-keyed, not focus-keyed.
func (c *Controller) HandleSendAck(tempID string, server models.Message) error {
	conv, err := c.resolve(tempID, server.Conversation)
	if err != nil {
		return err
	}
	return c.store.Reconcile(conv, tempID, server)
}

// HandleSendFailed marks the Pending message Failed. The message stays in
// the log under its temporary id so the presentation layer can offer a
// retry (a retry is a fresh Send).
func (c *Controller) HandleSendFailed(tempID string) error {
	conv, err := c.resolve(tempID, "")
	if err != nil {
		return err
	}
	return c.store.Fail(conv, tempID)
}

// HandleInbound ingests a message delivered by the transport. If the
// conversation is currently on screen the message is immediately read.
func (c *Controller) HandleInbound(conversationID string, msg models.Message) error {
	if err := c.store.IngestInbound(conversationID, msg); err != nil {
		return err
	}
	if c.Active() == conversationID {
		if err := c.store.MarkRead(conversationID, msg.ID); err != nil {
			return err
		}
	}
	return nil
}

// HandlePresence forwards a presence event to the directory (which also
// records it in the tracker).
func (c *Controller) HandlePresence(userID string, online bool) {
	c.dir.OnPresenceChanged(userID, online)
}
