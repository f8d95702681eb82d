package models

// Status tracks a message through its delivery lifecycle. A message created
// by a local send starts as Pending and either advances to Sent once the
// server acknowledges it or ends as Failed. Inbound messages enter as
// Delivered. Read is reached only via mark-read; a status never regresses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Unconfirmed reports whether the message is still waiting on the server
// (optimistically inserted, not yet acknowledged or failed).
func (s Status) Unconfirmed() bool { return s == StatusPending }

// Message is a single chat message inside a conversation. ID is either a
// client temporary id (while Pending or Failed) or the server-assigned id.
// TS is nanoseconds; Seq breaks ties between messages sharing a timestamp
// and is assigned by the store at insertion.
type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Content      string `json:"content"`
	TS           int64  `json:"ts"`
	Seq          uint64 `json:"seq,omitempty"`
	Status       Status `json:"status"`
}

// Before reports whether m sorts strictly before other in display order.
// Order key is (TS, Seq).
func (m Message) Before(other Message) bool {
	if m.TS != other.TS {
		return m.TS < other.TS
	}
	return m.Seq < other.Seq
}
