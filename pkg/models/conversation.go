package models

// Summary is the directory's derived view of one conversation: the
// participant, the most recent message, the unread counter and presence.
// LastTS/LastSeq mirror the last message's order key so callers can sort
// summaries by recency without consulting the store.
type Summary struct {
	ID          string `json:"id"`
	Participant User   `json:"participant"`
	LastID      string `json:"last_id,omitempty"`
	LastBody    string `json:"last_body,omitempty"`
	LastTS      int64  `json:"last_ts,omitempty"`
	LastSeq     uint64 `json:"last_seq,omitempty"`
	Unread      int    `json:"unread"`
	Online      bool   `json:"online"`
}

// MoreRecent reports whether s has later activity than other. Summaries
// without any message sort last.
func (s Summary) MoreRecent(other Summary) bool {
	if s.LastTS != other.LastTS {
		return s.LastTS > other.LastTS
	}
	return s.LastSeq > other.LastSeq
}
