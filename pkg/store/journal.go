package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"chatcore/pkg/logger"
	"chatcore/pkg/models"

	"github.com/cockroachdb/pebble"
)

// Journal is an append-style pebble log of the message store. Each message
// lives under a key ordered by its (timestamp, seq) key, so replay yields
// the display order for free. Reconciled pending messages leave a stale
// marker behind instead of being deleted inline; the compaction sweep
// removes marker and entry together.
type Journal struct {
	db       *pebble.DB
	path     string
	maxValue int64
}

// OpenJournal opens (or creates) the journal at path. maxValue bounds the
// size of a single journaled entry; zero means no bound.
func OpenJournal(path string, maxValue int64) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	logger.Info("journal_opened", "path", path)
	return &Journal{db: db, path: path, maxValue: maxValue}, nil
}

// Close closes the underlying pebble DB.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	if err == nil {
		logger.Info("journal_closed", "path", j.path)
	}
	return err
}

// Ready reports whether the journal is open.
func (j *Journal) Ready() bool { return j != nil && j.db != nil }

func msgKey(m models.Message) []byte {
	return []byte(fmt.Sprintf("conv:%s:msg:%020d-%012d", m.Conversation, m.TS, m.Seq))
}

func staleKey(k []byte) []byte {
	return append([]byte("stale:"), k...)
}

// Record writes (or rewrites) the message under its order key. Status
// changes reuse the key, so the journal always holds the latest form.
func (j *Journal) Record(m models.Message) error {
	if !j.Ready() {
		return fmt.Errorf("journal not opened")
	}
	v, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if j.maxValue > 0 && int64(len(v)) > j.maxValue {
		return fmt.Errorf("message %s exceeds journal value limit (%d bytes)", m.ID, len(v))
	}
	return j.db.Set(msgKey(m), v, pebble.Sync)
}

// Supersede marks the message's journal entry as replaced by a confirmed
// version stored under a different key.
func (j *Journal) Supersede(m models.Message) error {
	if !j.Ready() {
		return fmt.Errorf("journal not opened")
	}
	return j.db.Set(staleKey(msgKey(m)), nil, pebble.Sync)
}

// Replay invokes fn for every live journal entry in key order. Entries
// with a stale marker are skipped.
func (j *Journal) Replay(fn func(models.Message)) error {
	if !j.Ready() {
		return fmt.Errorf("journal not opened")
	}
	stale := make(map[string]struct{})
	iter, err := j.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	prefix := []byte("stale:")
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		stale[string(iter.Key()[len(prefix):])] = struct{}{}
	}
	if err := iter.Close(); err != nil {
		return err
	}

	iter, err = j.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	prefix = []byte("conv:")
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if _, ok := stale[string(iter.Key())]; ok {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("journal_entry_invalid", "key", string(iter.Key()), "error", err)
			continue
		}
		fn(m)
	}
	return iter.Error()
}

// CompactStale deletes every stale marker together with the entry it
// points at and returns how many entries were removed.
func (j *Journal) CompactStale() (int, error) {
	if !j.Ready() {
		return 0, fmt.Errorf("journal not opened")
	}
	iter, err := j.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	prefix := []byte("stale:")
	var markers [][]byte
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		markers = append(markers, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	removed := 0
	for _, marker := range markers {
		target := marker[len(prefix):]
		if err := j.db.Delete(target, pebble.Sync); err != nil {
			return removed, err
		}
		if err := j.db.Delete(marker, pebble.Sync); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
