package journal_log

import (
	"time"
	"unicode/utf8"

	fss "github.com/AnishMulay/vtfs/internal/filesystem_service"
	"github.com/AnishMulay/vtfs/internal/log_service"
)

const (
	DefaultCapacity   = 100
	MaxDescriptionLen = 64
)

// JournalLog is a fixed-size ring of audit entries. Transaction ids come from
// one counter that never goes backwards, so ids of overwritten entries are
// simply gone.
type JournalLog struct {
	entries []fss.JournalEntry
	index   int
	full    bool
	lastTxn uint64

	// legacy makes Begin consume an id for the transient start marker, so a
	// create uses two ids while an unlink uses one.
	legacy bool
	ls     log_service.LogService
}

func New(capacity int, legacyNumbering bool, ls log_service.LogService) *JournalLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &JournalLog{
		entries: make([]fss.JournalEntry, capacity),
		legacy:  legacyNumbering,
		ls:      ls,
	}
}

// Record appends an entry, overwriting the oldest one when the ring is full,
// and returns its transaction id. It never fails.
func (j *JournalLog) Record(inodeID uint64, op fss.JournalOp, description string) uint64 {
	description = truncate(description, MaxDescriptionLen)

	if j.full && j.ls != nil {
		lost := j.entries[j.index]
		j.ls.Debug(log_service.LogEvent{
			Message:  "Journal slot overwritten",
			Metadata: map[string]any{"slot": j.index, "lostTxn": lost.TransactionID},
		})
	}

	j.lastTxn++
	j.entries[j.index] = fss.JournalEntry{
		TransactionID: j.lastTxn,
		InodeID:       inodeID,
		Op:            op,
		Description:   description,
		Timestamp:     time.Now(),
	}

	j.index++
	if j.index == len(j.entries) {
		j.index = 0
		j.full = true
	}
	return j.lastTxn
}

// Begin opens a create transaction. The marker is never stored; with legacy
// numbering it still consumes a transaction id.
func (j *JournalLog) Begin() {
	if j.legacy {
		j.lastTxn++
	}
}

// truncate cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Entries returns the retained entries, oldest first.
func (j *JournalLog) Entries() []fss.JournalEntry {
	if !j.full {
		out := make([]fss.JournalEntry, j.index)
		copy(out, j.entries[:j.index])
		return out
	}

	out := make([]fss.JournalEntry, 0, len(j.entries))
	out = append(out, j.entries[j.index:]...)
	out = append(out, j.entries[:j.index]...)
	return out
}

func (j *JournalLog) Len() int {
	if j.full {
		return len(j.entries)
	}
	return j.index
}

func (j *JournalLog) Capacity() int {
	return len(j.entries)
}

func (j *JournalLog) LastTxnID() uint64 {
	return j.lastTxn
}
