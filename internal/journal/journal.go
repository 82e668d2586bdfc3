// Package journal appends newline-delimited JSON records of transaction
// activity to a file. It is an audit trail only: nothing is ever read back,
// so process state still lives entirely in memory.
package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is one journal line.
type Record struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	URL         string `json:"url,omitempty"`
	Value       string `json:"value,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	Err         string `json:"err,omitempty"`
}

// Journal appends Records to a file. Safe for concurrent use. The nil
// Journal is valid and discards everything, so callers never branch on
// whether journaling is enabled.
type Journal struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// Open returns a journal appending to path, or nil when path is blank.
func Open(path string) *Journal {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Journal{path: path}
}

// Write appends one record, stamping it with the current wall clock.
func (j *Journal) Write(rec Record) error {
	if j == nil {
		return nil
	}
	if rec.TsMs == 0 {
		rec.TsMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.openLocked(); err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) openLocked() error {
	if j.file != nil {
		return nil
	}
	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.file = f
	j.w = bufio.NewWriter(f)
	return nil
}

// Close flushes buffered records and closes the file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var firstErr error
	if j.w != nil {
		if err := j.w.Flush(); err != nil {
			firstErr = err
		}
	}
	if j.file != nil {
		if err := j.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	j.w = nil
	j.file = nil
	return firstErr
}
