package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swapEngine/internal/model"
)

// Entry kinds written to the JSONL journal.
const (
	KindReceipt = "receipt"
	KindTick    = "tick"
)

type jsonlEntry struct {
	Kind    string             `json:"kind"`
	Receipt *model.SwapReceipt `json:"receipt,omitempty"`
	Tick    *model.TickRecord  `json:"tick,omitempty"`
}

// JsonlJournal appends receipts and ticks to a JSONL file.
type JsonlJournal struct {
	path string
	mu   sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// PutReceipt appends a receipt line.
func (s *JsonlJournal) PutReceipt(_ context.Context, receipt model.SwapReceipt) error {
	return s.append(jsonlEntry{Kind: KindReceipt, Receipt: &receipt})
}

// PutTick appends a tick line.
func (s *JsonlJournal) PutTick(_ context.Context, tick model.TickRecord) error {
	return s.append(jsonlEntry{Kind: KindTick, Tick: &tick})
}

func (s *JsonlJournal) append(entry jsonlEntry) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", entry.Kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", entry.Kind, err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	return nil
}

// Receipts returns up to limit receipts, including those of trading ticks, newest first.
// A missing file yields none.
func (s *JsonlJournal) Receipts(ctx context.Context, limit int) ([]model.SwapReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var all []model.SwapReceipt
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var entry jsonlEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("journal line %d: %w", line, err)
		}
		switch {
		case entry.Kind == KindReceipt && entry.Receipt != nil:
			all = append(all, *entry.Receipt)
		case entry.Kind == KindTick && entry.Tick != nil && entry.Tick.Receipt != nil:
			all = append(all, *entry.Tick.Receipt)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	out := make([]model.SwapReceipt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}
