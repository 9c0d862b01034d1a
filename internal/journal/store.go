package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const fileName = "journal.jsonl"

// Store is the single writer for one run's journal.jsonl. It assigns
// strictly increasing sequence numbers and fsyncs after every append so a
// reader observing the file at any point sees a byte-identical prefix of
// what is eventually written (spec §3.2, §8 properties 1-2).
type Store struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	nextSeq int64
}

// Open opens (creating if necessary) the journal at runDir/journal.jsonl
// for append, replaying any existing lines to recover the next sequence
// number.
func Open(runDir string) (*Store, error) {
	path := runDir + string(os.PathSeparator) + fileName

	events, err := readAllAt(path)
	if err != nil {
		return nil, err
	}
	var lastSeq int64
	for _, e := range events {
		if e.Seq <= lastSeq {
			return nil, fmt.Errorf("%w: seq %d after %d in %s", ErrSeqRegression, e.Seq, lastSeq, path)
		}
		lastSeq = e.Seq
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	return &Store{file: f, path: path, nextSeq: lastSeq + 1}, nil
}

// Append assigns the next sequence number to evt, writes it as a single
// JSON line, and fsyncs before returning. evt.Seq and evt.Timestamp are
// set by Append; callers should leave them zero.
func (s *Store) Append(evt Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt.Seq = s.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return Event{}, fmt.Errorf("marshal journal event: %w", err)
	}
	line = append(line, '\n')

	if _, err := s.file.Write(line); err != nil {
		return Event{}, fmt.Errorf("append journal event: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return Event{}, fmt.Errorf("sync journal: %w", err)
	}
	s.nextSeq++
	return evt, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// Path returns the journal's file path.
func (s *Store) Path() string {
	return s.path
}

// ReadAll returns every event currently persisted in this store's
// journal, in sequence order.
func (s *Store) ReadAll() ([]Event, error) {
	return readAllAt(s.path)
}

// ReadAll opens and reads an entire journal.jsonl file at path without
// acquiring a writer, for use by collaborators (context builder,
// property tests) that only need to replay history.
func ReadAll(runDir string) ([]Event, error) {
	return readAllAt(runDir + string(os.PathSeparator) + fileName)
}

func readAllAt(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrCorrupt, path, lineNo, err)
		}
		if evt.Type == "" {
			return nil, fmt.Errorf("%w: %s line %d: missing type", ErrCorrupt, path, lineNo)
		}
		if !validType(evt.Type) {
			return nil, fmt.Errorf("%w: %s line %d: %q", ErrUnknownType, path, lineNo, evt.Type)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal %s: %w", path, err)
	}
	return events, nil
}

func validType(t Type) bool {
	switch t {
	case TypeEngineStart, TypeThought, TypeActionRequest, TypeActionResult,
		TypeHookAudit, TypeHumanInputRequest, TypeHumanInputReceived,
		TypeEngineEnd, TypeError, TypeSystemMessage:
		return true
	default:
		return false
	}
}
