package journal

import "errors"

// Sentinel errors identifying journal and metadata failure modes (spec
// §3.2, §4.D).
var (
	ErrCorrupt          = errors.New("journal-corrupt")
	ErrSeqRegression    = errors.New("seq-regression")
	ErrUnknownType      = errors.New("journal-unknown-event-type")
	ErrMetadataConflict = errors.New("metadata-conflict")
)
