package context

import "errors"

// Sentinel errors identifying context-assembly failure modes (spec §4.E).
var ErrSourceFileMissing = errors.New("context-file-missing")
