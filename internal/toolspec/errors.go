package toolspec

import "errors"

// Sentinel errors identifying tool-expansion failure modes (spec 4.C / 3.2).
var (
	ErrUnsafeMetachar        = errors.New("unsafe-shell-metachar")
	ErrParameterModeConflict = errors.New("parameter-mode-conflict")
	ErrUndeclaredParameter   = errors.New("undeclared-parameter")
	ErrMultipleStdin         = errors.New("multiple-stdin-parameters")
	ErrRawInExecMode         = errors.New("raw-forbidden-in-exec")
	ErrOptionMissingName     = errors.New("option-missing-name")
	ErrInvalidSyntax         = errors.New("invalid-tool-syntax")
)
