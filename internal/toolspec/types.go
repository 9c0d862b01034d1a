// Package toolspec expands a declarative tool definition (exec:, shell:,
// or command:, plus an optional explicit parameters: block) into the
// normalized form the tool executor runs: a static argv_template
// interleaved with positional parameter placeholders.
package toolspec

// Syntax identifies which authoring style produced a ToolSpec.
type Syntax string

const (
	SyntaxExec    Syntax = "exec"
	SyntaxShell   Syntax = "shell"
	SyntaxCommand Syntax = "command"
)

// InjectMode identifies how a parameter's value is delivered to the child
// process.
type InjectMode string

const (
	InjectArgument InjectMode = "argument"
	InjectStdin    InjectMode = "stdin"
	InjectOption   InjectMode = "option"
)

// ArgvElement is one slot of a normalized argv_template: either a static
// literal or a reference to a parameter's value by name.
type ArgvElement struct {
	Literal     string
	Placeholder bool
	ParamName   string
}

// Parameter is the normalized, merged form of one tool parameter.
type Parameter struct {
	Name        string
	InjectAs    InjectMode
	OptionName  string
	Position    int
	Raw         bool
	Required    bool
	Default     string
	Description string
}

// ToolSpec is the normalized tool definition the tool executor consumes.
type ToolSpec struct {
	Name         string
	Description  string
	ArgvTemplate []ArgvElement
	Parameters   []Parameter
	StdinParam   string // parameter name, empty if none
	Syntax       Syntax
}
