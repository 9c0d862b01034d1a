package toolspec

import (
	"errors"
	"testing"

	"github.com/deltaengine/delta/internal/config"
)

func mustExpand(t *testing.T, def config.ToolDef) *ToolSpec {
	t.Helper()
	spec, err := Expand(def)
	if err != nil {
		t.Fatalf("Expand(%q): %v", def.Name, err)
	}
	return spec
}

func argvStrings(spec *ToolSpec) []string {
	out := make([]string, 0, len(spec.ArgvTemplate))
	for _, el := range spec.ArgvTemplate {
		if el.Placeholder {
			out = append(out, "${"+el.ParamName+"}")
		} else {
			out = append(out, el.Literal)
		}
	}
	return out
}

func TestExpandExecBasic(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "echo_test", Exec: "echo ${message}"})

	if spec.Syntax != SyntaxExec {
		t.Errorf("syntax = %s", spec.Syntax)
	}
	want := []string{"echo", "${message}"}
	got := argvStrings(spec)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("argv = %v, want %v", got, want)
	}
	if len(spec.Parameters) != 1 {
		t.Fatalf("parameters = %+v", spec.Parameters)
	}
	p := spec.Parameters[0]
	if p.Name != "message" || p.InjectAs != InjectArgument || p.Position != 1 || !p.Required {
		t.Errorf("parameter = %+v", p)
	}
}

func TestExpandExecQuotedLiteralsPreserved(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "greet", Exec: `printf "hello world" ${name}`})
	got := argvStrings(spec)
	if got[1] != "hello world" {
		t.Errorf("quoted literal not preserved: %v", got)
	}
}

func TestExpandExecRejectsMetachars(t *testing.T) {
	for _, template := range []string{
		"echo ${x} | wc -l",
		"echo ${x} > out.txt",
		"echo ${x}; rm -rf /",
		"echo ${x} && true",
		"cat < ${x}",
	} {
		_, err := Expand(config.ToolDef{Name: "bad", Exec: template})
		if !errors.Is(err, ErrUnsafeMetachar) {
			t.Errorf("Expand(%q): err = %v, want unsafe-shell-metachar", template, err)
		}
	}
}

func TestExpandExecRejectsRaw(t *testing.T) {
	_, err := Expand(config.ToolDef{Name: "bad", Exec: "echo ${x:raw}"})
	if !errors.Is(err, ErrRawInExecMode) {
		t.Fatalf("err = %v, want raw-forbidden-in-exec", err)
	}
}

func TestExpandShellRewrite(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "count_lines", Shell: "cat ${file} | wc -l"})

	if spec.Syntax != SyntaxShell {
		t.Errorf("syntax = %s", spec.Syntax)
	}
	got := argvStrings(spec)
	want := []string{"sh", "-c", `cat "$1" | wc -l`, "--", "${file}"}
	if len(got) != len(want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExpandShellRawUnquoted(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "globber", Shell: "ls ${pattern:raw}"})
	script := spec.ArgvTemplate[2].Literal
	if script != "ls $1" {
		t.Errorf("script = %q, want unquoted positional for :raw", script)
	}
	if !spec.Parameters[0].Raw {
		t.Error("raw flag not recorded")
	}
}

func TestExpandShellRepeatedPlaceholderSharesPosition(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "dup", Shell: "cp ${file} ${file}.bak"})
	script := spec.ArgvTemplate[2].Literal
	if script != `cp "$1" "$1".bak` {
		t.Errorf("script = %q", script)
	}
	if len(spec.Parameters) != 1 {
		t.Errorf("repeated placeholder should infer one parameter, got %+v", spec.Parameters)
	}
}

func TestExpandLegacyCommandSyntax(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "legacy", Command: "echo ${msg}"})
	if spec.Syntax != SyntaxCommand {
		t.Errorf("syntax = %s, want command", spec.Syntax)
	}
	if spec.ArgvTemplate[0].Literal != "sh" {
		t.Error("command: must expand through the shell path")
	}
}

func TestExpandOptionInference(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{Name: "fetch", Exec: "curl --output ${dest} ${url}"})

	var dest *Parameter
	for i := range spec.Parameters {
		if spec.Parameters[i].Name == "dest" {
			dest = &spec.Parameters[i]
		}
	}
	if dest == nil || dest.InjectAs != InjectOption || dest.OptionName != "--output" {
		t.Fatalf("dest = %+v, want option mode with --output", dest)
	}
	// The flag literal is re-inserted by the executor, not kept in argv.
	for _, el := range spec.ArgvTemplate {
		if !el.Placeholder && el.Literal == "--output" {
			t.Error("option flag should be dropped from the static argv")
		}
	}
}

func TestExpandMergeOverridesDescriptionAndDefault(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{
		Name: "echo_test",
		Exec: "echo ${message}",
		Parameters: []config.ParameterSpec{
			{Name: "message", Description: "what to say", Default: "hi"},
		},
	})
	p := spec.Parameters[0]
	if p.Description != "what to say" || p.Default != "hi" || p.Required {
		t.Errorf("merged parameter = %+v", p)
	}
}

func TestExpandMergeRejectsModeChange(t *testing.T) {
	_, err := Expand(config.ToolDef{
		Name: "echo_test",
		Exec: "echo ${message}",
		Parameters: []config.ParameterSpec{
			{Name: "message", InjectAs: config.InjectStdin},
		},
	})
	if !errors.Is(err, ErrParameterModeConflict) {
		t.Fatalf("err = %v, want parameter-mode-conflict", err)
	}
}

func TestExpandMergeRejectsUndeclared(t *testing.T) {
	_, err := Expand(config.ToolDef{
		Name: "echo_test",
		Exec: "echo ${message}",
		Parameters: []config.ParameterSpec{
			{Name: "no_such_placeholder"},
		},
	})
	if !errors.Is(err, ErrUndeclaredParameter) {
		t.Fatalf("err = %v, want undeclared-parameter", err)
	}
}

func TestExpandStdinShorthand(t *testing.T) {
	spec := mustExpand(t, config.ToolDef{
		Name:  "write_file",
		Exec:  "tee ${path} ${content}",
		Stdin: "content",
	})
	if spec.StdinParam != "content" {
		t.Fatalf("stdin param = %q", spec.StdinParam)
	}
	for _, p := range spec.Parameters {
		if p.Name == "content" && p.InjectAs != InjectStdin {
			t.Errorf("content should be upgraded to stdin injection, got %s", p.InjectAs)
		}
	}
}

func TestExpandRejectsMissingSyntax(t *testing.T) {
	_, err := Expand(config.ToolDef{Name: "empty"})
	if !errors.Is(err, ErrInvalidSyntax) {
		t.Fatalf("err = %v, want invalid-tool-syntax", err)
	}
}

// Expanding the same definition twice yields identical normalized forms.
func TestExpandIsDeterministic(t *testing.T) {
	def := config.ToolDef{Name: "count_lines", Shell: "cat ${file} | wc -l"}
	a := mustExpand(t, def)
	b := mustExpand(t, def)

	if len(a.ArgvTemplate) != len(b.ArgvTemplate) || len(a.Parameters) != len(b.Parameters) {
		t.Fatal("expansion is not deterministic")
	}
	for i := range a.ArgvTemplate {
		if a.ArgvTemplate[i] != b.ArgvTemplate[i] {
			t.Errorf("argv[%d] differs: %+v vs %+v", i, a.ArgvTemplate[i], b.ArgvTemplate[i])
		}
	}
	for i := range a.Parameters {
		if a.Parameters[i] != b.Parameters[i] {
			t.Errorf("parameter[%d] differs", i)
		}
	}
}
