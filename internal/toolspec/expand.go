package toolspec

import (
	"fmt"

	"github.com/deltaengine/delta/internal/config"
)

// Expand normalizes a declarative tool definition into the form the tool
// executor runs, per spec 4.C steps 1-6.
func Expand(def config.ToolDef) (*ToolSpec, error) {
	switch {
	case def.Exec != "":
		return expandExec(def)
	case def.Shell != "":
		return expandShell(def, def.Shell)
	case def.Command != "":
		return expandShell(def, def.Command)
	default:
		return nil, fmt.Errorf("%w: tool %q declares none of exec, shell, command", ErrInvalidSyntax, def.Name)
	}
}

func expandExec(def config.ToolDef) (*ToolSpec, error) {
	words, err := tokenizeExec(def.Exec)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", def.Name, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: tool %q has an empty exec template", ErrInvalidSyntax, def.Name)
	}

	var argv []ArgvElement
	inferred := map[string]*Parameter{}
	var order []string
	position := 0

	for i := 0; i < len(words); i++ {
		w := words[i]
		if !w.placeholder {
			argv = append(argv, ArgvElement{Literal: w.literal})
			continue
		}
		if w.raw {
			return nil, fmt.Errorf("%w: tool %q parameter %q", ErrRawInExecMode, def.Name, w.paramName)
		}

		// Option mode: a flag-shaped literal immediately followed by a
		// placeholder becomes inject_as=option, option_name=<the flag>,
		// and the flag literal is dropped from the static argv (the tool
		// executor re-inserts it immediately before the value, per 4.G.2).
		if len(argv) > 0 && !argv[len(argv)-1].Placeholder && isOptionFlag(argv[len(argv)-1].Literal) {
			optionName := argv[len(argv)-1].Literal
			argv = argv[:len(argv)-1]
			position++
			p := &Parameter{
				Name:       w.paramName,
				InjectAs:   InjectOption,
				OptionName: optionName,
				Position:   position,
				Required:   true,
			}
			inferred[w.paramName] = p
			order = append(order, w.paramName)
			argv = append(argv, ArgvElement{Placeholder: true, ParamName: w.paramName})
			continue
		}

		position++
		p := &Parameter{
			Name:     w.paramName,
			InjectAs: InjectArgument,
			Position: position,
			Required: true,
		}
		inferred[w.paramName] = p
		order = append(order, w.paramName)
		argv = append(argv, ArgvElement{Placeholder: true, ParamName: w.paramName})
	}

	params, stdinParam, err := mergeParameters(def.Name, order, inferred, def.Parameters)
	if err != nil {
		return nil, err
	}
	if def.Stdin != "" {
		stdinParam, err = applyStdinShorthand(def.Name, def.Stdin, params)
		if err != nil {
			return nil, err
		}
	}

	return &ToolSpec{
		Name:         def.Name,
		Description:  def.Description,
		ArgvTemplate: argv,
		Parameters:   params,
		StdinParam:   stdinParam,
		Syntax:       SyntaxExec,
	}, nil
}

func expandShell(def config.ToolDef, template string) (*ToolSpec, error) {
	script, refs := rewriteShellTemplate(template)

	inferred := map[string]*Parameter{}
	var order []string
	for _, ref := range refs {
		p := &Parameter{
			Name:     ref.name,
			InjectAs: InjectArgument,
			Position: ref.position,
			Raw:      ref.raw,
			Required: true,
		}
		inferred[ref.name] = p
		order = append(order, ref.name)
	}

	params, stdinParam, err := mergeParameters(def.Name, order, inferred, def.Parameters)
	if err != nil {
		return nil, err
	}
	if def.Stdin != "" {
		stdinParam, err = applyStdinShorthand(def.Name, def.Stdin, params)
		if err != nil {
			return nil, err
		}
	}

	argv := []ArgvElement{
		{Literal: "sh"},
		{Literal: "-c"},
		{Literal: script},
		{Literal: "--"},
	}
	for _, name := range order {
		argv = append(argv, ArgvElement{Placeholder: true, ParamName: name})
	}

	syntax := SyntaxShell
	if def.Command != "" {
		syntax = SyntaxCommand
	}

	return &ToolSpec{
		Name:         def.Name,
		Description:  def.Description,
		ArgvTemplate: argv,
		Parameters:   params,
		StdinParam:   stdinParam,
		Syntax:       syntax,
	}, nil
}

func isOptionFlag(literal string) bool {
	return len(literal) > 1 && literal[0] == '-'
}

// mergeParameters applies the explicit parameters: block on top of the
// inferred set per spec 4.C step 4, then runs the structural checks of
// step 5.
func mergeParameters(toolName string, order []string, inferred map[string]*Parameter, explicit []config.ParameterSpec) ([]Parameter, string, error) {
	for _, e := range explicit {
		p, ok := inferred[e.Name]
		if !ok {
			return nil, "", fmt.Errorf("%w: tool %q parameter %q", ErrUndeclaredParameter, toolName, e.Name)
		}
		if e.InjectAs != "" && string(p.InjectAs) != e.InjectAs {
			return nil, "", fmt.Errorf("%w: tool %q parameter %q", ErrParameterModeConflict, toolName, e.Name)
		}
		if e.Raw != p.Raw {
			return nil, "", fmt.Errorf("%w: tool %q parameter %q", ErrParameterModeConflict, toolName, e.Name)
		}
		p.Description = e.Description
		if e.Default != "" {
			p.Default = e.Default
			p.Required = false
		}
	}

	params := make([]Parameter, 0, len(order))
	stdinCount := 0
	var stdinParam string
	for _, name := range order {
		p := *inferred[name]
		if p.InjectAs == InjectStdin {
			stdinCount++
			stdinParam = p.Name
		}
		params = append(params, p)
	}
	if stdinCount > 1 {
		return nil, "", fmt.Errorf("%w: tool %q", ErrMultipleStdin, toolName)
	}
	for _, p := range params {
		if p.InjectAs == InjectOption && p.OptionName == "" {
			return nil, "", fmt.Errorf("%w: tool %q parameter %q", ErrOptionMissingName, toolName, p.Name)
		}
	}
	return params, stdinParam, nil
}

// applyStdinShorthand appends (or upgrades) a parameter to inject_as=stdin
// per spec 4.C step 6.
func applyStdinShorthand(toolName, paramName string, params []Parameter) (string, error) {
	for i := range params {
		if params[i].Name == paramName {
			if params[i].InjectAs == InjectStdin {
				return paramName, nil
			}
			params[i].InjectAs = InjectStdin
			return paramName, nil
		}
	}
	return "", fmt.Errorf("%w: tool %q stdin shorthand references unknown parameter %q", ErrUndeclaredParameter, toolName, paramName)
}
