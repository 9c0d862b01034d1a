package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a ContextSource by first reading its discriminator
// "type" field, then decoding the remaining fields into the matching
// variant struct.
func (s *ContextSource) UnmarshalYAML(node *yaml.Node) error {
	var discriminator struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&discriminator); err != nil {
		return err
	}
	s.Kind = discriminator.Type

	switch s.Kind {
	case SourceKindFile:
		var v FileSource
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("file source: %w", err)
		}
		if v.OnMissing == "" {
			v.OnMissing = OnMissingError
		}
		s.File = &v
	case SourceKindComputedFile:
		var v ComputedFileSource
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("computed_file source: %w", err)
		}
		if v.OnMissing == "" {
			v.OnMissing = OnMissingError
		}
		s.ComputedFile = &v
	case SourceKindJournal:
		var v JournalSource
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("journal source: %w", err)
		}
		s.Journal = &v
	case "":
		return fmt.Errorf("context source missing required field: type")
	default:
		return fmt.Errorf("unknown context source type: %q", s.Kind)
	}
	return nil
}

// MarshalYAML re-flattens the discriminated variant back into one map so
// round-tripping (used by `tool expand` and config dumps) preserves shape.
func (s ContextSource) MarshalYAML() (interface{}, error) {
	var payload []byte
	var err error
	switch s.Kind {
	case SourceKindFile:
		payload, err = yaml.Marshal(s.File)
	case SourceKindComputedFile:
		payload, err = yaml.Marshal(s.ComputedFile)
	case SourceKindJournal:
		payload, err = yaml.Marshal(s.Journal)
	default:
		return nil, fmt.Errorf("unknown context source type: %q", s.Kind)
	}
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	out["type"] = s.Kind
	return out, nil
}
