package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

var reflector = &jsonschema.Reflector{FieldNameTag: "yaml"}

type schemaCache struct {
	once sync.Once
	json []byte
	err  error
}

var (
	agentSchema   schemaCache
	hooksSchema   schemaCache
	contextSchema schemaCache
)

func reflect(cache *schemaCache, v any) ([]byte, error) {
	cache.once.Do(func() {
		schema := reflector.Reflect(v)
		cache.json, cache.err = json.MarshalIndent(schema, "", "  ")
	})
	return cache.json, cache.err
}

// AgentConfigSchema returns the JSON Schema for agent.yaml.
func AgentConfigSchema() ([]byte, error) {
	return reflect(&agentSchema, &AgentConfig{})
}

// HooksConfigSchema returns the JSON Schema for hooks.yaml.
func HooksConfigSchema() ([]byte, error) {
	return reflect(&hooksSchema, &HooksConfig{})
}

// ContextManifestSchema returns the JSON Schema for context.yaml.
func ContextManifestSchema() ([]byte, error) {
	return reflect(&contextSchema, &ContextManifest{})
}
