// Package configfiles covers the two filesystem surfaces of the panel: the
// JSON device-map config edited wholesale through the API, and the log
// directory exposed for download.
package configfiles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jebisys/switchboard/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// deviceMapSchema is the contract for the panel's device-map file. Writes
// are validated against it before anything touches disk; a bad payload can
// never clobber a working config.
const deviceMapSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["devices"],
  "additionalProperties": false,
  "properties": {
    "devices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "label"],
        "additionalProperties": false,
        "properties": {
          "id": {"type": "string", "minLength": 1, "maxLength": 64},
          "label": {"type": "string", "minLength": 1, "maxLength": 128},
          "type": {"type": "string", "enum": ["relay", "led"]},
          "hidden": {"type": "boolean"}
        }
      }
    },
    "panel": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "title": {"type": "string", "maxLength": 128},
        "refresh_seconds": {"type": "integer", "minimum": 1, "maximum": 3600}
      }
    }
  }
}`

var compiledDeviceMapSchema = jsonschema.MustCompileString("device_map.schema.json", deviceMapSchema)

// Editor reads and writes one JSON config file wholesale. No partial
// patching: the client always submits the complete document.
type Editor struct {
	path   string
	logger *zap.Logger
}

func NewEditor(path string, logger *zap.Logger) *Editor {
	return &Editor{path: path, logger: logger}
}

// DefaultDeviceMap is what Read returns before the file is first written.
func DefaultDeviceMap() map[string]any {
	return map[string]any{
		"devices": []any{
			map[string]any{"id": "RelayProcessor", "label": "Processor", "type": "relay"},
			map[string]any{"id": "RelayScreen", "label": "Screen", "type": "relay"},
			map[string]any{"id": "RelayLight", "label": "Light", "type": "relay"},
			map[string]any{"id": "LedProcessor", "label": "Processor LED", "type": "led"},
			map[string]any{"id": "LedScreen", "label": "Screen LED", "type": "led"},
			map[string]any{"id": "LedLight", "label": "Light LED", "type": "led"},
		},
		"panel": map[string]any{
			"title":           "Switchboard",
			"refresh_seconds": 30,
		},
	}
}

func (e *Editor) Read() (map[string]any, error) {
	data, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultDeviceMap(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.NewValidationError("config", "config file contains invalid JSON")
	}
	return doc, nil
}

// Write validates the document against the schema and replaces the file
// atomically via a temp file in the same directory.
func (e *Editor) Write(doc map[string]any) error {
	if err := compiledDeviceMapSchema.Validate(anyValue(doc)); err != nil {
		return types.NewValidationError("config", err.Error())
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(e.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".device_map-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, e.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}

	e.logger.Info("config file updated", zap.String("path", e.path))
	return nil
}

// anyValue round-trips the document through encoding/json so the schema
// validator sees canonical types (float64 numbers, not ints).
func anyValue(doc map[string]any) any {
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return doc
	}
	return v
}
