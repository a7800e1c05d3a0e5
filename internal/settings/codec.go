// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownField classifies strict parse failures caused by keys the host does not know.
	// Use errors.Is(err, ErrUnknownField) instead of string matching.
	ErrUnknownField = errors.New("unknown settings field")

	// ErrUnsupportedFormat is returned for file extensions without a codec.
	ErrUnsupportedFormat = errors.New("unsupported settings format")
)

// Format names a wire representation of the document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatJS   Format = "js" // render-only: the host's config.js module
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".js":
		return FormatJS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// fileDocument mirrors Document with optional fields so a partial file can be
// merged over Default() key by key.
type fileDocument struct {
	DataSources           map[string]DataSource `json:"datasources" yaml:"datasources"`
	DefaultRoute          *string               `json:"default_route" yaml:"default_route"`
	TimezoneOffset        *TimezoneOffset       `json:"timezoneOffset" yaml:"timezoneOffset"`
	UnsavedChangesWarning *bool                 `json:"unsaved_changes_warning" yaml:"unsaved_changes_warning"`
	PlaylistTimespan      *Timespan             `json:"playlist_timespan" yaml:"playlist_timespan"`
	Plugins               *filePlugins          `json:"plugins" yaml:"plugins"`
}

type filePlugins struct {
	Panels []string `json:"panels" yaml:"panels"`
}

func (f fileDocument) mergeInto(base Document) Document {
	out := base.Clone()
	if f.DataSources != nil {
		out.DataSources = f.DataSources
	}
	if f.DefaultRoute != nil {
		out.DefaultRoute = *f.DefaultRoute
	}
	if f.TimezoneOffset != nil {
		out.TimezoneOffset = *f.TimezoneOffset
	}
	if f.UnsavedChangesWarning != nil {
		out.UnsavedChangesWarning = *f.UnsavedChangesWarning
	}
	if f.PlaylistTimespan != nil {
		out.PlaylistTimespan = *f.PlaylistTimespan
	}
	if f.Plugins != nil && f.Plugins.Panels != nil {
		out.Plugins.Panels = f.Plugins.Panels
	}
	return out.normalized()
}

// DecodeJSON strictly decodes a JSON document. Missing keys keep their Default() value.
// The result is not validated.
func DecodeJSON(r io.Reader) (Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var f fileDocument
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return Default(), nil
		}
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			return Document{}, fmt.Errorf("%w: %v", ErrUnknownField, err)
		}
		return Document{}, fmt.Errorf("strict settings parse error: %w", err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return Document{}, fmt.Errorf("settings contain multiple documents or trailing content")
	}

	return f.mergeInto(Default()), nil
}

// DecodeYAML strictly decodes a YAML document. Missing keys keep their Default() value.
// The result is not validated.
func DecodeYAML(r io.Reader) (Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f fileDocument
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return Default(), nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return Document{}, fmt.Errorf("%w: %v", ErrUnknownField, err)
		}
		return Document{}, fmt.Errorf("strict settings parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Document{}, fmt.Errorf("settings contain multiple documents or trailing content")
	}

	return f.mergeInto(Default()), nil
}

// Decode dispatches on format.
func Decode(r io.Reader, format Format) (Document, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(r)
	case FormatYAML:
		return DecodeYAML(r)
	default:
		return Document{}, fmt.Errorf("%w: cannot decode %q", ErrUnsupportedFormat, format)
	}
}

// EncodeJSON writes the indented JSON form, every field present.
func EncodeJSON(w io.Writer, d Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d.normalized())
}

// EncodeYAML writes the YAML form, every field present.
func EncodeYAML(w io.Writer, d Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d.normalized()); err != nil {
		return err
	}
	return enc.Close()
}

// Encode dispatches on format.
func Encode(w io.Writer, d Document, format Format) error {
	switch format {
	case FormatJSON:
		return EncodeJSON(w, d)
	case FormatYAML:
		return EncodeYAML(w, d)
	case FormatJS:
		return RenderJS(w, d)
	default:
		return fmt.Errorf("%w: cannot encode %q", ErrUnsupportedFormat, format)
	}
}

// LoadFile reads, decodes and validates a settings file.
func LoadFile(path string) (Document, error) {
	path = filepath.Clean(path)

	format, err := FormatFromPath(path)
	if err != nil {
		return Document{}, err
	}
	if format == FormatJS {
		return Document{}, fmt.Errorf("%w: config.js is render-only, load the JSON or YAML source", ErrUnsupportedFormat)
	}

	// #nosec G304 -- settings paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read settings: %w", err)
	}

	doc, err := Decode(bytes.NewReader(data), format)
	if err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, fmt.Errorf("validate %s: %w", path, err)
	}
	return doc, nil
}
