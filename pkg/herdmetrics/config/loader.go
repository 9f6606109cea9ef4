package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a workspace document.
type Format string

// Supported workspace encodings.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Stdin is the path FromFile reads from standard input.
const Stdin = "-"

// FormatOf returns the encoding implied by a file name.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported workspace file extension %q", ext)
	}
}

// FromFile loads a workspace file. Stdin reads standard input as YAML, which
// accepts JSON documents too.
func FromFile(path string) (Config, error) {
	if path == Stdin {
		return Decode(os.Stdin, FormatYAML)
	}

	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("read workspace file: %w", err)
	}
	defer f.Close()

	return Decode(f, format)
}

// Decode reads a whole workspace document from r.
func Decode(r io.Reader, format Format) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read workspace: %w", err)
	}
	switch format {
	case FormatYAML:
		return FromYAML(data)
	case FormatJSON:
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unknown workspace format %q", format)
	}
}

// FromYAML decodes a YAML document whose top level is a mapping. An empty
// document gives an empty Config.
func FromYAML(data []byte) (Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(doc), nil
}

// FromJSON decodes a JSON object.
func FromJSON(data []byte) (Config, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(doc), nil
}
