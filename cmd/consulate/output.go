package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

type outputFormat string

const (
	outputText outputFormat = "text"
	outputJSON outputFormat = "json"
	outputYAML outputFormat = "yaml"
)

func currentOutput() (outputFormat, error) {
	switch format := outputFormat(strings.ToLower(strings.TrimSpace(viper.GetString("output")))); format {
	case "", outputText:
		return outputText, nil
	case outputJSON, outputYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// render writes v as JSON or YAML, or calls text for the plain rendering.
func render(cmd *cobra.Command, v any, text func(w io.Writer) error) error {
	format, err := currentOutput()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch format {
	case outputJSON:
		return writeJSON(out, v)
	case outputYAML:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		yamlBytes, err := convertJSONToYAML(data)
		if err != nil {
			return err
		}
		_, err = out.Write(yamlBytes)
		return err
	default:
		return text(out)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// valueType selects how KV values and event payloads are read and printed.
type valueType string

const (
	valueRaw  valueType = "raw"
	valueJSON valueType = "json"
	valueYAML valueType = "yaml"
)

func parseValueType(s string) (valueType, error) {
	switch t := valueType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", valueRaw:
		return valueRaw, nil
	case valueJSON, valueYAML:
		return t, nil
	default:
		return "", fmt.Errorf("unknown value type %q (want raw, json or yaml)", s)
	}
}

// formatValue renders a stored value for display. JSON and YAML expect the
// stored bytes to be JSON.
func formatValue(data []byte, t valueType) ([]byte, error) {
	switch t {
	case valueJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			trimmed = []byte("null")
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
			return nil, fmt.Errorf("value is not JSON: %w", err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case valueYAML:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 {
			trimmed = []byte("null")
		}
		out, err := convertJSONToYAML(trimmed)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON: %w", err)
		}
		return out, nil
	default:
		out := append([]byte(nil), data...)
		if len(out) > 0 && !bytes.HasSuffix(out, []byte("\n")) {
			out = append(out, '\n')
		}
		return out, nil
	}
}

// encodeValue turns user input into the bytes stored on the agent. JSON is
// compacted after validation; YAML is converted to JSON.
func encodeValue(data []byte, t valueType) ([]byte, error) {
	switch t {
	case valueJSON:
		var buf bytes.Buffer
		if err := json.Compact(&buf, bytes.TrimSpace(data)); err != nil {
			return nil, fmt.Errorf("input is not JSON: %w", err)
		}
		return buf.Bytes(), nil
	case valueYAML:
		return convertYAMLToJSON(data)
	default:
		return data, nil
	}
}

// readValue takes the value from --file, a literal argument, or stdin when
// the argument is "-".
func readValue(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("value argument and --file are mutually exclusive")
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		return os.ReadFile(file)
	case len(args) == 0:
		return nil, nil
	case args[0] == "-":
		return io.ReadAll(cmd.InOrStdin())
	default:
		return []byte(args[0]), nil
	}
}

func convertYAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return json.Marshal(yamlToJSON(doc))
}

func convertJSONToYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

func yamlToJSON(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[fmt.Sprint(k)] = yamlToJSON(v)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = yamlToJSON(v)
		}
		return out
	case []any:
		slice := make([]any, len(val))
		for i, elem := range val {
			slice[i] = yamlToJSON(elem)
		}
		return slice
	default:
		return val
	}
}
