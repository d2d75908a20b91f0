package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonathan/cv-editor/internal/record"
	"github.com/jonathan/cv-editor/internal/schemas"
	"github.com/jonathan/cv-editor/internal/types"
)

// Format selects the project file encoding
type Format string

// Supported formats
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Extension is the default project file extension
const Extension = ".cvproj"

// FormatFor picks the format from a file extension. Anything other than
// .yaml or .yml is JSON, including the native .cvproj.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ParseFormat parses a user supplied format name
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json", "cvproj":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported project format %q", s)
}

// Document is the on-disk shape of a project. Section values are either a
// markup string or a list of entries.
type Document struct {
	Personal   map[string]string `json:"personal" yaml:"personal"`
	Sections   map[string]any    `json:"sections" yaml:"sections"`
	Visibility map[string]bool   `json:"visibility" yaml:"visibility"`
}

// FromRecord converts a record to its document form
func FromRecord(rec types.Record) Document {
	doc := Document{
		Personal:   make(map[string]string, len(rec.Personal)),
		Sections:   make(map[string]any, len(rec.Sections)),
		Visibility: make(map[string]bool, len(rec.Sections)),
	}
	for k, v := range rec.Personal {
		doc.Personal[k] = v
	}
	for key, sec := range rec.Sections {
		doc.Visibility[string(key)] = sec.Visible
		if sec.Content.Kind == types.ContentText {
			doc.Sections[string(key)] = sec.Content.Text
			continue
		}
		entries := make([]map[string]string, 0, len(sec.Content.Entries))
		for _, e := range sec.Content.Entries {
			entries = append(entries, map[string]string(e.Clone()))
		}
		doc.Sections[string(key)] = entries
	}
	return doc
}

// Encode serialises rec in the given format
func Encode(rec types.Record, format Format) ([]byte, error) {
	doc := FromRecord(rec)
	if format == FormatYAML {
		return marshalYAML(doc)
	}
	// keep & and < in markup unescaped
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses data, validates it against the project schema and merges it
// into a copy of base. Known keys replace the base value, unknown keys are
// ignored and keys absent from the document keep the base value. base is
// never modified; on error nothing has been merged anywhere.
func Decode(data []byte, format Format, base types.Record) (types.Record, error) {
	if err := checkInput(data); err != nil {
		return types.Record{}, err
	}

	var raw any
	switch format {
	case FormatYAML:
		if err := unmarshalYAML(data, &raw); err != nil {
			return types.Record{}, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return types.Record{}, &SyntaxError{Format: FormatJSON, Cause: err}
		}
	}

	if err := schemas.ValidateProject(raw); err != nil {
		return types.Record{}, err
	}
	// schema guarantees the shapes asserted below
	top, _ := raw.(map[string]any)
	return merge(top, base)
}

func merge(top map[string]any, base types.Record) (types.Record, error) {
	staged := base.Clone()
	if staged.Personal == nil {
		staged.Personal = types.PersonalInfo{}
	}
	if staged.Sections == nil {
		staged.Sections = make(map[types.SectionKey]types.Section)
	}

	if personal, ok := top["personal"].(map[string]any); ok {
		for k, v := range personal {
			if s, ok := v.(string); ok && types.IsPersonalKey(k) {
				staged.Personal[k] = s
			}
		}
	}

	if sections, ok := top["sections"].(map[string]any); ok {
		for k, v := range sections {
			key, known := types.ParseSectionKey(k)
			if !known {
				continue
			}
			content, err := sectionContent(key, v)
			if err != nil {
				return types.Record{}, err
			}
			sec := sectionOrNew(staged, key)
			sec.Content = content
			staged.Sections[key] = sec
		}
	}

	if visibility, ok := top["visibility"].(map[string]any); ok {
		for k, v := range visibility {
			key, known := types.ParseSectionKey(k)
			b, isBool := v.(bool)
			if !known || !isBool {
				continue
			}
			sec := sectionOrNew(staged, key)
			sec.Visible = b
			staged.Sections[key] = sec
		}
	}

	return staged, nil
}

func sectionOrNew(rec types.Record, key types.SectionKey) types.Section {
	if sec, ok := rec.Sections[key]; ok {
		return sec
	}
	return types.Section{Key: key, Visible: true}
}

func sectionContent(key types.SectionKey, v any) (types.Content, error) {
	switch val := v.(type) {
	case string:
		return types.TextContent(val), nil
	case []any:
		schema, _ := types.Schema(key)
		entries := make([]types.Entry, 0, len(val))
		for _, item := range val {
			obj, _ := item.(map[string]any)
			e := make(types.Entry, len(obj))
			for field, fv := range obj {
				// fields from newer versions are dropped
				if s, ok := fv.(string); ok && schema.HasField(field) {
					e[field] = s
				}
			}
			entries = append(entries, e)
		}
		normalized, err := record.NormalizeEntries(key, entries)
		if err != nil {
			return types.Content{}, fmt.Errorf("section %s: %w", key, err)
		}
		return types.EntriesContent(normalized), nil
	}
	return types.Content{}, fmt.Errorf("section %s: unsupported value %T", key, v)
}
