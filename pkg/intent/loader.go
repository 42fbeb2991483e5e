package intent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/netcfg-io/netcfg/pkg/util"
)

// LoadFile reads one intent document. Decoding problems never fail the load:
// they are attached to the returned intent as ParseIssues so that a
// malformed document still yields a best-effort diagnostic set. Only I/O
// errors are returned.
func LoadFile(path string) (*DeviceIntent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading intent %s: %w", path, err)
	}
	doc := Parse(data)
	doc.Source = path
	util.WithField("file", path).Debugf("loaded intent %s (%d parse issues)", doc.Name(), len(doc.ParseIssues))
	return doc, nil
}

// LoadDir loads every *.yaml / *.yml file in dir (non-recursive), sorted by
// file name so batch order is stable.
func LoadDir(dir string) ([]*DeviceIntent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading intent dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	intents := make([]*DeviceIntent, 0, len(names))
	for _, name := range names {
		doc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		intents = append(intents, doc)
	}
	return intents, nil
}

// Load reads a single file or a directory of files
func Load(path string) ([]*DeviceIntent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading intent %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return []*DeviceIntent{doc}, nil
}

// Parse decodes a YAML intent document. Documents written for the original
// pipeline scripts (top-level "device" key) are converted to the current
// schema.
func Parse(data []byte) *DeviceIntent {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return &DeviceIntent{ParseIssues: []Diagnostic{
			Errorf(CodeParseError, "", "document is not valid YAML: %v", err),
		}}
	}
	if len(root.Content) == 0 {
		return &DeviceIntent{ParseIssues: []Diagnostic{
			Errorf(CodeParseError, "", "document is empty"),
		}}
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return &DeviceIntent{ParseIssues: []Diagnostic{
			Errorf(CodeParseError, "", "document must be a mapping, got %s", nodeKind(top)),
		}}
	}

	if hasKey(top, "device") {
		return parseLegacy(data)
	}

	doc := &DeviceIntent{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		doc.ParseIssues = append(doc.ParseIssues, decodeIssues(err)...)
	}
	return doc
}

var unknownFieldRe = regexp.MustCompile(`^line (\d+): field (\S+) not found`)

// decodeIssues turns a yaml decode error into diagnostics. Unknown fields are
// warnings (the value is ignored); type mismatches are errors because the
// field was left at its zero value.
func decodeIssues(err error) []Diagnostic {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return []Diagnostic{Errorf(CodeParseError, "", "%v", err)}
	}
	out := make([]Diagnostic, 0, len(te.Errors))
	for _, msg := range te.Errors {
		if m := unknownFieldRe.FindStringSubmatch(msg); m != nil {
			out = append(out, Warningf(CodeUnknownField, m[2], "line %s: unknown field %q ignored", m[1], m[2]))
			continue
		}
		out = append(out, Errorf(CodeParseError, "", "%s", msg))
	}
	return out
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return strings.ToLower(fmt.Sprintf("kind %d", n.Kind))
	}
}

// Marshal renders an intent in the current schema
func Marshal(d *DeviceIntent) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
