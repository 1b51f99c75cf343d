// Package seed loads initial bindings for a program from YAML or CSV files.
//
// A YAML file is a mapping from names to values: integers, strings (which
// become texts), null, and lists of those, nested to any depth. A CSV file
// binds each header column to the sequence of its cells; cells that are
// integers become integers and every other cell becomes a text.
package seed

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sambeau/koto/pkg/koto/evaluator"
	"github.com/sambeau/koto/pkg/koto/lexer"
	"github.com/sambeau/koto/pkg/koto/parser"
)

// Values maps binding names to their initial values.
type Values map[string]evaluator.Object

// Load reads seed values from path, choosing the format by extension.
func Load(path string) (Values, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed data: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		values, err := LoadYAML(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return values, nil
	case ".csv":
		values, err := LoadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return values, nil
	}
	return nil, fmt.Errorf("%s: unsupported seed format %q (want .yaml, .yml or .csv)", path, filepath.Ext(path))
}

// LoadYAML decodes a YAML mapping of names to values.
func LoadYAML(r io.Reader) (Values, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return Values{}, nil
		}
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: seed data must be a mapping of names to values", root.Line)
	}

	values := make(Values, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, node := root.Content[i], root.Content[i+1]
		val, err := fromYAML(node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
		values[key.Value] = val
	}
	return values, nil
}

func fromYAML(node *yaml.Node) (evaluator.Object, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return fromYAML(node.Alias)

	case yaml.SequenceNode:
		elements := make([]evaluator.Object, 0, len(node.Content))
		for _, child := range node.Content {
			val, err := fromYAML(child)
			if err != nil {
				return nil, err
			}
			elements = append(elements, val)
		}
		return evaluator.NewList(elements...), nil

	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return evaluator.NULL, nil
		case "!!int":
			n, ok := new(big.Int).SetString(node.Value, 0)
			if !ok {
				return nil, fmt.Errorf("line %d: invalid integer %q", node.Line, node.Value)
			}
			return &evaluator.Integer{Value: n}, nil
		case "!!float":
			// integers beyond 64 bits resolve as floats
			if n, ok := new(big.Int).SetString(node.Value, 10); ok {
				return &evaluator.Integer{Value: n}, nil
			}
		case "!!str":
			return evaluator.NewText(lexer.Normalize(node.Value)), nil
		}
		return nil, fmt.Errorf("line %d: unsupported value %q (%s)", node.Line, node.Value, node.ShortTag())
	}
	return nil, fmt.Errorf("line %d: nested mappings are not supported", node.Line)
}

// LoadCSV binds every header column to the sequence of its cells.
func LoadCSV(r io.Reader) (Values, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	if len(records) == 0 {
		return Values{}, nil
	}

	header := records[0]
	columns := make([][]evaluator.Object, len(header))
	for _, record := range records[1:] {
		for i, cell := range record {
			columns[i] = append(columns[i], fromCell(cell))
		}
	}

	values := make(Values, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		values[name] = evaluator.NewList(columns[i]...)
	}
	return values, nil
}

func fromCell(cell string) evaluator.Object {
	cell = strings.TrimSpace(cell)
	if n, ok := new(big.Int).SetString(cell, 10); ok {
		return &evaluator.Integer{Value: n}
	}
	return evaluator.NewText(lexer.Normalize(cell))
}

// Apply binds values in env, in name order. Every name must be readable
// as an identifier, otherwise no program could refer to it.
func Apply(env *evaluator.Environment, values Values) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !parser.IsIdentifier(lexer.Normalize(name)) {
			return fmt.Errorf("seed name %q is not a valid identifier", name)
		}
	}
	for _, name := range names {
		env.Set(lexer.Normalize(name), values[name])
	}
	return nil
}
