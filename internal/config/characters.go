package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/sprite-memory/internal/binder"
)

// LoadCharacters reads a character mapping file. See ParseCharacters.
func LoadCharacters(path string) ([]binder.Character, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open characters: %w", err)
	}
	defer f.Close()

	chars, err := ParseCharacters(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return chars, nil
}

// ParseCharacters reads a YAML (or JSON) character mapping. The mapping is
// either a sequence of {name, id} entries or a mapping of name to id, given
// at the document root or under a "characters" key. Document order is kept
// because the first entry is the one pronouns refer to.
//
//	characters:
//	  Lucy: child_1
//	  Mom: family_1
func ParseCharacters(r io.Reader) ([]binder.Character, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return []binder.Character{}, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	node := &doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "characters" {
				node = node.Content[i+1]
				break
			}
		}
	}

	switch node.Kind {
	case yaml.SequenceNode:
		var chars []binder.Character
		if err := node.Decode(&chars); err != nil {
			return nil, fmt.Errorf("decode characters: %w", err)
		}
		for i, c := range chars {
			if c.Name == "" || c.ID == "" {
				return nil, fmt.Errorf("character %d: name and id are required", i)
			}
		}
		return chars, nil

	case yaml.MappingNode:
		chars := make([]binder.Character, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if v.Kind != yaml.ScalarNode || v.Value == "" {
				return nil, fmt.Errorf("character %q: id must be a string (line %d)", k.Value, v.Line)
			}
			chars = append(chars, binder.Character{ID: v.Value, Name: k.Value})
		}
		return chars, nil
	}
	return nil, fmt.Errorf("characters must be a sequence or a mapping (line %d)", node.Line)
}

// ParseCharacterPairs parses "Name=id" pairs as given on the command line,
// keeping their order.
func ParseCharacterPairs(pairs []string) ([]binder.Character, error) {
	chars := make([]binder.Character, 0, len(pairs))
	for _, p := range pairs {
		name, id, ok := strings.Cut(p, "=")
		name, id = strings.TrimSpace(name), strings.TrimSpace(id)
		if !ok || name == "" || id == "" {
			return nil, fmt.Errorf("invalid character %q (use Name=id)", p)
		}
		chars = append(chars, binder.Character{ID: id, Name: name})
	}
	return chars, nil
}
