package lexicon

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a vocabulary overlay from a YAML file.
//
// Example:
//
//	medications:
//	  - name: tirzepatide
//	    brands: [Mounjaro]
//	symptoms:
//	  - name: chest pain
//	    synonyms: ["heart hurts"]
func LoadFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()

	l, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon: parse %q: %w", path, err)
	}
	return l, nil
}

// LoadFromReader parses a vocabulary overlay from r and validates it.
func LoadFromReader(r io.Reader) (*Lexicon, error) {
	var l Lexicon
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("lexicon: decode yaml: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Load returns the built-in vocabulary, extended by the overlay at path when
// path is non-empty.
func Load(path string) (*Lexicon, error) {
	base := Default()
	if path == "" {
		return base, nil
	}
	overlay, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	base.Merge(overlay)
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("lexicon: overlay %q conflicts with built-in vocabulary: %w", path, err)
	}
	return base, nil
}
