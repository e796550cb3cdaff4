package fixture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// PatternError wraps syntax issues reported while evaluating a name pattern.
type PatternError struct {
	Pattern string
	Err     error
}

func (e PatternError) Error() string {
	return fmt.Sprintf("invalid fixture pattern %q: %v", e.Pattern, e.Err)
}

func (e PatternError) Unwrap() error { return e.Err }

// NoMatchError lists patterns that selected no fixture.
type NoMatchError struct {
	Patterns []string
}

func (e NoMatchError) Error() string {
	return "patterns matched no fixtures: " + strings.Join(e.Patterns, ", ")
}

// Store is a directory of fixture files. It keeps no in-memory state: every
// call reads or writes the filesystem directly.
type Store struct {
	dir    string
	format Format
	opts   EncodeOptions
	writer Writer
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithFormat selects the on-disk format. Defaults to FormatJSON.
func WithFormat(f Format) StoreOption {
	return func(s *Store) { s.format = f }
}

// WithSortKeys writes AST object members in key order.
func WithSortKeys(sorted bool) StoreOption {
	return func(s *Store) { s.opts.SortKeys = sorted }
}

// WithWriter replaces the atomic OS writer.
func WithWriter(w Writer) StoreOption {
	return func(s *Store) { s.writer = w }
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		dir:    dir,
		format: FormatJSON,
		writer: NewOSWriter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the fixture directory.
func (s *Store) Dir() string { return s.dir }

// Format returns the on-disk format.
func (s *Store) Format() Format { return s.format }

// Path returns the file that holds the named fixture.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+s.format.Ext())
}

// Names lists fixture names in lexicographic order. A missing directory holds
// no fixtures; hidden files are skipped.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list fixtures: %w", err)
	}

	ext := s.format.Ext()
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		stem, ok := strings.CutSuffix(entry.Name(), ext)
		if !ok || stem == "" {
			continue
		}
		names = append(names, stem)
	}
	slices.Sort(names)
	return names, nil
}

// Match returns the sorted names selected by glob patterns (path.Match
// syntax, applied to names). Every pattern must select at least one fixture.
// No patterns selects everything.
func (s *Store) Match(patterns []string) ([]string, error) {
	names, err := s.Names()
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return names, nil
	}

	selected := make([]string, 0, len(names))
	missing := make([]string, 0)
	for _, pattern := range patterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, PatternError{Pattern: pattern, Err: err}
		}
		found := false
		for _, name := range names {
			if ok, _ := path.Match(pattern, name); ok {
				selected = append(selected, name)
				found = true
			}
		}
		if !found {
			missing = append(missing, pattern)
		}
	}
	if len(missing) > 0 {
		return nil, NoMatchError{Patterns: missing}
	}

	slices.Sort(selected)
	return slices.Compact(selected), nil
}

// Load reads the named fixture. Malformed files yield a *DecodeError.
func (s *Store) Load(name string) (Fixture, error) {
	if err := ValidateName(name); err != nil {
		return Fixture{}, err
	}
	p := s.Path(name)
	data, err := os.ReadFile(filepath.Clean(p))
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture %s: %w", name, err)
	}
	f, err := Unmarshal(name, data, s.format)
	if err != nil {
		return Fixture{}, &DecodeError{Path: p, Err: err}
	}
	return f, nil
}

// Save creates or overwrites the fixture named f.Name.
func (s *Store) Save(f Fixture) error {
	if err := ValidateName(f.Name); err != nil {
		return err
	}
	data, err := Marshal(f, s.format, s.opts)
	if err != nil {
		return err
	}
	p := s.Path(f.Name)
	if err := s.writer.WriteFile(p, data); err != nil {
		return &WriteError{Path: p, Err: err}
	}
	return nil
}

// Remove deletes the named fixture.
func (s *Store) Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		return fmt.Errorf("remove fixture %s: %w", name, err)
	}
	return nil
}
