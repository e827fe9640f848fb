// Package dotenv reads and writes the KEY=value files the chatbot services
// take their local configuration from.
//
// The format is deliberately small: blank lines and lines starting with '#'
// are skipped, every other line with an '=' is split on the first '=', key
// and value are trimmed and one layer of matching quotes is removed from
// the value. Lines without '=' are ignored. There is no variable expansion,
// no escapes and no inline comments.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"unicode"
)

// maxLine bounds a single line; longer lines stop the parse with an error.
const maxLine = 1024 * 1024

type Var struct {
	Key   string
	Value string
}

// Parse reads variables from r in file order. On a read error the
// variables parsed so far are returned together with the error.
func Parse(r io.Reader) ([]Var, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var vars []Var
	lineno := 0
	for scanner.Scan() {
		lineno++
		v, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		vars = append(vars, v)
	}
	if err := scanner.Err(); err != nil {
		return vars, fmt.Errorf("reading line %d: %w", lineno+1, err)
	}
	return vars, nil
}

func parseLine(line string) (Var, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Var{}, false
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Var{}, false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Var{}, false
	}
	return Var{Key: key, Value: Unquote(strings.TrimSpace(value))}, true
}

// Unquote removes one layer of matching single or double quotes.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first == last && (first == '"' || first == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// Read parses the file at path. A missing file is reported as an error
// wrapping os.ErrNotExist.
func Read(path string) ([]Var, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	vars, err := Parse(f)
	if err != nil {
		return vars, fmt.Errorf("parsing %s: %w", path, err)
	}
	return vars, nil
}

// ReadMap is like Read, but folds the variables into a map; later lines win.
// A missing file yields an empty map and no error.
func ReadMap(path string) (map[string]string, error) {
	vars, err := Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	return Map(vars), err
}

func Map(vars []Var) map[string]string {
	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.Key] = v.Value
	}
	return m
}

var (
	ErrInvalidKey   = errors.New("invalid key")
	ErrInvalidValue = errors.New("invalid value")
)

// Validate reports whether key and value can be written as a line Parse
// reads back unchanged. Keys must be non empty, must not start with '#' and
// must not contain '=' or whitespace. Values must fit on a single line.
func Validate(key, value string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case strings.HasPrefix(key, "#"):
		return fmt.Errorf("%w %q: starts with '#'", ErrInvalidKey, key)
	case strings.ContainsRune(key, '='):
		return fmt.Errorf("%w %q: contains '='", ErrInvalidKey, key)
	case strings.IndexFunc(key, unicode.IsSpace) >= 0:
		return fmt.Errorf("%w %q: contains whitespace", ErrInvalidKey, key)
	case strings.ContainsAny(value, "\r\n"):
		return fmt.Errorf("%w for %s: line breaks are not supported", ErrInvalidValue, key)
	}
	return nil
}

// Write stores vars sorted by key, one KEY=value per line. Values which
// would not survive Parse unchanged are double quoted. Nothing is written
// when any of the entries fails Validate.
func Write(w io.Writer, vars map[string]string) error {
	keys := slices.Sorted(maps.Keys(vars))
	for _, k := range keys {
		if err := Validate(k, vars[k]); err != nil {
			return err
		}
	}

	bw := bufio.NewWriter(w)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s=%s\n", k, quote(vars[k])); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// quote wraps values Parse would trim or unquote.
func quote(v string) string {
	if v == "" {
		return v
	}
	if strings.TrimSpace(v) != v || Unquote(v) != v {
		return `"` + v + `"`
	}
	return v
}

// WriteFile writes vars to path with mode 0600, the file usually holds API
// keys. An existing file is left untouched when vars fail Validate.
func WriteFile(path string, vars map[string]string) error {
	for k, v := range vars {
		if err := Validate(k, v); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, vars); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
