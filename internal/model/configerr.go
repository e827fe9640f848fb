package model

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	cue "cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// Codes of CueErrorDetail, from the most to the least specific.
const (
	CodeUnknownField    = "unknown_field"
	CodeMissingRequired = "missing_required"
	CodeInvalidEnum     = "invalid_enum"
	CodeInvalidFormat   = "invalid_format"
	CodeTypeMismatch    = "type_mismatch"
	CodeConflict        = "conflicting_values"
	CodeValidation      = "validation_error"
)

type CueErrorDetail struct {
	Path    string // services.backend.command
	Code    string // one of the Code constants
	Message string // Human text
	Pos     CueErrorPosition
	Raw     string // message of this entry as reported by CUE
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

type rule struct {
	re     *regexp.Regexp
	code   string
	format string // takes the last path element
}

// rules are matched in order against the raw message.
var rules = []rule{
	{regexp.MustCompile(`(?i)not allowed|unknown field`), CodeUnknownField, "Field %s is not allowed"},
	{regexp.MustCompile(`(?i)incomplete value`), CodeMissingRequired, "Field %s is required"},
	{regexp.MustCompile(`(?i)does not match|out of bound =~`), CodeInvalidFormat, "Field %s has invalid format"},
	{regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible`), CodeConflict, "Conflicting values for %s"},
	{regexp.MustCompile(`(?i)must be one of|expected one of`), CodeInvalidEnum, "Field %s has invalid value"},
	{regexp.MustCompile(`(?i)expected .* got .*`), CodeTypeMismatch, "Field %s has wrong type/value"},
}

// reDisjunction matches the summary CUE puts in front of the errors of
// every alternative of a failed disjunction.
var reDisjunction = regexp.MustCompile(`(?i)^\d+ errors in empty disjunction`)

var rank = map[string]int{
	CodeUnknownField:    6,
	CodeMissingRequired: 5,
	CodeInvalidEnum:     4,
	CodeInvalidFormat:   4,
	CodeTypeMismatch:    3,
	CodeConflict:        2,
	CodeValidation:      1,
}

// CueErrDetails turns a LoadConfig error into one entry per offending
// position. Where CUE reports several errors for one position, the most
// specific one is kept. Errors not coming from CUE yield nil.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	var out []CueErrorDetail
	at := make(map[CueErrorPosition]int)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		raw := fmt.Sprintf(format, args...)
		if reDisjunction.MatchString(raw) {
			continue
		}
		pos := position(e)
		if pos.Filename == "" {
			continue
		}

		d := describe(normalizePath(e.Path()), raw)
		d.Pos = pos
		if i, ok := at[pos]; ok {
			if rank[d.Code] > rank[out[i].Code] {
				out[i] = d
			}
			continue
		}
		at[pos] = len(out)
		out = append(out, d)
	}
	return out
}

// describe classifies raw and refines the result with the schema of path:
// a conflict on a field limited to a set of strings is an invalid enum value.
func describe(path, raw string) CueErrorDetail {
	d := CueErrorDetail{Path: path, Code: CodeValidation, Message: raw, Raw: raw}
	for _, r := range rules {
		if r.re.MatchString(raw) {
			d.Code = r.code
			d.Message = fmt.Sprintf(r.format, last(path))
			break
		}
	}
	if path == "" {
		return d
	}

	field := schema.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return d
	}
	values, dflt := enumStrings(field)
	if len(values) < 2 {
		return d
	}
	if d.Code == CodeConflict {
		d.Code = CodeInvalidEnum
		d.Message = fmt.Sprintf("Field %s has invalid value", last(path))
	}
	if d.Code == CodeInvalidEnum {
		d.Message += fmt.Sprintf(": possible values (%s)", strings.Join(values, ","))
		if dflt != "" {
			d.Message += fmt.Sprintf(" (default %s)", dflt)
		}
	}
	return d
}

// enumStrings lists the concrete strings of a disjunction and its default.
func enumStrings(v cue.Value) (values []string, dflt string) {
	if d, ok := v.Default(); ok {
		dflt, _ = d.String()
	}
	op, args := v.Expr()
	if op != cue.OrOp {
		return nil, dflt
	}
	for _, a := range args {
		if a.Kind() != cue.StringKind {
			continue
		}
		if s, err := a.String(); err == nil && !slices.Contains(values, s) {
			values = append(values, s)
		}
	}
	return values, dflt
}

// position returns the first position inside a named file.
func position(err cueerrors.Error) CueErrorPosition {
	for _, p := range cueerrors.Positions(err) {
		if p.Filename() != "" {
			return CueErrorPosition{Filename: p.Filename(), Line: p.Line(), Column: p.Column()}
		}
	}
	return CueErrorPosition{}
}

func normalizePath(p []string) string {
	if len(p) > 0 && strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func last(p string) string {
	return p[strings.LastIndexByte(p, '.')+1:]
}
