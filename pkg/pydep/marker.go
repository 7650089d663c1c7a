package pydep

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/lwaddell/depscope/pkg/errors"
)

// Environment is the fixed-schema record that requirement markers are
// evaluated against. There is no dynamic variable lookup: every marker
// variable maps to exactly one field, and markers naming anything else fail
// evaluation with a structured error.
type Environment struct {
	PythonVersion                string // MAJOR.MINOR, e.g. "3.9"
	PythonFullVersion            string // full version, e.g. "3.9.18"
	SysPlatform                  string // e.g. "linux", "darwin", "win32"
	PlatformSystem               string // e.g. "Linux", "Darwin", "Windows"
	PlatformMachine              string // e.g. "x86_64", "arm64"
	PlatformRelease              string // kernel release; free text, compared as a string
	PlatformVersion              string // kernel version string
	PlatformPythonImplementation string // e.g. "CPython", "PyPy"
	OSName                       string // e.g. "posix", "nt"
	ImplementationName           string // e.g. "cpython"
	ImplementationVersion        string // full interpreter version, e.g. "3.9.18"
	Extra                        string // dependency group under evaluation; empty for none
}

// DefaultEnvironment returns the target environment used when none is
// configured: CPython on Linux.
func DefaultEnvironment() Environment {
	return Environment{
		PythonVersion:                "3.9",
		PythonFullVersion:            "3.9.0",
		SysPlatform:                  "linux",
		PlatformSystem:               "Linux",
		PlatformMachine:              "x86_64",
		PlatformPythonImplementation: "CPython",
		OSName:                       "posix",
		ImplementationName:           "cpython",
		ImplementationVersion:        "3.9.0",
	}
}

// WithExtra returns a copy of the environment with the given dependency
// group substituted as the extra under evaluation.
func (e Environment) WithExtra(extra string) Environment {
	e.Extra = extra
	return e
}

// lookup resolves a marker variable to its value. The second return reports
// whether the variable holds a version (and should compare as one).
func (e Environment) lookup(name string) (value string, versioned bool, err error) {
	switch name {
	case "python_version":
		return e.PythonVersion, true, nil
	case "python_full_version":
		return e.PythonFullVersion, true, nil
	case "sys_platform":
		return e.SysPlatform, false, nil
	case "platform_system":
		return e.PlatformSystem, false, nil
	case "platform_machine":
		return e.PlatformMachine, false, nil
	case "platform_release":
		// Kernel releases like "5.15.0-91-generic" are not reliable
		// versions; markers compare them as strings.
		return e.PlatformRelease, false, nil
	case "platform_version":
		return e.PlatformVersion, false, nil
	case "platform_python_implementation":
		return e.PlatformPythonImplementation, false, nil
	case "os_name":
		return e.OSName, false, nil
	case "implementation_name":
		return e.ImplementationName, false, nil
	case "implementation_version":
		return e.ImplementationVersion, true, nil
	case "extra":
		return e.Extra, false, nil
	}
	return "", false, errors.New(errors.ErrCodeUnresolvableRequirement, "unknown marker variable %q", name)
}

// Marker is a parsed conditional expression attached to a requirement. It is
// evaluated against an [Environment] to decide whether the requirement
// applies.
type Marker interface {
	Evaluate(env Environment) (bool, error)
	String() string
}

type boolExpr struct {
	op    string // "and" or "or"
	terms []Marker
}

func (b *boolExpr) Evaluate(env Environment) (bool, error) {
	for _, t := range b.terms {
		ok, err := t.Evaluate(env)
		if err != nil {
			return false, err
		}
		if b.op == "and" && !ok {
			return false, nil
		}
		if b.op == "or" && ok {
			return true, nil
		}
	}
	return b.op == "and", nil
}

func (b *boolExpr) String() string {
	parts := make([]string, len(b.terms))
	for i, t := range b.terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " "+b.op+" ") + ")"
}

type operand struct {
	variable string // set for variables
	literal  string // set for quoted strings
	isVar    bool
}

func (o operand) resolve(env Environment) (value string, versioned bool, err error) {
	if o.isVar {
		return env.lookup(o.variable)
	}
	return o.literal, false, nil
}

type cmpExpr struct {
	lhs operand
	op  string
	rhs operand
}

func (c *cmpExpr) Evaluate(env Environment) (bool, error) {
	lv, lver, err := c.lhs.resolve(env)
	if err != nil {
		return false, err
	}
	rv, rver, err := c.rhs.resolve(env)
	if err != nil {
		return false, err
	}

	switch c.op {
	case "in":
		return strings.Contains(rv, lv), nil
	case "not in":
		return !strings.Contains(rv, lv), nil
	}

	if lver || rver {
		return compareVersions(lv, c.op, rv)
	}
	return compareStrings(lv, c.op, rv), nil
}

func (c *cmpExpr) String() string {
	f := func(o operand) string {
		if o.isVar {
			return o.variable
		}
		return fmt.Sprintf("%q", o.literal)
	}
	return fmt.Sprintf("%s %s %s", f(c.lhs), c.op, f(c.rhs))
}

func compareStrings(lhs, op, rhs string) bool {
	switch op {
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	}
	return false
}

func compareVersions(lhs, op, rhs string) (bool, error) {
	lv, err := ParseVersion(lhs)
	if err != nil {
		return false, err
	}
	rv, err := ParseVersion(rhs)
	if err != nil {
		return false, err
	}

	cmp := lv.Compare(rv)
	switch op {
	case "==":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "~=":
		// Compatible release: at least rhs, with the rhs's last release
		// segment free to vary. "~= 3.8" means >= 3.8, == 3.*;
		// "~= 3.8.1" means >= 3.8.1, == 3.8.*.
		if cmp < 0 {
			return false, nil
		}
		if releaseSegments(rhs) >= 3 {
			return lv.Major() == rv.Major() && lv.Minor() == rv.Minor(), nil
		}
		return lv.Major() == rv.Major(), nil
	}
	return false, errors.New(errors.ErrCodeUnresolvableRequirement, "unsupported version operator %q", op)
}

// releaseSegments counts the leading all-digit dotted segments of a version
// string: "3.8" has 2, "3.8.1" has 3, "2.0rc1" has 2.
func releaseSegments(version string) int {
	n := 0
	for _, part := range strings.Split(strings.TrimSpace(version), ".") {
		digits := 0
		for digits < len(part) && part[digits] >= '0' && part[digits] <= '9' {
			digits++
		}
		if digits == 0 {
			break
		}
		n++
		if digits < len(part) {
			break
		}
	}
	return n
}

// ParseMarker parses a PEP 508 environment marker expression such as
//
//	python_version >= "3.6" and extra == "tests"
//
// into an evaluatable [Marker]. Parentheses, and/or combinators, and the
// comparison operators ==, !=, <, <=, >, >=, ~=, in and not in are
// supported.
func ParseMarker(expr string) (Marker, error) {
	toks, err := tokenizeMarker(expr)
	if err != nil {
		return nil, err
	}
	p := &markerParser{toks: toks}
	m, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "trailing tokens in marker %q", expr)
	}
	return m, nil
}

type markerToken struct {
	kind string // "ident", "string", "op", "lparen", "rparen"
	text string
}

func tokenizeMarker(expr string) ([]markerToken, error) {
	var toks []markerToken
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			toks = append(toks, markerToken{"lparen", "("})
			i++
		case c == ')':
			toks = append(toks, markerToken{"rparen", ")"})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(expr[i+1:], c)
			if end < 0 {
				return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "unterminated string in marker %q", expr)
			}
			toks = append(toks, markerToken{"string", expr[i+1 : i+1+end]})
			i += end + 2
		case strings.ContainsRune("<>=!~", rune(c)):
			j := i
			for j < len(expr) && strings.ContainsRune("<>=!~", rune(expr[j])) {
				j++
			}
			toks = append(toks, markerToken{"op", expr[i:j]})
			i = j
		case unicode.IsLetter(rune(c)) || c == '_':
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_' || expr[j] == '.') {
				j++
			}
			toks = append(toks, markerToken{"ident", expr[i:j]})
			i = j
		default:
			return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "unexpected character %q in marker %q", c, expr)
		}
	}
	return toks, nil
}

type markerParser struct {
	toks []markerToken
	pos  int
}

func (p *markerParser) peek() (markerToken, bool) {
	if p.pos >= len(p.toks) {
		return markerToken{}, false
	}
	return p.toks[p.pos], true
}

func (p *markerParser) parseOr() (Marker, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Marker{first}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "ident" || tok.text != "or" {
			break
		}
		p.pos++
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return &boolExpr{op: "or", terms: terms}, nil
}

func (p *markerParser) parseAnd() (Marker, error) {
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	terms := []Marker{first}
	for {
		tok, ok := p.peek()
		if !ok || tok.kind != "ident" || tok.text != "and" {
			break
		}
		p.pos++
		next, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return terms[0], nil
	}
	return &boolExpr{op: "and", terms: terms}, nil
}

func (p *markerParser) parseAtom() (Marker, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "unexpected end of marker")
	}
	if tok.kind == "lparen" {
		p.pos++
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok, ok := p.peek(); !ok || tok.kind != "rparen" {
			return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "missing closing parenthesis in marker")
		}
		p.pos++
		return inner, nil
	}
	return p.parseComparison()
}

func (p *markerParser) parseComparison() (Marker, error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	tok, ok := p.peek()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "marker comparison missing operator")
	}
	var op string
	switch {
	case tok.kind == "op":
		op = tok.text
		p.pos++
	case tok.kind == "ident" && tok.text == "in":
		op = "in"
		p.pos++
	case tok.kind == "ident" && tok.text == "not":
		p.pos++
		tok, ok = p.peek()
		if !ok || tok.kind != "ident" || tok.text != "in" {
			return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "expected 'in' after 'not' in marker")
		}
		op = "not in"
		p.pos++
	default:
		return nil, errors.New(errors.ErrCodeUnresolvableRequirement, "invalid marker operator %q", tok.text)
	}

	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &cmpExpr{lhs: lhs, op: op, rhs: rhs}, nil
}

func (p *markerParser) parseOperand() (operand, error) {
	tok, ok := p.peek()
	if !ok {
		return operand{}, errors.New(errors.ErrCodeUnresolvableRequirement, "marker comparison missing operand")
	}
	switch tok.kind {
	case "ident":
		p.pos++
		return operand{variable: tok.text, isVar: true}, nil
	case "string":
		p.pos++
		return operand{literal: tok.text}, nil
	}
	return operand{}, errors.New(errors.ErrCodeUnresolvableRequirement, "invalid marker operand %q", tok.text)
}
