// Package condexpr evaluates small arithmetic/comparison expressions
// against bound numeric variables. Rule files are authored by analysts,
// not engineers, so a typo must fail closed instead of crashing an
// evaluation run: callers treat any returned error as "condition not met".
//
// The grammar is deliberately tiny: numbers, identifiers, arithmetic,
// chained comparisons, and/or/not. No function calls, no strings, no
// access to anything that is not explicitly bound in the namespace.
package condexpr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// ErrUndefinedVariable is wrapped into errors returned when a condition
// references an identifier absent from the namespace. Callers use
// IsUndefinedVariable to treat missing metrics as an expected skip
// rather than an authoring mistake.
var ErrUndefinedVariable = eris.New("condexpr: undefined variable")

// IsUndefinedVariable reports whether err stems from a variable lookup miss.
func IsUndefinedVariable(err error) bool {
	return eris.Is(err, ErrUndefinedVariable)
}

// Eval parses and evaluates condition against the given namespace.
// The result of a top-level arithmetic expression is truthy when non-zero,
// matching the reference engine's behavior for conditions like "value".
func Eval(condition string, ns map[string]float64) (bool, error) {
	expr, err := Parse(condition)
	if err != nil {
		return false, err
	}
	return expr.Eval(ns)
}

// EvalVar evaluates condition with a single variable named "value" bound.
func EvalVar(condition string, value float64) (bool, error) {
	return Eval(condition, map[string]float64{"value": value})
}

// Parse compiles a condition string into a reusable expression tree.
// Engines that evaluate the same rule against many stocks can parse once.
func Parse(condition string) (*Expr, error) {
	toks, err := lex(condition)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, eris.Errorf("condexpr: unexpected %q at position %d", p.peek().text, p.peek().pos)
	}
	return &Expr{root: n, src: condition}, nil
}

// Expr is a parsed condition.
type Expr struct {
	root node
	src  string
}

// Eval evaluates the parsed condition against a namespace.
func (e *Expr) Eval(ns map[string]float64) (bool, error) {
	v, err := e.root.eval(ns)
	if err != nil {
		return false, err
	}
	return v.truthy(), nil
}

// String returns the original source text.
func (e *Expr) String() string { return e.src }

// Vars returns the distinct identifiers referenced by the condition,
// in first-appearance order. Used by the rule-set linter.
func (e *Expr) Vars() []string {
	seen := map[string]bool{}
	var out []string
	e.root.vars(seen, &out)
	return out
}

// value is either a number or a boolean produced by a comparison.
// Booleans participate in arithmetic as 0/1, mirroring the reference
// engine's loose numeric model.
type value struct {
	num    float64
	isBool bool
}

func numVal(f float64) value { return value{num: f} }

func boolVal(b bool) value {
	if b {
		return value{num: 1, isBool: true}
	}
	return value{num: 0, isBool: true}
}

func (v value) truthy() bool { return v.num != 0 }

type node interface {
	eval(ns map[string]float64) (value, error)
	vars(seen map[string]bool, out *[]string)
}

type numberNode struct{ v float64 }

func (n numberNode) eval(map[string]float64) (value, error) { return numVal(n.v), nil }
func (n numberNode) vars(map[string]bool, *[]string)        {}

type identNode struct{ name string }

func (n identNode) eval(ns map[string]float64) (value, error) {
	v, ok := ns[n.name]
	if !ok {
		return value{}, eris.Wrapf(ErrUndefinedVariable, "%q", n.name)
	}
	return numVal(v), nil
}

func (n identNode) vars(seen map[string]bool, out *[]string) {
	if !seen[n.name] {
		seen[n.name] = true
		*out = append(*out, n.name)
	}
}

type unaryNode struct {
	op   string // "-" or "not"
	expr node
}

func (n unaryNode) eval(ns map[string]float64) (value, error) {
	v, err := n.expr.eval(ns)
	if err != nil {
		return value{}, err
	}
	if n.op == "-" {
		return numVal(-v.num), nil
	}
	return boolVal(!v.truthy()), nil
}

func (n unaryNode) vars(seen map[string]bool, out *[]string) { n.expr.vars(seen, out) }

type binaryNode struct {
	op          string // "+", "-", "*", "/", "and", "or"
	left, right node
}

func (n binaryNode) eval(ns map[string]float64) (value, error) {
	l, err := n.left.eval(ns)
	if err != nil {
		return value{}, err
	}

	// Short-circuit booleans before touching the right side, so a
	// missing metric behind "and" does not poison the whole condition.
	switch n.op {
	case "and":
		if !l.truthy() {
			return boolVal(false), nil
		}
		r, err := n.right.eval(ns)
		if err != nil {
			return value{}, err
		}
		return boolVal(r.truthy()), nil
	case "or":
		if l.truthy() {
			return boolVal(true), nil
		}
		r, err := n.right.eval(ns)
		if err != nil {
			return value{}, err
		}
		return boolVal(r.truthy()), nil
	}

	r, err := n.right.eval(ns)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "+":
		return numVal(l.num + r.num), nil
	case "-":
		return numVal(l.num - r.num), nil
	case "*":
		return numVal(l.num * r.num), nil
	case "/":
		if r.num == 0 {
			return value{}, eris.New("condexpr: division by zero")
		}
		return numVal(l.num / r.num), nil
	}
	return value{}, eris.Errorf("condexpr: unknown operator %q", n.op)
}

func (n binaryNode) vars(seen map[string]bool, out *[]string) {
	n.left.vars(seen, out)
	n.right.vars(seen, out)
}

// compareNode holds a chained comparison: operands[0] op[0] operands[1]
// op[1] operands[2] ... Each link must hold, so "0 <= value < 0.10"
// behaves the way rule authors expect.
type compareNode struct {
	operands []node
	ops      []string
}

func (n compareNode) eval(ns map[string]float64) (value, error) {
	prev, err := n.operands[0].eval(ns)
	if err != nil {
		return value{}, err
	}
	for i, op := range n.ops {
		next, err := n.operands[i+1].eval(ns)
		if err != nil {
			return value{}, err
		}
		if !compareFloat(prev.num, op, next.num) {
			return boolVal(false), nil
		}
		prev = next
	}
	return boolVal(true), nil
}

func (n compareNode) vars(seen map[string]bool, out *[]string) {
	for _, o := range n.operands {
		o.vars(seen, out)
	}
}

func compareFloat(a float64, op string, b float64) bool {
	switch op {
	case ">":
		return a > b
	case ">=":
		return a >= b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case "==":
		return a == b
	case "!=":
		return a != b
	}
	return false
}

// --- lexer ---

type tokKind int

const (
	tokNumber tokKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.' || src[i] == 'e' || src[i] == 'E' ||
				((src[i] == '+' || src[i] == '-') && i > start && (src[i-1] == 'e' || src[i-1] == 'E'))) {
				i++
			}
			text := src[start:i]
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, eris.Errorf("condexpr: bad number %q at position %d", text, start)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: f, pos: start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case strings.ContainsRune("><=!+-*/&|", rune(c)):
			start := i
			op, n, err := lexOp(src[i:])
			if err != nil {
				return nil, eris.Errorf("condexpr: %v at position %d", err, start)
			}
			i += n
			toks = append(toks, token{kind: tokOp, text: op, pos: start})
		default:
			return nil, eris.Errorf("condexpr: unexpected character %q at position %d", c, i)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func lexOp(s string) (string, int, error) {
	two := ""
	if len(s) >= 2 {
		two = s[:2]
	}
	switch two {
	case ">=", "<=", "==", "!=":
		return two, 2, nil
	case "&&":
		return "and", 2, nil
	case "||":
		return "or", 2, nil
	}
	switch s[0] {
	case '>', '<', '+', '-', '*', '/':
		return string(s[0]), 1, nil
	case '!':
		return "not", 1, nil
	case '=':
		return "", 0, fmt.Errorf("single '=' (use '==')")
	}
	return "", 0, fmt.Errorf("unknown operator %q", s[0])
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// --- parser ---

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) acceptOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.kind == tokOp {
		for _, op := range ops {
			if t.text == op {
				p.next()
				return op, true
			}
		}
	}
	// "and"/"or"/"not" arrive as identifiers from the lexer.
	if t.kind == tokIdent {
		for _, op := range ops {
			if (op == "and" || op == "or" || op == "not") && t.text == op {
				p.next()
				return op, true
			}
		}
	}
	return "", false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("or"); !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "or", left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.acceptOp("and"); !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: "and", left: left, right: right}
	}
}

func (p *parser) parseNot() (node, error) {
	if _, ok := p.acceptOp("not"); ok {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "not", expr: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	operands := []node{first}
	var ops []string
	for {
		op, ok := p.acceptOp(">", ">=", "<", "<=", "==", "!=")
		if !ok {
			break
		}
		next, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return first, nil
	}
	return compareNode{operands: operands, ops: ops}, nil
}

func (p *parser) parseArith() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if _, ok := p.acceptOp("-"); ok {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{op: "-", expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tokNumber:
		p.next()
		return numberNode{v: t.num}, nil
	case tokIdent:
		if t.text == "and" || t.text == "or" || t.text == "not" {
			return nil, eris.Errorf("condexpr: unexpected keyword %q at position %d", t.text, t.pos)
		}
		p.next()
		return identNode{name: t.text}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, eris.Errorf("condexpr: missing ')' at position %d", p.peek().pos)
		}
		p.next()
		return inner, nil
	case tokEOF:
		return nil, eris.New("condexpr: unexpected end of expression")
	}
	return nil, eris.Errorf("condexpr: unexpected %q at position %d", t.text, t.pos)
}
