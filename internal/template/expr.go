package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hubdeck/hubdeck/internal/entity"
)

// env carries the bindings one Render call evaluates against. self may
// be nil when the card's entity has no snapshot yet.
type env struct {
	states StateReader
	self   *entity.State
}

func (e *env) selfState() entity.Value {
	if e.self == nil {
		return entity.String("unknown")
	}
	return entity.String(e.self.State)
}

func (e *env) selfAttrs() map[string]entity.Value {
	if e.self == nil || e.self.Attributes == nil {
		return map[string]entity.Value{}
	}
	return e.self.Attributes
}

// val is the evaluator's runtime value: a scalar, or the attributes
// map when attrs is non-nil.
type val struct {
	scalar entity.Value
	attrs  map[string]entity.Value
}

func scalar(v entity.Value) val { return val{scalar: v} }

func (v val) text() string {
	if v.attrs != nil {
		b, err := json.Marshal(v.attrs)
		if err != nil {
			return "{}"
		}
		return string(b)
	}
	return v.scalar.Text()
}

func (v val) float() (float64, bool) {
	if v.attrs != nil {
		return 0, false
	}
	return v.scalar.Float()
}

func (v val) kindName() string {
	if v.attrs != nil {
		return "map"
	}
	switch v.scalar.Kind() {
	case entity.KindString:
		return "string"
	case entity.KindNumber:
		return "number"
	case entity.KindBool:
		return "boolean"
	default:
		return "null"
	}
}

// member resolves .name and ['name'] access. Missing keys resolve to
// null; only the attributes map supports member access.
func (v val) member(name string) (val, error) {
	if v.attrs == nil {
		return val{}, fmt.Errorf("cannot access %q on a %s value", name, v.kindName())
	}
	m, ok := v.attrs[name]
	if !ok {
		return scalar(entity.Null()), nil
	}
	return scalar(m), nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokString:
		return fmt.Sprintf("'%s'", t.text)
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

func (t token) isOp(op string) bool {
	return t.kind == tokOp && t.text == op
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '\'':
			return l.lexString()
		case isDigit(c):
			return l.lexNumber()
		case isIdentStart(c):
			return l.lexIdent()
		default:
			return l.lexOp()
		}
	}
	return token{kind: tokEOF}, nil
}

func (l *lexer) lexString() (token, error) {
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\'':
			l.pos++
			return token{kind: tokString, text: b.String()}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, errors.New("unterminated string")
			}
			l.pos++
			b.WriteByte(l.src[l.pos])
			l.pos++
		default:
			b.WriteByte(c)
			l.pos++
		}
	}
	return token{}, errors.New("unterminated string")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	text := l.src[start:l.pos]
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, fmt.Errorf("bad number %q", text)
	}
	return token{kind: tokNumber, text: text, num: f}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
		l.pos++
	}
	return token{kind: tokIdent, text: l.src[start:l.pos]}, nil
}

func (l *lexer) lexOp() (token, error) {
	if l.pos+2 <= len(l.src) {
		switch two := l.src[l.pos : l.pos+2]; two {
		case "==", "!=", "<=", ">=":
			l.pos += 2
			return token{kind: tokOp, text: two}, nil
		}
	}
	switch c := l.src[l.pos]; c {
	case '<', '>', '~', '(', ')', '[', ']', '.', ',', '-':
		l.pos++
		return token{kind: tokOp, text: string(c)}, nil
	default:
		return token{}, fmt.Errorf("unexpected character %q", string(c))
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool { return isIdentStart(c) || isDigit(c) }

// Grammar, lowest precedence first:
//
//	expr    = concat [ ("=="|"!="|"<"|">"|"<="|">=") concat ]
//	concat  = unary { "~" unary }
//	unary   = "-" unary | postfix
//	postfix = primary { "." ident | "[" expr "]" }
//	primary = string | number | "true" | "false" | "none"
//	        | "state" | "attributes"
//	        | "states" "(" expr ")" | "state_attr" "(" expr "," expr ")"
//	        | "(" expr ")"
type parser struct {
	lex lexer
	cur token
}

func evalExpr(src string, ev *env) (val, error) {
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return val{}, err
	}
	n, err := p.parseExpr()
	if err != nil {
		return val{}, err
	}
	if p.cur.kind != tokEOF {
		return val{}, fmt.Errorf("unexpected %s after expression", p.cur.describe())
	}
	return n.eval(ev)
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) expectOp(op string) error {
	if !p.cur.isOp(op) {
		return fmt.Errorf("expected %q, found %s", op, p.cur.describe())
	}
	return p.advance()
}

func (p *parser) parseExpr() (node, error) {
	lhs, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.cur.kind == tokOp && isCompareOp(p.cur.text) {
		op := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		return &binaryNode{op: op, lhs: lhs, rhs: rhs}, nil
	}
	return lhs, nil
}

func isCompareOp(op string) bool {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		return true
	}
	return false
}

func (p *parser) parseConcat() (node, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.isOp("~") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &binaryNode{op: "~", lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.cur.isOp("-") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.kind == tokOp {
		switch p.cur.text {
		case ".":
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.kind != tokIdent {
				return nil, fmt.Errorf("expected attribute name, found %s", p.cur.describe())
			}
			n = &attrNode{base: n, name: p.cur.text}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case "[":
			if err := p.advance(); err != nil {
				return nil, err
			}
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			n = &indexNode{base: n, key: key}
		default:
			return n, nil
		}
	}
	return n, nil
}

func (p *parser) parsePrimary() (node, error) {
	switch {
	case p.cur.kind == tokString:
		n := &litNode{v: entity.String(p.cur.text)}
		return n, p.advance()
	case p.cur.kind == tokNumber:
		n := &litNode{v: entity.Number(p.cur.num)}
		return n, p.advance()
	case p.cur.kind == tokIdent:
		return p.parseIdent()
	case p.cur.isOp("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return n, p.expectOp(")")
	default:
		return nil, fmt.Errorf("unexpected %s", p.cur.describe())
	}
}

func (p *parser) parseIdent() (node, error) {
	name := p.cur.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch name {
	case "true":
		return &litNode{v: entity.Bool(true)}, nil
	case "false":
		return &litNode{v: entity.Bool(false)}, nil
	case "none":
		return &litNode{v: entity.Null()}, nil
	case "state":
		return &stateNode{}, nil
	case "attributes":
		return &attrsNode{}, nil
	case "states":
		args, err := p.parseArgs(name)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, fmt.Errorf("states() takes one argument, got %d", len(args))
		}
		return &statesCallNode{id: args[0]}, nil
	case "state_attr":
		args, err := p.parseArgs(name)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, fmt.Errorf("state_attr() takes two arguments, got %d", len(args))
		}
		return &stateAttrCallNode{id: args[0], attr: args[1]}, nil
	default:
		return nil, fmt.Errorf("unknown name %q", name)
	}
}

func (p *parser) parseArgs(fn string) ([]node, error) {
	if !p.cur.isOp("(") {
		return nil, fmt.Errorf("%s must be called with arguments", fn)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.isOp(")") {
		return nil, p.advance()
	}
	var args []node
	for {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.cur.isOp(",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return args, p.expectOp(")")
}

type node interface {
	eval(e *env) (val, error)
}

type litNode struct{ v entity.Value }

func (n *litNode) eval(*env) (val, error) { return scalar(n.v), nil }

type stateNode struct{}

func (n *stateNode) eval(e *env) (val, error) { return scalar(e.selfState()), nil }

type attrsNode struct{}

func (n *attrsNode) eval(e *env) (val, error) { return val{attrs: e.selfAttrs()}, nil }

type statesCallNode struct{ id node }

func (n *statesCallNode) eval(e *env) (val, error) {
	idv, err := n.id.eval(e)
	if err != nil {
		return val{}, err
	}
	st, ok := e.states.Lookup(idv.text())
	if !ok || st == nil {
		return scalar(entity.String("unknown")), nil
	}
	return scalar(entity.String(st.State)), nil
}

type stateAttrCallNode struct{ id, attr node }

func (n *stateAttrCallNode) eval(e *env) (val, error) {
	idv, err := n.id.eval(e)
	if err != nil {
		return val{}, err
	}
	attrv, err := n.attr.eval(e)
	if err != nil {
		return val{}, err
	}
	st, ok := e.states.Lookup(idv.text())
	if !ok || st == nil {
		return scalar(entity.Null()), nil
	}
	v, ok := st.Attr(attrv.text())
	if !ok {
		return scalar(entity.Null()), nil
	}
	return scalar(v), nil
}

type attrNode struct {
	base node
	name string
}

func (n *attrNode) eval(e *env) (val, error) {
	base, err := n.base.eval(e)
	if err != nil {
		return val{}, err
	}
	return base.member(n.name)
}

type indexNode struct {
	base node
	key  node
}

func (n *indexNode) eval(e *env) (val, error) {
	base, err := n.base.eval(e)
	if err != nil {
		return val{}, err
	}
	key, err := n.key.eval(e)
	if err != nil {
		return val{}, err
	}
	return base.member(key.text())
}

type negNode struct{ operand node }

func (n *negNode) eval(e *env) (val, error) {
	v, err := n.operand.eval(e)
	if err != nil {
		return val{}, err
	}
	f, ok := v.float()
	if !ok {
		return val{}, fmt.Errorf("cannot negate a %s value", v.kindName())
	}
	return scalar(entity.Number(-f)), nil
}

type binaryNode struct {
	op       string
	lhs, rhs node
}

func (n *binaryNode) eval(e *env) (val, error) {
	l, err := n.lhs.eval(e)
	if err != nil {
		return val{}, err
	}
	r, err := n.rhs.eval(e)
	if err != nil {
		return val{}, err
	}
	if n.op == "~" {
		return scalar(entity.String(l.text() + r.text())), nil
	}
	return compare(n.op, l, r)
}

// compare applies one of the six comparison operators. Operands that
// both parse as numbers compare numerically, anything else by display
// text.
func compare(op string, l, r val) (val, error) {
	switch op {
	case "==", "!=":
		var eq bool
		if l.attrs != nil || r.attrs != nil {
			eq = l.text() == r.text()
		} else {
			eq = l.scalar.Equal(r.scalar)
		}
		if op == "!=" {
			eq = !eq
		}
		return scalar(entity.Bool(eq)), nil
	}
	var cmp int
	lf, lok := l.float()
	rf, rok := r.float()
	if lok && rok {
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(l.text(), r.text())
	}
	var res bool
	switch op {
	case "<":
		res = cmp < 0
	case ">":
		res = cmp > 0
	case "<=":
		res = cmp <= 0
	case ">=":
		res = cmp >= 0
	default:
		return val{}, fmt.Errorf("unsupported operator %q", op)
	}
	return scalar(entity.Bool(res)), nil
}
