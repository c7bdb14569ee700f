// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package script

import "strconv"

type node interface {
	node()
}

type litNode struct {
	v Value
}

type nameNode struct {
	name string
}

type listNode struct {
	elems []node
}

type dictNode struct {
	keys   []node
	values []node
}

type unaryNode struct {
	op string
	x  node
}

type binNode struct {
	op   string
	x, y node
}

// boolNode short-circuits and yields the deciding operand.
type boolNode struct {
	op   string
	x, y node
}

// cmpNode is a chained comparison: every adjacent pair must hold.
type cmpNode struct {
	ops      []string
	operands []node
}

type callNode struct {
	fn   node
	args []node
}

type indexNode struct {
	x node
	i node
}

type sliceNode struct {
	x      node
	lo, hi node // nil for an open end
}

type attrNode struct {
	x    node
	name string
}

type assignNode struct {
	target node
	value  node
}

func (*litNode) node()    {}
func (*nameNode) node()   {}
func (*listNode) node()   {}
func (*dictNode) node()   {}
func (*unaryNode) node()  {}
func (*binNode) node()    {}
func (*boolNode) node()   {}
func (*cmpNode) node()    {}
func (*callNode) node()   {}
func (*indexNode) node()  {}
func (*sliceNode) node()  {}
func (*attrNode) node()   {}
func (*assignNode) node() {}

type parser struct {
	toks []lexToken
	pos  int
}

func (p *parser) peek() lexToken {
	return p.toks[p.pos]
}

func (p *parser) next() lexToken {
	t := p.toks[p.pos]
	if t.kind != tEOF {
		p.pos++
	}
	return t
}

func (p *parser) atOp(text string) bool {
	t := p.peek()
	return t.kind == tOp && t.text == text
}

func (p *parser) atName(text string) bool {
	t := p.peek()
	return t.kind == tName && t.text == text
}

func (p *parser) expectOp(text string) error {
	if !p.atOp(text) {
		return syntaxf("expecting %q, found %s", text, describe(p.peek()))
	}
	p.next()
	return nil
}

func describe(t lexToken) string {
	switch t.kind {
	case tEOF:
		return "end of input"
	case tSep:
		return "end of statement"
	case tString:
		return "string"
	default:
		return strconv.Quote(t.text)
	}
}

// parseExpression parses src as a single expression.
func parseExpression(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	p.skipSeps()
	n, err := p.expression()
	if err != nil {
		return nil, err
	}
	p.skipSeps()
	if p.peek().kind != tEOF {
		return nil, syntaxf("unexpected %s after expression", describe(p.peek()))
	}
	return n, nil
}

// parseStatements parses src as a sequence of simple statements
// separated by semicolons or newlines.
func parseStatements(src string) ([]node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []node
	for {
		p.skipSeps()
		if p.peek().kind == tEOF {
			return stmts, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		switch p.peek().kind {
		case tSep:
			p.next()
		case tEOF:
		default:
			return nil, syntaxf("unexpected %s after statement", describe(p.peek()))
		}
	}
}

func (p *parser) skipSeps() {
	for p.peek().kind == tSep {
		p.next()
	}
}

// statement parses either an assignment or a bare expression.
func (p *parser) statement() (node, error) {
	x, err := p.expression()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tOp {
		return x, nil
	}
	switch t.text {
	case "=":
		p.next()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := checkTarget(x); err != nil {
			return nil, err
		}
		return &assignNode{target: x, value: value}, nil
	case "+=", "-=", "*=", "/=":
		p.next()
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := checkTarget(x); err != nil {
			return nil, err
		}
		// Augmented assignment re-reads the target.
		return &assignNode{
			target: x,
			value:  &binNode{op: t.text[:1], x: x, y: value},
		}, nil
	}
	return x, nil
}

func checkTarget(n node) error {
	switch n.(type) {
	case *nameNode, *indexNode, *attrNode:
		return nil
	}
	return syntaxf("cannot assign to this expression")
}

// expression parses an or-expression.
func (p *parser) expression() (node, error) {
	x, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.atName("or") {
		p.next()
		y, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		x = &boolNode{op: "or", x: x, y: y}
	}
	return x, nil
}

func (p *parser) andExpr() (node, error) {
	x, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.atName("and") {
		p.next()
		y, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		x = &boolNode{op: "and", x: x, y: y}
	}
	return x, nil
}

func (p *parser) notExpr() (node, error) {
	if p.atName("not") {
		p.next()
		x, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		return &unaryNode{op: "not", x: x}, nil
	}
	return p.comparison()
}

// comparison parses a possibly chained comparison.
func (p *parser) comparison() (node, error) {
	x, err := p.arith()
	if err != nil {
		return nil, err
	}
	var ops []string
	operands := []node{x}
	for {
		op, ok := p.comparisonOp()
		if !ok {
			break
		}
		y, err := p.arith()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		operands = append(operands, y)
	}
	if len(ops) == 0 {
		return x, nil
	}
	return &cmpNode{ops: ops, operands: operands}, nil
}

func (p *parser) comparisonOp() (string, bool) {
	t := p.peek()
	if t.kind == tOp {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			return t.text, true
		}
	}
	if t.kind == tName {
		switch t.text {
		case "in":
			p.next()
			return "in", true
		case "not":
			if p.toks[p.pos+1].kind == tName && p.toks[p.pos+1].text == "in" {
				p.next()
				p.next()
				return "not in", true
			}
		}
	}
	return "", false
}

func (p *parser) arith() (node, error) {
	x, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.atOp("+") || p.atOp("-") {
		op := p.next().text
		y, err := p.term()
		if err != nil {
			return nil, err
		}
		x = &binNode{op: op, x: x, y: y}
	}
	return x, nil
}

func (p *parser) term() (node, error) {
	x, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.atOp("*") || p.atOp("/") || p.atOp("//") || p.atOp("%") {
		op := p.next().text
		y, err := p.factor()
		if err != nil {
			return nil, err
		}
		x = &binNode{op: op, x: x, y: y}
	}
	return x, nil
}

func (p *parser) factor() (node, error) {
	if p.atOp("-") || p.atOp("+") {
		op := p.next().text
		x, err := p.factor()
		if err != nil {
			return nil, err
		}
		if op == "+" {
			return x, nil
		}
		return &unaryNode{op: "-", x: x}, nil
	}
	return p.postfix()
}

// postfix parses a primary followed by calls, indexes, slices and
// attribute references.
func (p *parser) postfix() (node, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOp("("):
			p.next()
			var args []node
			for !p.atOp(")") {
				arg, err := p.expression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.atOp(",") {
					p.next()
					continue
				}
				break
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			x = &callNode{fn: x, args: args}
		case p.atOp("["):
			p.next()
			var lo, hi node
			isSlice := false
			if !p.atOp(":") {
				lo, err = p.expression()
				if err != nil {
					return nil, err
				}
			}
			if p.atOp(":") {
				p.next()
				isSlice = true
				if !p.atOp("]") {
					hi, err = p.expression()
					if err != nil {
						return nil, err
					}
				}
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			if isSlice {
				x = &sliceNode{x: x, lo: lo, hi: hi}
			} else {
				x = &indexNode{x: x, i: lo}
			}
		case p.atOp("."):
			p.next()
			t := p.peek()
			if t.kind != tName {
				return nil, syntaxf("expecting attribute name, found %s", describe(t))
			}
			p.next()
			x = &attrNode{x: x, name: t.text}
		default:
			return x, nil
		}
	}
}

func (p *parser) primary() (node, error) {
	t := p.peek()
	switch t.kind {
	case tInt:
		p.next()
		v, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, syntaxf("invalid integer literal %q", t.text)
		}
		return &litNode{v: Int(v)}, nil
	case tFloat:
		p.next()
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, syntaxf("invalid float literal %q", t.text)
		}
		return &litNode{v: Float(v)}, nil
	case tString:
		p.next()
		return &litNode{v: Str(t.text)}, nil
	case tName:
		p.next()
		switch t.text {
		case "None":
			return &litNode{v: None}, nil
		case "True":
			return &litNode{v: True}, nil
		case "False":
			return &litNode{v: False}, nil
		case "and", "or", "not", "in":
			return nil, syntaxf("unexpected keyword %q", t.text)
		}
		return &nameNode{name: t.text}, nil
	case tOp:
		switch t.text {
		case "(":
			p.next()
			x, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return x, nil
		case "[":
			return p.listLiteral()
		case "{":
			return p.dictLiteral()
		}
	}
	return nil, syntaxf("unexpected %s", describe(t))
}

func (p *parser) listLiteral() (node, error) {
	p.next()
	l := &listNode{}
	for !p.atOp("]") {
		elem, err := p.expression()
		if err != nil {
			return nil, err
		}
		l.elems = append(l.elems, elem)
		if p.atOp(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectOp("]"); err != nil {
		return nil, err
	}
	return l, nil
}

func (p *parser) dictLiteral() (node, error) {
	p.next()
	d := &dictNode{}
	for !p.atOp("}") {
		key, err := p.expression()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		d.keys = append(d.keys, key)
		d.values = append(d.values, value)
		if p.atOp(",") {
			p.next()
			continue
		}
		break
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}
