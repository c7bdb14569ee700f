package script

import (
	"math"
	"strings"
)

// Host evaluates script source against an Env. Parsed source is cached,
// so code evaluated repeatedly (loop conditions, macro bodies) is only
// parsed once.
type Host struct {
	exprs map[string]node
	stmts map[string][]node
}

// NewHost creates a Host with empty caches.
func NewHost() *Host {
	return &Host{
		exprs: make(map[string]node),
		stmts: make(map[string][]node),
	}
}

// Evaluate evaluates a single expression. Empty or blank source
// evaluates to None.
func (h *Host) Evaluate(code string, env *Env) (Value, error) {
	if strings.TrimSpace(code) == "" {
		return None, nil
	}
	n, ok := h.exprs[code]
	if !ok {
		parsed, err := parseExpression(code)
		if err != nil {
			return nil, err
		}
		h.exprs[code] = parsed
		n = parsed
	}
	return h.eval(n, env)
}

// Execute runs a span of statements.
func (h *Host) Execute(code string, env *Env) error {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	stmts, ok := h.stmts[code]
	if !ok {
		parsed, err := parseStatements(code)
		if err != nil {
			return err
		}
		h.stmts[code] = parsed
		stmts = parsed
	}
	for _, stmt := range stmts {
		if err := h.exec(stmt, env); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) exec(n node, env *Env) error {
	if a, ok := n.(*assignNode); ok {
		value, err := h.eval(a.value, env)
		if err != nil {
			return err
		}
		return h.assign(a.target, value, env)
	}
	_, err := h.eval(n, env)
	return err
}

func (h *Host) assign(target node, value Value, env *Env) error {
	switch t := target.(type) {
	case *nameNode:
		env.Assign(t.name, value)
		return nil
	case *indexNode:
		obj, err := h.eval(t.x, env)
		if err != nil {
			return err
		}
		idx, err := h.eval(t.i, env)
		if err != nil {
			return err
		}
		return setIndex(obj, idx, value)
	case *attrNode:
		obj, err := h.eval(t.x, env)
		if err != nil {
			return err
		}
		if m, ok := obj.(*Module); ok {
			m.SetAttr(t.name, value)
			return nil
		}
		return Raise(TypeError, "cannot set attribute on %s", obj.Type())
	}
	return syntaxf("cannot assign to this expression")
}

func setIndex(obj, idx, value Value) error {
	switch o := obj.(type) {
	case *List:
		i, ok := idx.(Int)
		if !ok {
			return Raise(TypeError, "list index must be int, not %s", idx.Type())
		}
		j := int(i)
		if j < 0 {
			j += len(o.Items)
		}
		if j < 0 || j >= len(o.Items) {
			return Raise(IndexError, "list assignment index out of range")
		}
		o.Items[j] = value
		return nil
	case *Dict:
		o.Set(idx, value)
		return nil
	}
	return Raise(TypeError, "%s does not support item assignment", obj.Type())
}

func (h *Host) eval(n node, env *Env) (Value, error) {
	switch x := n.(type) {
	case *litNode:
		return x.v, nil
	case *nameNode:
		v, ok := env.Lookup(x.name)
		if !ok {
			return nil, Raise(NameError, "name %q is not defined", x.name)
		}
		return v, nil
	case *listNode:
		items := make([]Value, len(x.elems))
		for i, elem := range x.elems {
			v, err := h.eval(elem, env)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &List{Items: items}, nil
	case *dictNode:
		d := NewDict()
		for i := range x.keys {
			k, err := h.eval(x.keys[i], env)
			if err != nil {
				return nil, err
			}
			v, err := h.eval(x.values[i], env)
			if err != nil {
				return nil, err
			}
			d.Set(k, v)
		}
		return d, nil
	case *unaryNode:
		return h.evalUnary(x, env)
	case *binNode:
		a, err := h.eval(x.x, env)
		if err != nil {
			return nil, err
		}
		b, err := h.eval(x.y, env)
		if err != nil {
			return nil, err
		}
		return binop(x.op, a, b)
	case *boolNode:
		a, err := h.eval(x.x, env)
		if err != nil {
			return nil, err
		}
		if x.op == "and" {
			if !a.Truth() {
				return a, nil
			}
		} else if a.Truth() {
			return a, nil
		}
		return h.eval(x.y, env)
	case *cmpNode:
		return h.evalCmp(x, env)
	case *callNode:
		return h.evalCall(x, env)
	case *indexNode:
		obj, err := h.eval(x.x, env)
		if err != nil {
			return nil, err
		}
		idx, err := h.eval(x.i, env)
		if err != nil {
			return nil, err
		}
		return getIndex(obj, idx)
	case *sliceNode:
		return h.evalSlice(x, env)
	case *attrNode:
		obj, err := h.eval(x.x, env)
		if err != nil {
			return nil, err
		}
		return getAttr(obj, x.name)
	case *assignNode:
		return nil, syntaxf("assignment is not an expression")
	}
	return nil, syntaxf("unhandled expression form")
}

func (h *Host) evalUnary(x *unaryNode, env *Env) (Value, error) {
	v, err := h.eval(x.x, env)
	if err != nil {
		return nil, err
	}
	switch x.op {
	case "not":
		return Bool(!v.Truth()), nil
	case "-":
		switch n := v.(type) {
		case Int:
			return -n, nil
		case Float:
			return -n, nil
		}
		return nil, Raise(TypeError, "cannot negate %s", v.Type())
	}
	return nil, syntaxf("unhandled unary operator %q", x.op)
}

func (h *Host) evalCmp(x *cmpNode, env *Env) (Value, error) {
	left, err := h.eval(x.operands[0], env)
	if err != nil {
		return nil, err
	}
	for i, op := range x.ops {
		right, err := h.eval(x.operands[i+1], env)
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return False, nil
		}
		left = right
	}
	return True, nil
}

func (h *Host) evalCall(x *callNode, env *Env) (Value, error) {
	fn, err := h.eval(x.fn, env)
	if err != nil {
		return nil, err
	}
	args := make([]Value, len(x.args))
	for i, arg := range x.args {
		v, err := h.eval(arg, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch f := fn.(type) {
	case *Func:
		return f.Call(env, args)
	case *Class:
		switch len(args) {
		case 0:
			return &Error{Class: f}, nil
		case 1:
			return &Error{Class: f, Message: args[0].String()}, nil
		}
		return nil, Raise(TypeError, "%s() takes at most 1 argument", f.Name)
	}
	return nil, Raise(TypeError, "%s is not callable", fn.Type())
}

func (h *Host) evalSlice(x *sliceNode, env *Env) (Value, error) {
	obj, err := h.eval(x.x, env)
	if err != nil {
		return nil, err
	}
	var length int
	switch o := obj.(type) {
	case *List:
		length = len(o.Items)
	case Str:
		length = len([]rune(string(o)))
	default:
		return nil, Raise(TypeError, "%s cannot be sliced", obj.Type())
	}
	lo, err := h.sliceBound(x.lo, 0, length, env)
	if err != nil {
		return nil, err
	}
	hi, err := h.sliceBound(x.hi, length, length, env)
	if err != nil {
		return nil, err
	}
	if lo > hi {
		lo = hi
	}
	switch o := obj.(type) {
	case *List:
		return &List{Items: append([]Value(nil), o.Items[lo:hi]...)}, nil
	case Str:
		return Str(string([]rune(string(o))[lo:hi])), nil
	}
	return nil, Raise(TypeError, "%s cannot be sliced", obj.Type())
}

func (h *Host) sliceBound(n node, dflt, length int, env *Env) (int, error) {
	if n == nil {
		return dflt, nil
	}
	v, err := h.eval(n, env)
	if err != nil {
		return 0, err
	}
	i, ok := v.(Int)
	if !ok {
		return 0, Raise(TypeError, "slice bound must be int, not %s", v.Type())
	}
	j := int(i)
	if j < 0 {
		j += length
	}
	if j < 0 {
		j = 0
	}
	if j > length {
		j = length
	}
	return j, nil
}

func getIndex(obj, idx Value) (Value, error) {
	switch o := obj.(type) {
	case *List:
		i, ok := idx.(Int)
		if !ok {
			return nil, Raise(TypeError, "list index must be int, not %s", idx.Type())
		}
		j := int(i)
		if j < 0 {
			j += len(o.Items)
		}
		if j < 0 || j >= len(o.Items) {
			return nil, Raise(IndexError, "list index out of range")
		}
		return o.Items[j], nil
	case Str:
		i, ok := idx.(Int)
		if !ok {
			return nil, Raise(TypeError, "string index must be int, not %s", idx.Type())
		}
		rs := []rune(string(o))
		j := int(i)
		if j < 0 {
			j += len(rs)
		}
		if j < 0 || j >= len(rs) {
			return nil, Raise(IndexError, "string index out of range")
		}
		return Str(string(rs[j])), nil
	case *Dict:
		v, ok := o.Get(idx)
		if !ok {
			return nil, Raise(KeyError, "%s", idx.Repr())
		}
		return v, nil
	}
	return nil, Raise(TypeError, "%s is not subscriptable", obj.Type())
}

func binop(op string, a, b Value) (Value, error) {
	switch op {
	case "+":
		return add(a, b)
	case "-", "*", "/", "//", "%":
		return arithmetic(op, a, b)
	}
	return nil, syntaxf("unhandled operator %q", op)
}

func add(a, b Value) (Value, error) {
	if s, ok := a.(Str); ok {
		if t, ok := b.(Str); ok {
			return s + t, nil
		}
	}
	if l, ok := a.(*List); ok {
		if m, ok := b.(*List); ok {
			items := append([]Value(nil), l.Items...)
			return &List{Items: append(items, m.Items...)}, nil
		}
	}
	return arithmetic("+", a, b)
}

func arithmetic(op string, a, b Value) (Value, error) {
	if op == "*" {
		if v, ok, err := repeat(a, b); ok {
			return v, err
		}
	}
	ai, aInt := a.(Int)
	bi, bInt := b.(Int)
	if aInt && bInt {
		return intOp(op, int64(ai), int64(bi))
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, Raise(TypeError, "unsupported operands for %s: %s and %s", op, a.Type(), b.Type())
	}
	return floatOp(op, af, bf)
}

// repeat implements sequence repetition for *.
func repeat(a, b Value) (Value, bool, error) {
	n, seq := Int(0), Value(nil)
	switch {
	case a.Type() == "int" && (b.Type() == "str" || b.Type() == "list"):
		n, seq = a.(Int), b
	case b.Type() == "int" && (a.Type() == "str" || a.Type() == "list"):
		n, seq = b.(Int), a
	default:
		return nil, false, nil
	}
	count := int(n)
	if count < 0 {
		count = 0
	}
	switch s := seq.(type) {
	case Str:
		return Str(strings.Repeat(string(s), count)), true, nil
	case *List:
		items := make([]Value, 0, count*len(s.Items))
		for i := 0; i < count; i++ {
			items = append(items, s.Items...)
		}
		return &List{Items: items}, true, nil
	}
	return nil, false, nil
}

func intOp(op string, a, b int64) (Value, error) {
	switch op {
	case "+":
		return Int(a + b), nil
	case "-":
		return Int(a - b), nil
	case "*":
		return Int(a * b), nil
	case "/":
		if b == 0 {
			return nil, Raise(ZeroDivisionError, "division by zero")
		}
		return Float(float64(a) / float64(b)), nil
	case "//":
		if b == 0 {
			return nil, Raise(ZeroDivisionError, "integer division by zero")
		}
		q := a / b
		if a%b != 0 && (a < 0) != (b < 0) {
			q--
		}
		return Int(q), nil
	case "%":
		if b == 0 {
			return nil, Raise(ZeroDivisionError, "integer modulo by zero")
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Int(m), nil
	}
	return nil, syntaxf("unhandled operator %q", op)
}

func floatOp(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return Float(a + b), nil
	case "-":
		return Float(a - b), nil
	case "*":
		return Float(a * b), nil
	case "/":
		if b == 0 {
			return nil, Raise(ZeroDivisionError, "float division by zero")
		}
		return Float(a / b), nil
	case "//":
		if b == 0 {
			return nil, Raise(ZeroDivisionError, "float floor division by zero")
		}
		return Float(math.Floor(a / b)), nil
	case "%":
		if b == 0 {
			return nil, Raise(ZeroDivisionError, "float modulo by zero")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return Float(m), nil
	}
	return nil, syntaxf("unhandled operator %q", op)
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

func compare(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return a.Equals(b), nil
	case "!=":
		return !a.Equals(b), nil
	case "in":
		return contains(b, a)
	case "not in":
		ok, err := contains(b, a)
		return !ok, err
	}
	c, err := order(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, syntaxf("unhandled comparison %q", op)
}

// order returns -1, 0 or 1 for values with a defined ordering.
func order(a, b Value) (int, error) {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			}
			return 0, nil
		}
	}
	if as, ok := a.(Str); ok {
		if bs, ok := b.(Str); ok {
			return strings.Compare(string(as), string(bs)), nil
		}
	}
	if al, ok := a.(*List); ok {
		if bl, ok := b.(*List); ok {
			for i := 0; i < len(al.Items) && i < len(bl.Items); i++ {
				c, err := order(al.Items[i], bl.Items[i])
				if err != nil {
					return 0, err
				}
				if c != 0 {
					return c, nil
				}
			}
			switch {
			case len(al.Items) < len(bl.Items):
				return -1, nil
			case len(al.Items) > len(bl.Items):
				return 1, nil
			}
			return 0, nil
		}
	}
	return 0, Raise(TypeError, "cannot order %s and %s", a.Type(), b.Type())
}

func contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case Str:
		s, ok := item.(Str)
		if !ok {
			return false, Raise(TypeError, "cannot search for %s in str", item.Type())
		}
		return strings.Contains(string(c), string(s)), nil
	case *List:
		for _, v := range c.Items {
			if v.Equals(item) {
				return true, nil
			}
		}
		return false, nil
	case *Dict:
		_, ok := c.Get(item)
		return ok, nil
	}
	return false, Raise(TypeError, "%s is not a container", container.Type())
}

// Iterate returns the items a for-loop visits: list elements, string
// characters, or dict keys.
func Iterate(v Value) ([]Value, error) {
	switch c := v.(type) {
	case *List:
		return append([]Value(nil), c.Items...), nil
	case Str:
		rs := []rune(string(c))
		items := make([]Value, len(rs))
		for i, r := range rs {
			items[i] = Str(string(r))
		}
		return items, nil
	case *Dict:
		return c.Keys(), nil
	}
	return nil, Raise(TypeError, "%s is not iterable", v.Type())
}
