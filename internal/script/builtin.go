package script

import (
	"io"
	"sort"
	"strconv"
	"strings"
)

func bfn(name string, fn func(env *Env, args []Value) (Value, error)) *Func {
	return &Func{Name: name, Fn: fn}
}

var builtins = map[string]Value{
	"Error":             ErrorClass,
	"TypeError":         TypeError,
	"ValueError":        ValueError,
	"NameError":         NameError,
	"AttributeError":    AttributeError,
	"IndexError":        IndexError,
	"KeyError":          KeyError,
	"ZeroDivisionError": ZeroDivisionError,

	"len":       bfn("len", builtinLen),
	"str":       bfn("str", builtinStr),
	"repr":      bfn("repr", builtinRepr),
	"int":       bfn("int", builtinInt),
	"float":     bfn("float", builtinFloat),
	"bool":      bfn("bool", builtinBool),
	"type":      bfn("type", builtinType),
	"range":     bfn("range", builtinRange),
	"print":     bfn("print", builtinPrint),
	"abs":       bfn("abs", builtinAbs),
	"min":       bfn("min", builtinMin),
	"max":       bfn("max", builtinMax),
	"sum":       bfn("sum", builtinSum),
	"sorted":    bfn("sorted", builtinSorted),
	"list":      bfn("list", builtinList),
	"enumerate": bfn("enumerate", builtinEnumerate),
	"chr":       bfn("chr", builtinChr),
	"ord":       bfn("ord", builtinOrd),
}

// Builtin resolves a builtin name. Globals shadow builtins, so this is
// the last stop in name resolution.
func Builtin(name string) (Value, bool) {
	v, ok := builtins[name]
	return v, ok
}

func wantArgs(name string, args []Value, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return Raise(TypeError, "%s() takes %d argument(s), got %d", name, lo, len(args))
		}
		return Raise(TypeError, "%s() takes %d to %d arguments, got %d", name, lo, hi, len(args))
	}
	return nil
}

func builtinLen(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("len", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case Str:
		return Int(len([]rune(string(v)))), nil
	case *List:
		return Int(len(v.Items)), nil
	case *Dict:
		return Int(v.Len()), nil
	}
	return nil, Raise(TypeError, "%s has no length", args[0].Type())
}

func builtinStr(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("str", args, 1, 1); err != nil {
		return nil, err
	}
	return Str(args[0].String()), nil
}

func builtinRepr(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("repr", args, 1, 1); err != nil {
		return nil, err
	}
	return Str(args[0].Repr()), nil
}

func builtinInt(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("int", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case Int:
		return v, nil
	case Float:
		return Int(int64(v)), nil
	case Bool:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	case Str:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return nil, Raise(ValueError, "invalid literal for int(): %s", v.Repr())
		}
		return Int(n), nil
	}
	return nil, Raise(TypeError, "cannot convert %s to int", args[0].Type())
}

func builtinFloat(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("float", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case Int:
		return Float(v), nil
	case Float:
		return v, nil
	case Str:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil {
			return nil, Raise(ValueError, "invalid literal for float(): %s", v.Repr())
		}
		return Float(f), nil
	}
	return nil, Raise(TypeError, "cannot convert %s to float", args[0].Type())
}

func builtinBool(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("bool", args, 1, 1); err != nil {
		return nil, err
	}
	return Bool(args[0].Truth()), nil
}

func builtinType(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("type", args, 1, 1); err != nil {
		return nil, err
	}
	return Str(args[0].Type()), nil
}

func builtinRange(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("range", args, 1, 3); err != nil {
		return nil, err
	}
	nums := make([]int64, len(args))
	for i, arg := range args {
		n, ok := arg.(Int)
		if !ok {
			return nil, Raise(TypeError, "range() argument must be int, not %s", arg.Type())
		}
		nums[i] = int64(n)
	}
	start, stop, step := int64(0), int64(0), int64(1)
	switch len(nums) {
	case 1:
		stop = nums[0]
	case 2:
		start, stop = nums[0], nums[1]
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	}
	if step == 0 {
		return nil, Raise(ValueError, "range() step must not be zero")
	}
	var items []Value
	if step > 0 {
		for i := start; i < stop; i += step {
			items = append(items, Int(i))
		}
	} else {
		for i := start; i > stop; i += step {
			items = append(items, Int(i))
		}
	}
	return &List{Items: items}, nil
}

func builtinPrint(env *Env, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	if env.Output != nil {
		if _, err := io.WriteString(env.Output, strings.Join(parts, " ")+"\n"); err != nil {
			return nil, err
		}
	}
	return None, nil
}

func builtinAbs(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("abs", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case Int:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	case Float:
		if v < 0 {
			return -v, nil
		}
		return v, nil
	}
	return nil, Raise(TypeError, "abs() argument must be numeric, not %s", args[0].Type())
}

func extremum(name string, args []Value, keep func(cmp int) bool) (Value, error) {
	items := args
	if len(args) == 1 {
		l, ok := args[0].(*List)
		if !ok {
			return nil, Raise(TypeError, "%s() single argument must be list, not %s", name, args[0].Type())
		}
		items = l.Items
	}
	if len(items) == 0 {
		return nil, Raise(ValueError, "%s() of empty sequence", name)
	}
	best := items[0]
	for _, item := range items[1:] {
		c, err := order(item, best)
		if err != nil {
			return nil, err
		}
		if keep(c) {
			best = item
		}
	}
	return best, nil
}

func builtinMin(_ *Env, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, Raise(TypeError, "min() expects at least 1 argument")
	}
	return extremum("min", args, func(c int) bool { return c < 0 })
}

func builtinMax(_ *Env, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, Raise(TypeError, "max() expects at least 1 argument")
	}
	return extremum("max", args, func(c int) bool { return c > 0 })
}

func builtinSum(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("sum", args, 1, 1); err != nil {
		return nil, err
	}
	l, ok := args[0].(*List)
	if !ok {
		return nil, Raise(TypeError, "sum() argument must be list, not %s", args[0].Type())
	}
	var total Value = Int(0)
	for _, item := range l.Items {
		next, err := arithmetic("+", total, item)
		if err != nil {
			return nil, err
		}
		total = next
	}
	return total, nil
}

func builtinSorted(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("sorted", args, 1, 1); err != nil {
		return nil, err
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	var sortErr error
	sort.SliceStable(items, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		c, err := order(items[i], items[j])
		if err != nil {
			sortErr = err
			return false
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return &List{Items: items}, nil
}

func builtinList(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("list", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return &List{}, nil
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	return &List{Items: items}, nil
}

// enumerate returns [index, item] pairs so loop bodies can index without
// a separate counter.
func builtinEnumerate(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("enumerate", args, 1, 1); err != nil {
		return nil, err
	}
	items, err := Iterate(args[0])
	if err != nil {
		return nil, err
	}
	pairs := make([]Value, len(items))
	for i, item := range items {
		pairs[i] = &List{Items: []Value{Int(i), item}}
	}
	return &List{Items: pairs}, nil
}

func builtinChr(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("chr", args, 1, 1); err != nil {
		return nil, err
	}
	n, ok := args[0].(Int)
	if !ok {
		return nil, Raise(TypeError, "chr() argument must be int, not %s", args[0].Type())
	}
	return Str(string(rune(n))), nil
}

func builtinOrd(_ *Env, args []Value) (Value, error) {
	if err := wantArgs("ord", args, 1, 1); err != nil {
		return nil, err
	}
	s, ok := args[0].(Str)
	if !ok {
		return nil, Raise(TypeError, "ord() argument must be str, not %s", args[0].Type())
	}
	rs := []rune(string(s))
	if len(rs) != 1 {
		return nil, Raise(ValueError, "ord() expects a single character")
	}
	return Int(rs[0]), nil
}

// getAttr resolves attribute access: module attributes, the message of
// an error instance, and bound methods on strings, lists and dicts.
func getAttr(obj Value, name string) (Value, error) {
	switch o := obj.(type) {
	case *Module:
		if v, ok := o.Attr(name); ok {
			return v, nil
		}
	case *Error:
		if name == "message" {
			return Str(o.Message), nil
		}
	case Str:
		if m, ok := strMethod(o, name); ok {
			return m, nil
		}
	case *List:
		if m, ok := listMethod(o, name); ok {
			return m, nil
		}
	case *Dict:
		if m, ok := dictMethod(o, name); ok {
			return m, nil
		}
	}
	return nil, Raise(AttributeError, "%s has no attribute %q", obj.Type(), name)
}

func strMethod(s Str, name string) (Value, bool) {
	str1 := func(fn func(string) string) *Func {
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			return Str(fn(string(s))), nil
		})
	}
	switch name {
	case "upper":
		return str1(strings.ToUpper), true
	case "lower":
		return str1(strings.ToLower), true
	case "strip":
		return str1(strings.TrimSpace), true
	case "lstrip":
		return str1(func(x string) string { return strings.TrimLeft(x, " \t\r\n\v\f") }), true
	case "rstrip":
		return str1(func(x string) string { return strings.TrimRight(x, " \t\r\n\v\f") }), true
	case "capitalize":
		return str1(func(x string) string {
			if x == "" {
				return x
			}
			rs := []rune(x)
			return strings.ToUpper(string(rs[0])) + strings.ToLower(string(rs[1:]))
		}), true
	case "split":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 1); err != nil {
				return nil, err
			}
			var parts []string
			if len(args) == 0 {
				parts = strings.Fields(string(s))
			} else {
				sep, ok := args[0].(Str)
				if !ok {
					return nil, Raise(TypeError, "split() separator must be str, not %s", args[0].Type())
				}
				parts = strings.Split(string(s), string(sep))
			}
			items := make([]Value, len(parts))
			for i, part := range parts {
				items[i] = Str(part)
			}
			return &List{Items: items}, nil
		}), true
	case "join":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			l, ok := args[0].(*List)
			if !ok {
				return nil, Raise(TypeError, "join() argument must be list, not %s", args[0].Type())
			}
			parts := make([]string, len(l.Items))
			for i, item := range l.Items {
				part, ok := item.(Str)
				if !ok {
					return nil, Raise(TypeError, "join() list must hold str, not %s", item.Type())
				}
				parts[i] = string(part)
			}
			return Str(strings.Join(parts, string(s))), nil
		}), true
	case "replace":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 2, 2); err != nil {
				return nil, err
			}
			from, ok1 := args[0].(Str)
			to, ok2 := args[1].(Str)
			if !ok1 || !ok2 {
				return nil, Raise(TypeError, "replace() arguments must be str")
			}
			return Str(strings.ReplaceAll(string(s), string(from), string(to))), nil
		}), true
	case "startswith", "endswith":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			fix, ok := args[0].(Str)
			if !ok {
				return nil, Raise(TypeError, "%s() argument must be str, not %s", name, args[0].Type())
			}
			if name == "startswith" {
				return Bool(strings.HasPrefix(string(s), string(fix))), nil
			}
			return Bool(strings.HasSuffix(string(s), string(fix))), nil
		}), true
	case "find":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			sub, ok := args[0].(Str)
			if !ok {
				return nil, Raise(TypeError, "find() argument must be str, not %s", args[0].Type())
			}
			byteIdx := strings.Index(string(s), string(sub))
			if byteIdx < 0 {
				return Int(-1), nil
			}
			return Int(len([]rune(string(s)[:byteIdx]))), nil
		}), true
	case "count":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			sub, ok := args[0].(Str)
			if !ok {
				return nil, Raise(TypeError, "count() argument must be str, not %s", args[0].Type())
			}
			return Int(strings.Count(string(s), string(sub))), nil
		}), true
	}
	return nil, false
}

func listMethod(l *List, name string) (Value, bool) {
	switch name {
	case "append":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			l.Items = append(l.Items, args[0])
			return None, nil
		}), true
	case "extend":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			items, err := Iterate(args[0])
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, items...)
			return None, nil
		}), true
	case "insert":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 2, 2); err != nil {
				return nil, err
			}
			n, ok := args[0].(Int)
			if !ok {
				return nil, Raise(TypeError, "insert() index must be int, not %s", args[0].Type())
			}
			i := int(n)
			if i < 0 {
				i += len(l.Items)
			}
			if i < 0 {
				i = 0
			}
			if i > len(l.Items) {
				i = len(l.Items)
			}
			l.Items = append(l.Items[:i], append([]Value{args[1]}, l.Items[i:]...)...)
			return None, nil
		}), true
	case "pop":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 1); err != nil {
				return nil, err
			}
			if len(l.Items) == 0 {
				return nil, Raise(IndexError, "pop from empty list")
			}
			i := len(l.Items) - 1
			if len(args) == 1 {
				n, ok := args[0].(Int)
				if !ok {
					return nil, Raise(TypeError, "pop() index must be int, not %s", args[0].Type())
				}
				i = int(n)
				if i < 0 {
					i += len(l.Items)
				}
				if i < 0 || i >= len(l.Items) {
					return nil, Raise(IndexError, "pop index out of range")
				}
			}
			v := l.Items[i]
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return v, nil
		}), true
	case "index":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			for i, item := range l.Items {
				if item.Equals(args[0]) {
					return Int(i), nil
				}
			}
			return nil, Raise(ValueError, "%s is not in list", args[0].Repr())
		}), true
	case "count":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			n := 0
			for _, item := range l.Items {
				if item.Equals(args[0]) {
					n++
				}
			}
			return Int(n), nil
		}), true
	case "reverse":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
				l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
			}
			return None, nil
		}), true
	case "sort":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			var sortErr error
			sort.SliceStable(l.Items, func(i, j int) bool {
				if sortErr != nil {
					return false
				}
				c, err := order(l.Items[i], l.Items[j])
				if err != nil {
					sortErr = err
					return false
				}
				return c < 0
			})
			if sortErr != nil {
				return nil, sortErr
			}
			return None, nil
		}), true
	}
	return nil, false
}

func dictMethod(d *Dict, name string) (Value, bool) {
	switch name {
	case "keys":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			return &List{Items: d.Keys()}, nil
		}), true
	case "values":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			return &List{Items: d.Values()}, nil
		}), true
	case "items":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			keys := d.Keys()
			values := d.Values()
			items := make([]Value, len(keys))
			for i := range keys {
				items[i] = &List{Items: []Value{keys[i], values[i]}}
			}
			return &List{Items: items}, nil
		}), true
	case "get":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 2); err != nil {
				return nil, err
			}
			if v, ok := d.Get(args[0]); ok {
				return v, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return None, nil
		}), true
	case "pop":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 2); err != nil {
				return nil, err
			}
			if v, ok := d.Get(args[0]); ok {
				d.Delete(args[0])
				return v, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return nil, Raise(KeyError, "%s", args[0].Repr())
		}), true
	case "update":
		return bfn(name, func(_ *Env, args []Value) (Value, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			other, ok := args[0].(*Dict)
			if !ok {
				return nil, Raise(TypeError, "update() argument must be dict, not %s", args[0].Type())
			}
			keys := other.Keys()
			values := other.Values()
			for i := range keys {
				d.Set(keys[i], values[i])
			}
			return None, nil
		}), true
	}
	return nil, false
}
