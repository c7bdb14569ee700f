// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package interp

import (
	"errors"

	"nickandperla.net/emt/internal/script"
	"nickandperla.net/emt/internal/stream"
)

// pseudomodule builds the module value documents reach the interpreter
// through. Its methods close over the interpreter, so one module
// instance serves the whole run.
func (in *Interp) pseudomodule() *script.Module {
	m := script.NewModule(in.pseudonym)
	m.SetAttr("version", script.Str(Version))
	m.SetAttr("prefix", script.Str(string(in.prefix)))

	bind := func(name string, lo, hi int, fn func(env *script.Env, args []script.Value) (script.Value, error)) {
		m.SetAttr(name, &script.Func{
			Name: name,
			Fn: func(env *script.Env, args []script.Value) (script.Value, error) {
				if err := checkArgs(name, args, lo, hi); err != nil {
					return nil, err
				}
				return fn(env, args)
			},
		})
	}

	bind("identify", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		ctx := in.context()
		if ctx == nil {
			return nil, &StackUnderflowError{Stack: "context"}
		}
		return script.NewList(script.Str(ctx.Name), script.Int(ctx.Line)), nil
	})
	bind("setContextName", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("setContextName", args, 0)
		if err != nil {
			return nil, err
		}
		if ctx := in.context(); ctx != nil {
			ctx.Name = name
		}
		return script.None, nil
	})
	bind("setContextLine", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		line, err := argInt("setContextLine", args, 0)
		if err != nil {
			return nil, err
		}
		if ctx := in.context(); ctx != nil {
			ctx.SetLine(int(line))
		}
		return script.None, nil
	})
	bind("atExit", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		fn, err := argFunc("atExit", args, 0)
		if err != nil {
			return nil, err
		}
		in.AtExit(func() error {
			_, err := fn.Call(in.env(nil), nil)
			return err
		})
		return script.None, nil
	})

	bind("include", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		path, err := argStr("include", args, 0)
		if err != nil {
			return nil, err
		}
		return script.None, in.Include(path)
	})
	bind("expand", 1, 2, func(env *script.Env, args []script.Value) (script.Value, error) {
		src, err := argStr("expand", args, 0)
		if err != nil {
			return nil, err
		}
		locals := env.Locals
		if len(args) == 2 {
			locals, err = argLocals("expand", args, 1)
			if err != nil {
				return nil, err
			}
		}
		text, err := in.Expand(src, locals)
		if err != nil {
			return nil, err
		}
		return script.Str(text), nil
	})
	bind("string", 1, 2, func(env *script.Env, args []script.Value) (script.Value, error) {
		src, err := argStr("string", args, 0)
		if err != nil {
			return nil, err
		}
		name := "<string>"
		if len(args) == 2 {
			name, err = argStr("string", args, 1)
			if err != nil {
				return nil, err
			}
		}
		return script.None, in.processFragment(src, name, env.Locals)
	})
	bind("defined", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("defined", args, 0)
		if err != nil {
			return nil, err
		}
		return script.Bool(env.Defined(name)), nil
	})
	bind("evaluate", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		code, err := argStr("evaluate", args, 0)
		if err != nil {
			return nil, err
		}
		return in.evalCode(code, env.Locals)
	})
	bind("execute", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		code, err := argStr("execute", args, 0)
		if err != nil {
			return nil, err
		}
		return script.None, in.execCode(code, env.Locals)
	})
	bind("significate", 1, 2, func(env *script.Env, args []script.Value) (script.Value, error) {
		key, err := argStr("significate", args, 0)
		if err != nil {
			return nil, err
		}
		var v script.Value = script.None
		if len(args) == 2 {
			v = args[1]
		}
		in.hooks.run(EvBeforeSignificate, map[string]any{"key": key})
		in.globals.Set("__"+key+"__", v)
		in.hooks.run(EvAfterSignificate, map[string]any{"key": key, "value": v})
		return script.None, nil
	})

	bind("write", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		return script.None, in.stream().WriteString(args[0].String())
	})
	bind("serialize", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		return script.None, in.stream().WriteString(args[0].Repr())
	})
	bind("flush", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		return script.None, in.Flush()
	})

	bind("divert", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("divert", args, 0)
		if err != nil {
			return nil, err
		}
		in.stream().Divert(name)
		return script.None, nil
	})
	bind("createDiversion", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("createDiversion", args, 0)
		if err != nil {
			return nil, err
		}
		in.stream().Create(name)
		return script.None, nil
	})
	bind("retrieveDiversion", 1, 2, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("retrieveDiversion", args, 0)
		if err != nil {
			return nil, err
		}
		text, err := in.stream().Retrieve(name)
		if err != nil {
			var de *stream.DiversionError
			if errors.As(err, &de) && len(args) == 2 {
				return args[1], nil
			}
			return nil, diversionError(err)
		}
		return script.Str(text), nil
	})
	bind("undivert", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("undivert", args, 0)
		if err != nil {
			return nil, err
		}
		return script.None, diversionError(in.stream().Undivert(name, false))
	})
	bind("playDiversion", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("playDiversion", args, 0)
		if err != nil {
			return nil, err
		}
		return script.None, diversionError(in.stream().Undivert(name, true))
	})
	bind("purgeDiversion", 1, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		name, err := argStr("purgeDiversion", args, 0)
		if err != nil {
			return nil, err
		}
		return script.None, diversionError(in.stream().Purge(name))
	})
	bind("undivertAll", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		return script.None, in.stream().UndivertAll(false)
	})
	bind("purgeAll", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		st := in.stream()
		for _, name := range st.Names() {
			if err := st.Purge(name); err != nil {
				return nil, diversionError(err)
			}
		}
		return script.None, nil
	})
	bind("stopDiverting", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		in.stream().Revert()
		return script.None, nil
	})
	bind("getCurrentDiversion", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		name := in.stream().Current()
		if name == "" {
			return script.None, nil
		}
		return script.Str(name), nil
	})
	bind("getAllDiversions", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		names := in.stream().Names()
		items := make([]script.Value, len(names))
		for i, name := range names {
			items[i] = script.Str(name)
		}
		return script.NewList(items...), nil
	})

	bind("resetFilter", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		return script.None, in.stream().SetFilter()
	})
	bind("nullFilter", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		return script.None, in.stream().SetFilter(stream.NewNull())
	})
	bind("setFilter", 1, -1, func(env *script.Env, args []script.Value) (script.Value, error) {
		filters := make([]stream.Filter, 0, len(args))
		for _, a := range args {
			f, err := in.valueFilter(a)
			if err != nil {
				return nil, err
			}
			if f != nil {
				filters = append(filters, f)
			}
		}
		return script.None, in.stream().SetFilter(filters...)
	})

	bind("addHook", 2, 2, func(env *script.Env, args []script.Value) (script.Value, error) {
		event, err := argStr("addHook", args, 0)
		if err != nil {
			return nil, err
		}
		fn, err := argFunc("addHook", args, 1)
		if err != nil {
			return nil, err
		}
		id, err := in.hooks.add(event, func(event string, data map[string]any) {
			fn.Call(in.env(nil), []script.Value{script.Str(event), hookData(data)})
		})
		if err != nil {
			return nil, err
		}
		return script.Int(id), nil
	})
	bind("removeHook", 2, 2, func(env *script.Env, args []script.Value) (script.Value, error) {
		event, err := argStr("removeHook", args, 0)
		if err != nil {
			return nil, err
		}
		id, err := argInt("removeHook", args, 1)
		if err != nil {
			return nil, err
		}
		return script.None, in.hooks.remove(event, int(id))
	})
	bind("clearHooks", 0, 1, func(env *script.Env, args []script.Value) (script.Value, error) {
		if len(args) == 0 {
			in.hooks.clearAll()
			return script.None, nil
		}
		event, err := argStr("clearHooks", args, 0)
		if err != nil {
			return nil, err
		}
		return script.None, in.hooks.clear(event)
	})

	bind("flatten", 0, 0, func(env *script.Env, args []script.Value) (script.Value, error) {
		in.Flatten()
		return script.None, nil
	})
	return m
}

// valueFilter maps a host value onto a stream filter: None or 0 means
// discard, a callable transforms text, and a 256-byte string is a
// translation table. Returning a nil Filter with nil error means reset.
func (in *Interp) valueFilter(v script.Value) (stream.Filter, error) {
	switch v := v.(type) {
	case script.Str:
		return stream.NewTable(string(v))
	case *script.Func:
		fn := v
		return stream.NewFunc(func(text string) string {
			out, err := fn.Call(in.env(nil), []script.Value{script.Str(text)})
			if err != nil {
				return text
			}
			s, ok := out.(script.Str)
			if !ok {
				return out.String()
			}
			return string(s)
		}), nil
	case script.Int:
		if v == 0 {
			return stream.NewNull(), nil
		}
	default:
		if v == script.None {
			return nil, nil
		}
	}
	return nil, script.Raise(script.TypeError, "cannot make a filter from %s", v.Type())
}

// hookData converts hook payload details into host values, dropping
// entries with no host representation.
func hookData(data map[string]any) *script.Dict {
	d := script.NewDict()
	for k, v := range data {
		switch v := v.(type) {
		case string:
			d.Set(script.Str(k), script.Str(v))
		case int:
			d.Set(script.Str(k), script.Int(v))
		case script.Value:
			d.Set(script.Str(k), v)
		}
	}
	return d
}

func checkArgs(name string, args []script.Value, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		if lo == hi {
			return script.Raise(script.TypeError, "%s() takes %d arguments, got %d", name, lo, len(args))
		}
		return script.Raise(script.TypeError, "%s() takes %d to %d arguments, got %d", name, lo, hi, len(args))
	}
	return nil
}

func argStr(name string, args []script.Value, i int) (string, error) {
	s, ok := args[i].(script.Str)
	if !ok {
		return "", script.Raise(script.TypeError, "%s() argument %d must be a string, got %s", name, i+1, args[i].Type())
	}
	return string(s), nil
}

func argInt(name string, args []script.Value, i int) (int64, error) {
	n, ok := args[i].(script.Int)
	if !ok {
		return 0, script.Raise(script.TypeError, "%s() argument %d must be an integer, got %s", name, i+1, args[i].Type())
	}
	return int64(n), nil
}

func argFunc(name string, args []script.Value, i int) (*script.Func, error) {
	f, ok := args[i].(*script.Func)
	if !ok {
		return nil, script.Raise(script.TypeError, "%s() argument %d must be callable, got %s", name, i+1, args[i].Type())
	}
	return f, nil
}

func argLocals(name string, args []script.Value, i int) (map[string]script.Value, error) {
	d, ok := args[i].(*script.Dict)
	if !ok {
		return nil, script.Raise(script.TypeError, "%s() argument %d must be a dict, got %s", name, i+1, args[i].Type())
	}
	locals := make(map[string]script.Value, d.Len())
	for _, k := range d.Keys() {
		s, ok := k.(script.Str)
		if !ok {
			return nil, script.Raise(script.TypeError, "%s() locals keys must be strings", name)
		}
		v, _ := d.Get(k)
		locals[string(s)] = v
	}
	return locals, nil
}

// diversionError converts a missing-diversion failure into a host
// error documents can catch; other errors pass through.
func diversionError(err error) error {
	var de *stream.DiversionError
	if errors.As(err, &de) {
		return script.Raise(script.KeyError, "no such diversion: %s", de.Name)
	}
	return err
}
