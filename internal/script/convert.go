// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package script

import (
	"fmt"
	"sort"
)

// FromGo converts a native Go value into a script value. Maps convert
// with their keys sorted so the resulting dict order is stable.
func FromGo(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return None, nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case float32:
		return Float(v), nil
	case float64:
		return Float(v), nil
	case string:
		return Str(v), nil
	case []string:
		list := NewList()
		for _, item := range v {
			list.Items = append(list.Items, Str(item))
		}
		return list, nil
	case []any:
		list := NewList()
		for _, item := range v {
			converted, err := FromGo(item)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, converted)
		}
		return list, nil
	case map[string]string:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		dict := NewDict()
		for _, key := range keys {
			dict.Set(Str(key), Str(v[key]))
		}
		return dict, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		dict := NewDict()
		for _, key := range keys {
			converted, err := FromGo(v[key])
			if err != nil {
				return nil, err
			}
			dict.Set(Str(key), converted)
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to a script value", v)
	}
}

// ToGo converts a script value into a native Go value. Callables,
// modules and classes have no native form and convert to their display
// strings.
func ToGo(v Value) any {
	switch v := v.(type) {
	case noneValue:
		return nil
	case Bool:
		return bool(v)
	case Int:
		return int64(v)
	case Float:
		return float64(v)
	case Str:
		return string(v)
	case *List:
		items := make([]any, len(v.Items))
		for i, item := range v.Items {
			items[i] = ToGo(item)
		}
		return items
	case *Dict:
		m := make(map[string]any, v.Len())
		for _, key := range v.Keys() {
			value, _ := v.Get(key)
			m[key.String()] = ToGo(value)
		}
		return m
	default:
		return v.String()
	}
}
