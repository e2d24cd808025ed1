package registry

import (
	"fmt"
	"strconv"

	"aura/internal/aura"
)

// Coerce validates and coerces raw args against a tool's schema, producing
// a BadArgs error (spec §4.3) before any handler runs. Missing optional
// args are filled from ArgSpec.Default.
func Coerce(spec aura.ToolSpec, raw map[string]any) (map[string]any, *aura.Error) {
	out := make(map[string]any, len(spec.ArgSchema))

	for name, argSpec := range spec.ArgSchema {
		val, present := raw[name]
		if !present {
			if argSpec.Required {
				return nil, aura.NewError(aura.ErrBadArgs, fmt.Sprintf("missing required arg %q", name), nil)
			}
			if argSpec.Default != nil {
				out[name] = argSpec.Default
			}
			continue
		}

		coerced, err := coerceOne(name, argSpec, val)
		if err != nil {
			return nil, err
		}
		out[name] = coerced
	}

	return out, nil
}

func coerceOne(name string, spec aura.ArgSpec, val any) (any, *aura.Error) {
	switch spec.Type {
	case aura.ArgString:
		s, ok := toString(val)
		if !ok {
			return nil, badType(name, "string")
		}
		return s, nil

	case aura.ArgInt:
		f, ok := toFloat(val)
		if !ok {
			return nil, badType(name, "int")
		}
		if spec.HasRange && (f < spec.Min || f > spec.Max) {
			return nil, aura.NewError(aura.ErrBadArgs,
				fmt.Sprintf("arg %q value %v out of range [%v,%v]", name, f, spec.Min, spec.Max), nil)
		}
		return int(f), nil

	case aura.ArgFloat:
		f, ok := toFloat(val)
		if !ok {
			return nil, badType(name, "float")
		}
		if spec.HasRange && (f < spec.Min || f > spec.Max) {
			return nil, aura.NewError(aura.ErrBadArgs,
				fmt.Sprintf("arg %q value %v out of range [%v,%v]", name, f, spec.Min, spec.Max), nil)
		}
		return f, nil

	case aura.ArgBool:
		b, ok := val.(bool)
		if !ok {
			return nil, badType(name, "bool")
		}
		return b, nil

	case aura.ArgEnum:
		s, ok := toString(val)
		if !ok {
			return nil, badType(name, "enum")
		}
		for _, e := range spec.Enum {
			if e == s {
				return s, nil
			}
		}
		return nil, aura.NewError(aura.ErrBadArgs, fmt.Sprintf("arg %q value %q not in enum %v", name, s, spec.Enum), nil)

	default:
		return val, nil
	}
}

func badType(name, want string) *aura.Error {
	return aura.NewError(aura.ErrBadArgs, fmt.Sprintf("arg %q must be %s", name, want), nil)
}

func toString(val any) (string, bool) {
	s, ok := val.(string)
	return s, ok
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
