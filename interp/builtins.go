package interp

import (
	"fmt"
	"strconv"
	"strings"
)

// registerBuiltins installs the minimal builtin surface spec §1 places out
// of scope beyond what a test suite exercises: print, str, len, type, range,
// and a handful of numeric/string helpers exercised by the evaluator's own
// test suite (spec §8 scenarios reference str/len/acc-style accumulation).
func registerBuiltins(g *Scope) {
	def := func(name string, fn BuiltinFn) {
		g.Define(name, &BuiltinValue{Name: name, Fn: fn}, true, "")
	}

	def("print", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = displayString(a)
		}
		fmt.Fprintln(ev.Stdout, strings.Join(parts, " "))
		return None, nil
	})

	def("str", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "str() takes exactly 1 argument (%d given)", len(args))
		}
		return NewString(displayString(args[0])), nil
	})

	def("len", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "len() takes exactly 1 argument (%d given)", len(args))
		}
		switch v := args[0].(type) {
		case *StringValue:
			return NewIntValue(int64(len(v.S)), KDefaultInt), nil
		case *ListValue:
			return NewIntValue(int64(len(v.Items)), KDefaultInt), nil
		case *DictValue:
			return NewIntValue(int64(len(v.Keys)), KDefaultInt), nil
		}
		return nil, newErr(TypeError, span, "object of type '%s' has no len()", typeNameOf(args[0]))
	})

	def("type", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "type() takes exactly 1 argument (%d given)", len(args))
		}
		return NewString(typeNameOf(args[0])), nil
	})

	def("range", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		var lo, hi, step int64 = 0, 0, 1
		switch len(args) {
		case 1:
			n, err := requireInt(args[0], span)
			if err != nil {
				return nil, err
			}
			hi = n
		case 2:
			a, err := requireInt(args[0], span)
			if err != nil {
				return nil, err
			}
			b, err := requireInt(args[1], span)
			if err != nil {
				return nil, err
			}
			lo, hi = a, b
		case 3:
			a, err := requireInt(args[0], span)
			if err != nil {
				return nil, err
			}
			b, err := requireInt(args[1], span)
			if err != nil {
				return nil, err
			}
			s, err := requireInt(args[2], span)
			if err != nil {
				return nil, err
			}
			lo, hi, step = a, b, s
		default:
			return nil, newErr(TypeError, span, "range() takes 1 to 3 arguments (%d given)", len(args))
		}
		if step == 0 {
			return nil, newErr(ValueError, span, "range() step argument must not be zero")
		}
		var items []Value
		if step > 0 {
			for v := lo; v < hi; v += step {
				items = append(items, NewIntValue(v, KDefaultInt))
			}
		} else {
			for v := lo; v > hi; v += step {
				items = append(items, NewIntValue(v, KDefaultInt))
			}
		}
		return NewList(items), nil
	})

	def("abs", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "abs() takes exactly 1 argument (%d given)", len(args))
		}
		switch v := args[0].(type) {
		case *IntValue:
			n := v.Val
			if n < 0 {
				n = -n
			}
			return NewIntValue(n, v.Kind), nil
		case FloatValue:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		}
		return nil, newErr(TypeError, span, "abs() requires a numeric argument")
	})

	def("int", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "int() takes exactly 1 argument (%d given)", len(args))
		}
		switch v := args[0].(type) {
		case *IntValue:
			return v, nil
		case FloatValue:
			return NewIntValue(int64(v), KDefaultInt), nil
		case *StringValue:
			n, perr := strconv.ParseInt(strings.TrimSpace(v.S), 10, 64)
			if perr != nil {
				return nil, newErr(ValueError, span, "invalid literal for int(): %q", v.S)
			}
			if err := CheckOverflow(n, KDefaultInt, span); err != nil {
				return nil, err
			}
			return NewIntValue(n, KDefaultInt), nil
		case BoolValue:
			if v {
				return NewIntValue(1, KDefaultInt), nil
			}
			return NewIntValue(0, KDefaultInt), nil
		}
		return nil, newErr(TypeError, span, "int() argument must be a string, float, bool, or int")
	})

	def("float", func(ev *Evaluator, args []Value, span Span) (Value, *Error) {
		if len(args) != 1 {
			return nil, newErr(TypeError, span, "float() takes exactly 1 argument (%d given)", len(args))
		}
		switch v := args[0].(type) {
		case FloatValue:
			return v, nil
		case *IntValue:
			return FloatValue(float64(v.Val)), nil
		case *StringValue:
			f, perr := strconv.ParseFloat(strings.TrimSpace(v.S), 64)
			if perr != nil {
				return nil, newErr(ValueError, span, "invalid literal for float(): %q", v.S)
			}
			return FloatValue(f), nil
		}
		return nil, newErr(TypeError, span, "float() argument must be a string, int, or float")
	})
}

func requireInt(v Value, span Span) (int64, *Error) {
	iv, ok := v.(*IntValue)
	if !ok {
		return 0, newErr(TypeError, span, "expected an int argument, got '%s'", typeNameOf(v))
	}
	return iv.Val, nil
}

// displayString is the non-repr rendering used by print()/str(): strings are
// unquoted, everything else uses its normal String() form.
func displayString(v Value) string {
	if s, ok := v.(*StringValue); ok {
		return s.S
	}
	return v.String()
}
