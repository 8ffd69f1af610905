// Package builtins supplies Ape's default natives and the opt-in
// third-party-backed namespaces (db, uuid, fmtutil) a host registers
// through the same ape.Context.RegisterNamespace protocol it would use
// for its own domain functions.
package builtins

import (
	"fmt"

	"ape"
	"ape/internal/format"
)

// RegisterCore binds the natives scripts assume are always present:
// println, print, len, tostring, copy, deep_copy, reverse, slice,
// range, type_name, is_error, error, crash.
func RegisterCore(ctx *ape.Context) {
	ctx.RegisterNative("println", nativePrintln, nil)
	ctx.RegisterNative("print", nativePrint, nil)
	ctx.RegisterNative("len", nativeLen, nil)
	ctx.RegisterNative("tostring", nativeToString, nil)
	ctx.RegisterNative("copy", nativeCopy, nil)
	ctx.RegisterNative("deep_copy", nativeDeepCopy, nil)
	ctx.RegisterNative("reverse", nativeReverse, nil)
	ctx.RegisterNative("slice", nativeSlice, nil)
	ctx.RegisterNative("range", nativeRange, nil)
	ctx.RegisterNative("type_name", nativeTypeName, nil)
	ctx.RegisterNative("is_error", nativeIsError, nil)
	ctx.RegisterNative("error", nativeError, nil)
	ctx.RegisterNative("crash", nativeCrash, nil)
}

func argError(name string, want, got int) error {
	return fmt.Errorf("%s: expected %d argument(s), got %d", name, want, got)
}

func nativePrintln(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	writeArgs(ctx, args)
	ctx.WriteString("\n")
	return ape.Null, nil
}

func nativePrint(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	writeArgs(ctx, args)
	return ape.Null, nil
}

func writeArgs(ctx *ape.Context, args []ape.Value) {
	for i, a := range args {
		if i > 0 {
			ctx.WriteString(" ")
		}
		ctx.WriteString(format.String(a))
	}
}

func nativeLen(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("len", 1, len(args))
	}
	v := args[0]
	switch v.Kind {
	case ape.KArray:
		return ape.Number(float64(len(v.Array().Elements))), nil
	case ape.KString:
		return ape.Number(float64(v.String().Len())), nil
	case ape.KMap:
		return ape.Number(float64(v.Map().Len())), nil
	default:
		return ape.Null, fmt.Errorf("len: value of type %s has no length", v.TypeName())
	}
}

func nativeToString(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("tostring", 1, len(args))
	}
	return ctx.NewString(format.String(args[0])), nil
}

func nativeTypeName(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("type_name", 1, len(args))
	}
	return ctx.NewString(args[0].TypeName()), nil
}

func nativeIsError(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("is_error", 1, len(args))
	}
	return ape.Bool(args[0].Kind == ape.KError), nil
}

// nativeError builds an Error value as ordinary data rather than raising
// one; the VM's native-call protocol leaves a value returned this way
// untouched when its name is "error" (internal/vm/call.go), preserving
// the caller's literal error("msg") intent without stamping a traceback
// onto it.
func nativeError(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	msg := ""
	if len(args) > 0 {
		msg = format.String(args[0])
	}
	return ctx.NewError(msg), nil
}

// nativeCrash raises immediately: it returns a Go error, which the VM's
// call protocol turns into a non-recoverable-by-name-only diagnostic
// (still catchable by recover() unless the script never arms one).
func nativeCrash(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	msg := "crash"
	if len(args) > 0 {
		msg = format.String(args[0])
	}
	return ape.Null, fmt.Errorf("%s", msg)
}

func nativeCopy(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("copy", 1, len(args))
	}
	switch v := args[0]; v.Kind {
	case ape.KArray:
		elems := append([]ape.Value{}, v.Array().Elements...)
		return ctx.NewArray(elems), nil
	case ape.KMap:
		src := v.Map()
		dst := ctx.NewMap()
		m := dst.Map()
		for _, k := range src.Keys() {
			val, _ := src.Get(k)
			m.Set(k, val)
		}
		return dst, nil
	default:
		return v, nil
	}
}

func nativeDeepCopy(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("deep_copy", 1, len(args))
	}
	return deepCopyValue(ctx, args[0]), nil
}

func deepCopyValue(ctx *ape.Context, v ape.Value) ape.Value {
	switch v.Kind {
	case ape.KArray:
		src := v.Array().Elements
		elems := make([]ape.Value, len(src))
		for i, e := range src {
			elems[i] = deepCopyValue(ctx, e)
		}
		return ctx.NewArray(elems)
	case ape.KMap:
		src := v.Map()
		dst := ctx.NewMap()
		m := dst.Map()
		for _, k := range src.Keys() {
			val, _ := src.Get(k)
			m.Set(k, deepCopyValue(ctx, val))
		}
		return dst
	default:
		return v
	}
}

func nativeReverse(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("reverse", 1, len(args))
	}
	switch v := args[0]; v.Kind {
	case ape.KArray:
		src := v.Array().Elements
		out := make([]ape.Value, len(src))
		for i, e := range src {
			out[len(src)-1-i] = e
		}
		return ctx.NewArray(out), nil
	case ape.KString:
		s := v.String().String()
		b := []byte(s)
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		return ctx.NewString(string(b)), nil
	default:
		return ape.Null, fmt.Errorf("reverse: value of type %s is not reversible", v.TypeName())
	}
}

// nativeSlice implements both slice(s, start) (end defaults to length) and
// slice(s, start, end), matching §8's "slice(s, i)" boundary case of a
// single start index.
func nativeSlice(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return ape.Null, fmt.Errorf("slice: expected 2 or 3 arguments, got %d", len(args))
	}
	recv := args[0]
	if args[1].Kind != ape.KNumber {
		return ape.Null, fmt.Errorf("slice: start must be a number")
	}
	start := int(args[1].Num)

	end := 0
	if len(args) == 3 {
		if args[2].Kind != ape.KNumber {
			return ape.Null, fmt.Errorf("slice: end must be a number")
		}
		end = int(args[2].Num)
	}

	switch recv.Kind {
	case ape.KArray:
		src := recv.Array().Elements
		if len(args) == 2 {
			end = len(src)
		}
		s, e := clampRange(start, end, len(src))
		out := append([]ape.Value{}, src[s:e]...)
		return ctx.NewArray(out), nil
	case ape.KString:
		s := recv.String().String()
		n := len(s)
		if len(args) == 2 {
			end = n
		}
		// A start that is still negative after shifting by length, or one
		// past the end, yields "" rather than clamping to 0 — an
		// out-of-range start index is empty, not "the whole string".
		if start < 0 {
			start += n
			if start < 0 {
				return ctx.NewString(""), nil
			}
		}
		if start >= n {
			return ctx.NewString(""), nil
		}
		if end < 0 {
			end += n
		}
		if end > n {
			end = n
		}
		if start > end {
			start = end
		}
		return ctx.NewString(s[start:end]), nil
	default:
		return ape.Null, fmt.Errorf("slice: value of type %s is not sliceable", recv.TypeName())
	}
}

func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

// nativeRange builds an array of numbers: range(end), range(start,end)
// or range(start,end,step).
func nativeRange(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	var start, end, step float64 = 0, 0, 1
	switch len(args) {
	case 1:
		end = args[0].Num
	case 2:
		start, end = args[0].Num, args[1].Num
	case 3:
		start, end, step = args[0].Num, args[1].Num, args[2].Num
	default:
		return ape.Null, fmt.Errorf("range: expected 1 to 3 arguments, got %d", len(args))
	}
	if step == 0 {
		return ape.Null, fmt.Errorf("range: step must not be zero")
	}
	var out []ape.Value
	if step > 0 {
		for v := start; v < end; v += step {
			out = append(out, ape.Number(v))
		}
	} else {
		for v := start; v > end; v += step {
			out = append(out, ape.Number(v))
		}
	}
	return ctx.NewArray(out), nil
}
