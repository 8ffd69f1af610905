// Package format renders Ape values to their textual, script-visible
// form. It backs both the VM's string-concatenation coercion ("+"
// stringifies its right operand) and the builtins' tostring/println,
// so the two never drift apart on how a value prints. Every rendering
// call targets an internal/writer.Writer sink.
package format

import (
	"strconv"

	"ape/internal/object"
	"ape/internal/writer"
)

// String renders v into a fresh buffer and returns it as a Go string.
func String(v object.Value) string {
	w := writer.New()
	Write(w, v)
	return w.String()
}

// Write renders v's display form into w.
func Write(w *writer.Writer, v object.Value) {
	write(w, v, make(map[*object.Object]bool))
}

func write(w *writer.Writer, v object.Value, seen map[*object.Object]bool) {
	switch v.Kind {
	case object.KNull:
		w.WriteString("null")
	case object.KBool:
		if v.Num != 0 {
			w.WriteString("true")
		} else {
			w.WriteString("false")
		}
	case object.KNumber:
		w.WriteString(formatNumber(v.Num))
	case object.KString:
		if v.Obj != nil && v.Obj.Str != nil {
			w.WriteString(v.Obj.Str.String())
		}
	case object.KArray:
		writeArray(w, v, seen)
	case object.KMap:
		writeMap(w, v, seen)
	case object.KFunction:
		name := "<anonymous>"
		if fn := v.Function(); fn != nil && fn.Name != "" {
			name = fn.Name
		}
		w.WriteString("<function " + name + ">")
	case object.KNativeFunction:
		name := "<native>"
		if n := v.Native(); n != nil && n.Name != "" {
			name = n.Name
		}
		w.WriteString("<native function " + name + ">")
	case object.KError:
		if e := v.Err(); e != nil {
			w.WriteString(e.Message)
		}
	case object.KExternal:
		w.WriteString("<external>")
	case object.KFreed:
		w.WriteString("<freed>")
	default:
		w.WriteString("<unknown>")
	}
}

func writeArray(w *writer.Writer, v object.Value, seen map[*object.Object]bool) {
	if v.Obj == nil || v.Obj.Arr == nil {
		w.WriteString("[]")
		return
	}
	if seen[v.Obj] {
		w.WriteString("[...]")
		return
	}
	seen[v.Obj] = true
	defer delete(seen, v.Obj)

	w.WriteString("[")
	for i, el := range v.Obj.Arr.Elements {
		if i > 0 {
			w.WriteString(", ")
		}
		if el.Kind == object.KString {
			w.WriteString("\"")
			write(w, el, seen)
			w.WriteString("\"")
		} else {
			write(w, el, seen)
		}
	}
	w.WriteString("]")
}

func writeMap(w *writer.Writer, v object.Value, seen map[*object.Object]bool) {
	if v.Obj == nil || v.Obj.Map == nil {
		w.WriteString("{}")
		return
	}
	if seen[v.Obj] {
		w.WriteString("{...}")
		return
	}
	seen[v.Obj] = true
	defer delete(seen, v.Obj)

	w.WriteString("{")
	keys := v.Obj.Map.Keys()
	values := v.Obj.Map.Values()
	for i := range keys {
		if i > 0 {
			w.WriteString(", ")
		}
		write(w, keys[i], seen)
		w.WriteString(": ")
		if values[i].Kind == object.KString {
			w.WriteString("\"")
			write(w, values[i], seen)
			w.WriteString("\"")
		} else {
			write(w, values[i], seen)
		}
	}
	w.WriteString("}")
}

// formatNumber renders a float64 the way script output expects:
// integral values print without a trailing ".0".
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
