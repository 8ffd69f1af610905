package builtins

import (
	"fmt"

	"ape"
	"github.com/google/uuid"
)

// RegisterUUID binds the opt-in "uuid" namespace: uuid.v4 generates a
// random identifier, uuid.parse round-trips one back into canonical
// form or rejects a malformed string.
func RegisterUUID(ctx *ape.Context) {
	ctx.RegisterNamespace("uuid", map[string]ape.NativeFunc{
		"v4":    uuidV4,
		"parse": uuidParse,
	})
}

func uuidV4(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 0 {
		return ape.Null, argError("uuid.v4", 0, len(args))
	}
	return ctx.NewString(uuid.New().String()), nil
}

func uuidParse(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("uuid.parse", 1, len(args))
	}
	if args[0].Kind != ape.KString {
		return ape.Null, fmt.Errorf("uuid.parse: argument must be a string")
	}
	id, err := uuid.Parse(args[0].String().String())
	if err != nil {
		return ape.Null, fmt.Errorf("uuid.parse: %w", err)
	}
	return ctx.NewString(id.String()), nil
}
