package builtins

import (
	"fmt"
	"time"

	"ape"
	"github.com/dustin/go-humanize"
)

// RegisterFmtUtil binds the opt-in "fmtutil" namespace over go-humanize:
// fmtutil.bytes renders a byte count the way a log line would, and
// fmtutil.ago renders a Unix timestamp as a relative duration.
func RegisterFmtUtil(ctx *ape.Context) {
	ctx.RegisterNamespace("fmtutil", map[string]ape.NativeFunc{
		"bytes": fmtutilBytes,
		"ago":   fmtutilAgo,
	})
}

func fmtutilBytes(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("fmtutil.bytes", 1, len(args))
	}
	if args[0].Kind != ape.KNumber {
		return ape.Null, fmt.Errorf("fmtutil.bytes: argument must be a number")
	}
	return ctx.NewString(humanize.Bytes(uint64(args[0].Num))), nil
}

func fmtutilAgo(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
	if len(args) != 1 {
		return ape.Null, argError("fmtutil.ago", 1, len(args))
	}
	if args[0].Kind != ape.KNumber {
		return ape.Null, fmt.Errorf("fmtutil.ago: argument must be a unix timestamp number")
	}
	t := time.Unix(int64(args[0].Num), 0)
	return ctx.NewString(humanize.Time(t)), nil
}
