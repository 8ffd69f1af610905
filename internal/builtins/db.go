package builtins

import (
	"fmt"
	"time"

	"ape"
	"ape/internal/database"

	_ "github.com/denisenkom/go-mssqldb" // sqlserver driver
	_ "github.com/mattn/go-sqlite3"      // sqlite3 (cgo) driver, alongside modernc's pure-Go one
)

// RegisterDB binds the opt-in "db" namespace over internal/database's
// connection manager: db.open, db.query, db.exec, db.close. Hosts that
// don't want script code touching a real database simply never call
// this, unlike RegisterCore's always-on natives.
func RegisterDB(ctx *ape.Context) {
	mgr := database.NewDBManager()
	ctx.RegisterNamespace("db", map[string]ape.NativeFunc{
		"open":  dbOpen(mgr),
		"query": dbQuery(mgr),
		"exec":  dbExec(mgr),
		"close": dbClose(mgr),
	})
}

func dbOpen(mgr *database.DBManager) ape.NativeFunc {
	return func(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
		if len(args) != 3 {
			return ape.Null, argError("db.open", 3, len(args))
		}
		id, dbType, dsn := args[0].String().String(), args[1].String().String(), args[2].String().String()
		if err := mgr.Connect(id, dbType, dsn); err != nil {
			return ape.Null, err
		}
		return ape.Null, nil
	}
}

func dbClose(mgr *database.DBManager) ape.NativeFunc {
	return func(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
		if len(args) != 1 {
			return ape.Null, argError("db.close", 1, len(args))
		}
		if err := mgr.Close(args[0].String().String()); err != nil {
			return ape.Null, err
		}
		return ape.Null, nil
	}
}

func dbExec(mgr *database.DBManager) ape.NativeFunc {
	return func(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
		if len(args) < 2 {
			return ape.Null, fmt.Errorf("db.exec: expected at least 2 arguments, got %d", len(args))
		}
		id, query := args[0].String().String(), args[1].String().String()
		sqlArgs := toSQLArgs(args[2:])
		affected, err := mgr.Execute(id, query, sqlArgs...)
		if err != nil {
			return ape.Null, err
		}
		return ape.Number(float64(affected)), nil
	}
}

func dbQuery(mgr *database.DBManager) ape.NativeFunc {
	return func(ctx *ape.Context, _ interface{}, args []ape.Value) (ape.Value, error) {
		if len(args) < 2 {
			return ape.Null, fmt.Errorf("db.query: expected at least 2 arguments, got %d", len(args))
		}
		id, query := args[0].String().String(), args[1].String().String()
		sqlArgs := toSQLArgs(args[2:])
		rows, err := mgr.Query(id, query, sqlArgs...)
		if err != nil {
			return ape.Null, err
		}
		out := make([]ape.Value, len(rows))
		for i, row := range rows {
			rowVal := ctx.NewMap()
			m := rowVal.Map()
			for col, v := range row {
				m.Set(ctx.NewString(col), fromSQLValue(ctx, v))
			}
			out[i] = rowVal
		}
		return ctx.NewArray(out), nil
	}
}

func toSQLArgs(args []ape.Value) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		switch a.Kind {
		case ape.KNull:
			out[i] = nil
		case ape.KBool:
			out[i] = a.AsBool()
		case ape.KNumber:
			out[i] = a.Num
		case ape.KString:
			out[i] = a.String().String()
		default:
			out[i] = nil
		}
	}
	return out
}

func fromSQLValue(ctx *ape.Context, v interface{}) ape.Value {
	switch t := v.(type) {
	case nil:
		return ape.Null
	case bool:
		return ape.Bool(t)
	case int64:
		return ape.Number(float64(t))
	case float64:
		return ape.Number(t)
	case string:
		return ctx.NewString(t)
	case []byte:
		return ctx.NewString(string(t))
	case time.Time:
		return ctx.NewString(t.Format(time.RFC3339))
	default:
		return ctx.NewString(fmt.Sprint(t))
	}
}
