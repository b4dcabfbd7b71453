package storexinmemory

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/bsonx"
	"github.com/Conversia-AI/craftable-projection/storex"
)

// missing marks a path that resolved to nothing. It differs from null in
// comparisons and is dropped from computed documents.
type missingValue struct{}

var missing = missingValue{}

type vars map[string]any

func (v vars) with(name string, value any) vars {
	out := make(vars, len(v)+1)
	for k, e := range v {
		out[k] = e
	}
	out[name] = value
	return out
}

func rootVars(doc bson.M) vars {
	return vars{"CURRENT": doc, "ROOT": doc}
}

// entries returns a document's fields in order. bson.M is sorted by key.
func entries(v any) ([]bson.E, bool) {
	switch t := v.(type) {
	case bson.D:
		return t, true
	case bson.M:
		return sortedEntries(t), true
	case map[string]any:
		return sortedEntries(t), true
	case bson.Raw:
		var d bson.D
		if err := bson.Unmarshal(t, &d); err != nil {
			return nil, false
		}
		return d, true
	}
	return nil, false
}

func sortedEntries(m map[string]any) []bson.E {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]bson.E, len(keys))
	for i, k := range keys {
		out[i] = bson.E{Key: k, Value: m[k]}
	}
	return out
}

func asArray(v any) ([]any, bool) {
	switch t := v.(type) {
	case bson.A:
		return t, true
	case []any:
		return t, true
	}
	return nil, false
}

func isNullish(v any) bool {
	return v == nil || v == missing
}

func truthy(v any) bool {
	if isNullish(v) {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	if n, ok := bsonx.Number(v); ok {
		return n != 0
	}
	return true
}

// resolvePath walks a dotted path; arrays of documents are mapped over
func resolvePath(v any, parts []string) any {
	if len(parts) == 0 {
		return v
	}
	switch t := v.(type) {
	case bson.M:
		next, ok := t[parts[0]]
		if !ok {
			return missing
		}
		return resolvePath(bsonx.Normalize(next), parts[1:])
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if m, ok := e.(bson.M); ok {
				if r := resolvePath(m, parts); r != missing {
					out = append(out, r)
				}
			}
		}
		return out
	}
	return missing
}

func eval(expr any, vs vars) (any, error) {
	switch t := expr.(type) {
	case string:
		if strings.HasPrefix(t, "$$") {
			name, rest, _ := strings.Cut(t[2:], ".")
			if name == "REMOVE" {
				return missing, nil
			}
			base, ok := vs[name]
			if !ok {
				return nil, unsupported("variable", "$$"+name)
			}
			if rest == "" {
				return base, nil
			}
			return resolvePath(base, strings.Split(rest, ".")), nil
		}
		if strings.HasPrefix(t, "$") {
			return resolvePath(vs["CURRENT"], strings.Split(t[1:], ".")), nil
		}
		return t, nil
	case bson.A, []any:
		arr, _ := asArray(t)
		out := make([]any, len(arr))
		for i, e := range arr {
			v, err := eval(e, vs)
			if err != nil {
				return nil, err
			}
			if v == missing {
				v = nil
			}
			out[i] = v
		}
		return out, nil
	}

	fields, ok := entries(expr)
	if !ok {
		return bsonx.Normalize(expr), nil
	}
	if len(fields) == 1 && strings.HasPrefix(fields[0].Key, "$") {
		return evalOperator(fields[0].Key, fields[0].Value, vs)
	}

	out := bson.M{}
	for _, f := range fields {
		v, err := eval(f.Value, vs)
		if err != nil {
			return nil, err
		}
		if v != missing {
			out[f.Key] = v
		}
	}
	return out, nil
}

func evalOperator(op string, arg any, vs vars) (any, error) {
	switch op {
	case "$literal":
		return bsonx.Normalize(arg), nil

	case "$cond":
		var ifExpr, thenExpr, elseExpr any
		if arr, ok := asArray(arg); ok {
			if len(arr) != 3 {
				return nil, invalid("$cond expects 3 arguments")
			}
			ifExpr, thenExpr, elseExpr = arr[0], arr[1], arr[2]
		} else {
			named, err := namedArgs(op, arg, "if", "then", "else")
			if err != nil {
				return nil, err
			}
			ifExpr, thenExpr, elseExpr = named["if"], named["then"], named["else"]
		}
		cond, err := eval(ifExpr, vs)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return eval(thenExpr, vs)
		}
		return eval(elseExpr, vs)

	case "$ifNull":
		args, err := operands(op, arg, 2, -1)
		if err != nil {
			return nil, err
		}
		var v any
		for _, a := range args {
			if v, err = eval(a, vs); err != nil {
				return nil, err
			}
			if !isNullish(v) {
				return v, nil
			}
		}
		return v, nil

	case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
		vals, err := evalOperands(op, arg, vs, 2, 2)
		if err != nil {
			return nil, err
		}
		c := compareAgg(vals[0], vals[1])
		switch op {
		case "$eq":
			return c == 0, nil
		case "$ne":
			return c != 0, nil
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		}
		return c <= 0, nil

	case "$in":
		vals, err := evalOperands(op, arg, vs, 2, 2)
		if err != nil {
			return nil, err
		}
		arr, ok := vals[1].([]any)
		if !ok {
			return nil, invalid("$in requires an array as a second argument")
		}
		for _, e := range arr {
			if compareAgg(vals[0], e) == 0 {
				return true, nil
			}
		}
		return false, nil

	case "$not":
		vals, err := evalOperands(op, arg, vs, 1, 1)
		if err != nil {
			return nil, err
		}
		return !truthy(vals[0]), nil

	case "$and", "$or":
		args, err := operands(op, arg, 0, -1)
		if err != nil {
			return nil, err
		}
		for _, a := range args {
			v, err := eval(a, vs)
			if err != nil {
				return nil, err
			}
			if op == "$and" && !truthy(v) {
				return false, nil
			}
			if op == "$or" && truthy(v) {
				return true, nil
			}
		}
		return op == "$and", nil

	case "$indexOfCP":
		vals, err := evalOperands(op, arg, vs, 2, 2)
		if err != nil {
			return nil, err
		}
		if isNullish(vals[0]) {
			return nil, nil
		}
		s, ok := vals[0].(string)
		sub, ok2 := vals[1].(string)
		if !ok || !ok2 {
			return nil, invalid("$indexOfCP requires strings")
		}
		idx := strings.Index(s, sub)
		if idx < 0 {
			return int32(-1), nil
		}
		return int32(utf8.RuneCountInString(s[:idx])), nil

	case "$type":
		vals, err := evalOperands(op, arg, vs, 1, 1)
		if err != nil {
			return nil, err
		}
		return typeAlias(vals[0]), nil

	case "$size":
		vals, err := evalOperands(op, arg, vs, 1, 1)
		if err != nil {
			return nil, err
		}
		arr, ok := vals[0].([]any)
		if !ok {
			return nil, invalid("$size requires an array")
		}
		return int32(len(arr)), nil

	case "$map", "$filter":
		return evalArrayOp(op, arg, vs)
	}

	return nil, unsupported("operator", op)
}

func evalArrayOp(op string, arg any, vs vars) (any, error) {
	body := "in"
	if op == "$filter" {
		body = "cond"
	}
	named, err := namedArgs(op, arg, "input", "as", body)
	if err != nil {
		return nil, err
	}

	input, err := eval(named["input"], vs)
	if err != nil {
		return nil, err
	}
	if isNullish(input) {
		return nil, nil
	}
	arr, ok := input.([]any)
	if !ok {
		return nil, invalid(op + " input must resolve to an array")
	}

	as, _ := named["as"].(string)
	if as == "" {
		as = "this"
	}

	out := make([]any, 0, len(arr))
	for _, e := range arr {
		v, err := eval(named[body], vs.with(as, e))
		if err != nil {
			return nil, err
		}
		if op == "$filter" {
			if truthy(v) {
				out = append(out, e)
			}
			continue
		}
		if v == missing {
			v = nil
		}
		out = append(out, v)
	}
	return out, nil
}

// compareAgg orders values the way aggregation comparisons do: a missing
// value sorts before null
// typeAlias names a value the way $type does
func typeAlias(v any) string {
	switch t := v.(type) {
	case missingValue:
		return "missing"
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32:
		return "int"
	case int:
		// the driver encodes an int that fits as int32
		if t >= math.MinInt32 && t <= math.MaxInt32 {
			return "int"
		}
		return "long"
	case int64:
		return "long"
	case float64:
		return "double"
	case []any, bson.A:
		return "array"
	case bson.M, bson.D:
		return "object"
	case primitive.ObjectID:
		return "objectId"
	case primitive.DateTime:
		return "date"
	case primitive.Regex:
		return "regex"
	case primitive.Binary:
		return "binData"
	case primitive.Decimal128:
		return "decimal"
	case primitive.Timestamp:
		return "timestamp"
	}
	return "unknown"
}

func compareAgg(a, b any) int {
	switch {
	case a == missing && b == missing:
		return 0
	case a == missing:
		return -1
	case b == missing:
		return 1
	}
	return bsonx.Compare(a, b)
}

func namedArgs(op string, arg any, names ...string) (map[string]any, error) {
	fields, ok := entries(arg)
	if !ok {
		return nil, invalid(op + " expects an object")
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	for _, n := range names {
		if _, ok := out[n]; !ok && n != "as" {
			return nil, invalid(op + " is missing '" + n + "'")
		}
	}
	return out, nil
}

func operands(op string, arg any, minN, maxN int) ([]any, error) {
	args, ok := asArray(arg)
	if !ok {
		args = []any{arg}
	}
	if len(args) < minN || (maxN >= 0 && len(args) > maxN) {
		return nil, invalid(op + " has the wrong number of arguments")
	}
	return args, nil
}

func evalOperands(op string, arg any, vs vars, minN, maxN int) ([]any, error) {
	args, err := operands(op, arg, minN, maxN)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(args))
	for i, a := range args {
		if out[i], err = eval(a, vs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func unsupported(kind, name string) error {
	return storex.StoreErrors.New(storex.ErrUnsupportedStage).WithDetail(kind, name)
}

func invalid(reason string) error {
	return storex.StoreErrors.NewWithMessage(storex.ErrInvalidQuery, reason)
}
