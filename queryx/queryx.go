// Package queryx models the predicates a projection source can be filtered by
// and translates them to the two document-store forms: query filters for
// find/$match and aggregation expressions for $filter/$cond. Predicates can
// also be evaluated in process against a canonical document.
//
// Field names are stored keys ("_id", "Comments.Text"), never Go field names.
package queryx

import (
	"net/http"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/bsonx"
	"github.com/Conversia-AI/craftable-projection/errx"
)

var ErrorRegistry = errx.NewRegistry("QUERYX")

var (
	ErrTranslationUnsupported = ErrorRegistry.Register("TRANSLATION_UNSUPPORTED", errx.TypeUnsupported, http.StatusNotImplemented, "Predicate cannot be translated to a store expression")
)

// IsTranslationUnsupported reports whether err carries ErrTranslationUnsupported
func IsTranslationUnsupported(err error) bool {
	return errx.IsCode(err, ErrTranslationUnsupported)
}

// Predicate is a closed set of filter forms
type Predicate interface {
	predicate()
}

// In matches when the field equals any of Values
type In struct {
	Field  string
	Values []any
}

// Eq matches when the field equals Value
type Eq struct {
	Field string
	Value any
}

// Contains matches string fields holding Substring, case-sensitive
type Contains struct {
	Field     string
	Substring string
}

// Not negates P
type Not struct {
	P Predicate
}

// And matches when every member matches; empty And matches everything
type And []Predicate

// Or matches when any member matches; empty Or matches nothing
type Or []Predicate

// Func is an opaque in-process predicate. It has no store translation.
type Func struct {
	Name string
	Fn   func(doc bson.M) bool
}

func (In) predicate()       {}
func (Eq) predicate()       {}
func (Contains) predicate() {}
func (Not) predicate()      {}
func (And) predicate()      {}
func (Or) predicate()       {}
func (Func) predicate()     {}

// FieldIn builds an In predicate
func FieldIn[V any](field string, values ...V) In {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return In{Field: field, Values: out}
}

// FieldEq builds an Eq predicate
func FieldEq(field string, value any) Eq {
	return Eq{Field: field, Value: value}
}

// TextContains builds a Contains predicate
func TextContains(field, substring string) Contains {
	return Contains{Field: field, Substring: substring}
}

// Negate builds a Not predicate
func Negate(p Predicate) Not {
	return Not{P: p}
}

// AllOf builds an And predicate
func AllOf(ps ...Predicate) And {
	return And(ps)
}

// AnyOf builds an Or predicate
func AnyOf(ps ...Predicate) Or {
	return Or(ps)
}

// InProcess wraps fn as an opaque predicate
func InProcess(name string, fn func(doc bson.M) bool) Func {
	return Func{Name: name, Fn: fn}
}

// Filter translates p to a query filter document
func Filter(p Predicate) (bson.D, error) {
	if p == nil {
		return bson.D{}, nil
	}

	switch t := p.(type) {
	case In:
		return bson.D{{Key: t.Field, Value: bson.D{{Key: "$in", Value: values(t.Values)}}}}, nil
	case Eq:
		return bson.D{{Key: t.Field, Value: bson.D{{Key: "$eq", Value: t.Value}}}}, nil
	case Contains:
		return bson.D{{Key: t.Field, Value: bson.D{{Key: "$regex", Value: literalRegex(t.Substring)}}}}, nil
	case Not:
		return negatedFilter(t.P)
	case And:
		if len(t) == 0 {
			return bson.D{}, nil
		}
		parts, err := filters(t)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$and", Value: parts}}, nil
	case Or:
		if len(t) == 0 {
			// $nor over the empty filter never matches
			return bson.D{{Key: "$nor", Value: bson.A{bson.D{}}}}, nil
		}
		parts, err := filters(t)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$or", Value: parts}}, nil
	case Func:
		return nil, unsupported(t)
	}

	return nil, ErrorRegistry.New(ErrTranslationUnsupported).WithDetail("predicate", "unknown")
}

func negatedFilter(p Predicate) (bson.D, error) {
	switch t := p.(type) {
	case In:
		return bson.D{{Key: t.Field, Value: bson.D{{Key: "$nin", Value: values(t.Values)}}}}, nil
	case Eq:
		return bson.D{{Key: t.Field, Value: bson.D{{Key: "$ne", Value: t.Value}}}}, nil
	case Contains:
		return bson.D{{Key: t.Field, Value: bson.D{{Key: "$not", Value: literalRegex(t.Substring)}}}}, nil
	case Not:
		return Filter(t.P)
	}

	inner, err := Filter(p)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$nor", Value: bson.A{inner}}}, nil
}

func filters(ps []Predicate) (bson.A, error) {
	out := make(bson.A, 0, len(ps))
	for _, p := range ps {
		f, err := Filter(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Expr translates p to an aggregation expression. Field paths are resolved
// against base: "" for the current document, or a variable such as "$$c".
func Expr(p Predicate, base string) (any, error) {
	if p == nil {
		return true, nil
	}

	switch t := p.(type) {
	case In:
		return bson.D{{Key: "$in", Value: bson.A{fieldPath(base, t.Field), values(t.Values)}}}, nil
	case Eq:
		return bson.D{{Key: "$eq", Value: bson.A{fieldPath(base, t.Field), t.Value}}}, nil
	case Contains:
		return containsExpr(fieldPath(base, t.Field), t.Substring), nil
	case Not:
		inner, err := Expr(t.P, base)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$not", Value: bson.A{inner}}}, nil
	case And:
		parts, err := exprs(t, base)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$and", Value: parts}}, nil
	case Or:
		parts, err := exprs(t, base)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$or", Value: parts}}, nil
	case Func:
		return nil, unsupported(t)
	}

	return nil, ErrorRegistry.New(ErrTranslationUnsupported).WithDetail("predicate", "unknown")
}

func exprs(ps []Predicate, base string) (bson.A, error) {
	out := make(bson.A, 0, len(ps))
	for _, p := range ps {
		e, err := Expr(p, base)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Eval evaluates p against a canonical document with query semantics:
// arrays on the path are traversed and a missing field compares as null.
func Eval(p Predicate, doc bson.M) bool {
	if p == nil {
		return true
	}

	switch t := p.(type) {
	case In:
		for _, c := range candidatesOrNull(doc, t.Field) {
			for _, v := range t.Values {
				if bsonx.Equal(c, v) {
					return true
				}
			}
		}
		return false
	case Eq:
		for _, c := range candidatesOrNull(doc, t.Field) {
			if bsonx.Equal(c, t.Value) {
				return true
			}
		}
		return false
	case Contains:
		for _, c := range bsonx.Candidates(doc, t.Field) {
			if s, ok := c.(string); ok && strings.Contains(s, t.Substring) {
				return true
			}
		}
		return false
	case Not:
		return !Eval(t.P, doc)
	case And:
		for _, q := range t {
			if !Eval(q, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, q := range t {
			if Eval(q, doc) {
				return true
			}
		}
		return false
	case Func:
		return t.Fn != nil && t.Fn(doc)
	}
	return false
}

// Translatable reports whether p has a store translation
func Translatable(p Predicate) bool {
	switch t := p.(type) {
	case nil, In, Eq, Contains:
		return true
	case Not:
		return Translatable(t.P)
	case And:
		for _, q := range t {
			if !Translatable(q) {
				return false
			}
		}
		return true
	case Or:
		for _, q := range t {
			if !Translatable(q) {
				return false
			}
		}
		return true
	}
	return false
}

func candidatesOrNull(doc bson.M, field string) []any {
	c := bsonx.Candidates(doc, field)
	if len(c) == 0 {
		return []any{nil}
	}
	return c
}

// containsExpr matches a string holding sub, or an array holding such a
// string. Any other type is a non-match, as in Eval.
func containsExpr(path, sub string) bson.D {
	holds := func(v string) bson.D {
		index := bson.D{{Key: "$indexOfCP", Value: bson.A{v, sub}}}
		return cond(typeIs(v, "string"), bson.D{{Key: "$gte", Value: bson.A{index, 0}}}, false)
	}
	matching := bson.D{{Key: "$filter", Value: bson.D{
		{Key: "input", Value: path},
		{Key: "as", Value: "text"},
		{Key: "cond", Value: holds("$$text")},
	}}}
	anyElement := bson.D{{Key: "$gt", Value: bson.A{bson.D{{Key: "$size", Value: matching}}, 0}}}
	return cond(typeIs(path, "array"), anyElement, holds(path))
}

func typeIs(path, alias string) bson.D {
	return bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$type", Value: path}}, alias}}}
}

func cond(ifExpr, thenExpr, elseExpr any) bson.D {
	return bson.D{{Key: "$cond", Value: bson.A{ifExpr, thenExpr, elseExpr}}}
}

func fieldPath(base, field string) string {
	if base == "" {
		return "$" + field
	}
	return base + "." + field
}

// values never returns nil; the server rejects $in: null
func values(vs []any) bson.A {
	out := make(bson.A, len(vs))
	copy(out, vs)
	return out
}

func literalRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s)}
}

func unsupported(f Func) *errx.Error {
	name := f.Name
	if name == "" {
		name = "func"
	}
	return ErrorRegistry.New(ErrTranslationUnsupported).WithDetail("predicate", name)
}
