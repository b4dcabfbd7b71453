// Package bsonx holds BSON document helpers shared by the stores, the
// predicate evaluator and the mapper: conversion to a canonical document form,
// dotted-path lookup, and BSON equality and ordering.
//
// The canonical form uses bson.M for documents and []any for arrays so callers
// never need to handle bson.D, primitive.A and friends separately.
package bsonx

import (
	"bytes"
	"reflect"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ToDocument converts a struct or map into canonical document form
func ToDocument(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return Normalize(doc).(bson.M), nil
}

// Decode unmarshals a raw document into T
func Decode[T any](raw bson.Raw) (T, error) {
	var out T
	err := bson.Unmarshal(raw, &out)
	return out, err
}

// Normalize rewrites documents to bson.M and arrays to []any, recursively
func Normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(bson.M, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[string]any:
		return Normalize(bson.M(t))
	case bson.D:
		out := make(bson.M, len(t))
		for _, e := range t {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case bson.A:
		return normalizeSlice(t)
	case []any:
		return normalizeSlice(t)
	case bson.Raw:
		var doc bson.M
		if err := bson.Unmarshal(t, &doc); err != nil {
			return t
		}
		return Normalize(doc)
	}
	return v
}

func normalizeSlice(in []any) []any {
	out := make([]any, len(in))
	for i, e := range in {
		out[i] = Normalize(e)
	}
	return out
}

// Lookup resolves a dotted path without traversing arrays
func Lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(bson.M)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Candidates resolves a dotted path the way query predicates do: when an
// array is crossed, every element is followed, and an array found at the end
// contributes both itself and its elements.
func Candidates(doc bson.M, path string) []any {
	return candidates(doc, strings.Split(path, "."))
}

func candidates(cur any, parts []string) []any {
	if len(parts) == 0 {
		if arr, ok := cur.([]any); ok {
			out := append([]any{arr}, arr...)
			return out
		}
		return []any{cur}
	}

	switch t := cur.(type) {
	case bson.M:
		next, ok := t[parts[0]]
		if !ok {
			return nil
		}
		return candidates(next, parts[1:])
	case []any:
		var out []any
		for _, e := range t {
			if m, ok := e.(bson.M); ok {
				out = append(out, candidates(m, parts)...)
			}
		}
		return out
	}
	return nil
}

// Equal reports BSON value equality; numbers compare across widths
func Equal(a, b any) bool {
	a, b = Normalize(a), Normalize(b)

	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch x := a.(type) {
	case nil:
		return b == nil
	case bson.M:
		y, ok := b.(bson.M)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// typeOrder follows the server's cross-type comparison order
func typeOrder(v any) int {
	if _, ok := toFloat(v); ok {
		return 2
	}
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return 1
	case string, primitive.Symbol:
		return 3
	case bson.M:
		return 4
	case []any:
		return 5
	case primitive.Binary, []byte:
		return 6
	case primitive.ObjectID:
		return 7
	case bool:
		return 8
	case primitive.DateTime, primitive.Timestamp:
		return 9
	case primitive.Regex:
		return 10
	}
	return 11
}

// Compare orders two BSON values: -1, 0 or 1
func Compare(a, b any) int {
	a, b = Normalize(a), Normalize(b)

	ta, tb := typeOrder(a), typeOrder(b)
	if ta != tb {
		return sign(ta - tb)
	}

	switch ta {
	case 1:
		return 0
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(stringOf(a), stringOf(b))
	case 4:
		return compareDocs(a.(bson.M), b.(bson.M))
	case 5:
		x, y := a.([]any), b.([]any)
		for i := 0; i < len(x) && i < len(y); i++ {
			if c := Compare(x[i], y[i]); c != 0 {
				return c
			}
		}
		return sign(len(x) - len(y))
	case 7:
		x, y := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(x[:], y[:])
	case 8:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case 9:
		x, y := dateOf(a), dateOf(b)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}

	if Equal(a, b) {
		return 0
	}
	return strings.Compare(reflect.ValueOf(a).String(), reflect.ValueOf(b).String())
}

func compareDocs(x, y bson.M) int {
	kx, ky := sortedKeys(x), sortedKeys(y)
	for i := 0; i < len(kx) && i < len(ky); i++ {
		if c := strings.Compare(kx[i], ky[i]); c != 0 {
			return c
		}
		if c := Compare(x[kx[i]], y[ky[i]]); c != 0 {
			return c
		}
	}
	return sign(len(kx) - len(ky))
}

func sortedKeys(m bson.M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// IsNumber reports whether v is any numeric BSON value
func IsNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// Number returns v as float64 when it is numeric
func Number(v any) (float64, bool) {
	return toFloat(v)
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case primitive.Symbol:
		return string(s)
	}
	return ""
}

func dateOf(v any) int64 {
	switch d := v.(type) {
	case primitive.DateTime:
		return int64(d)
	case primitive.Timestamp:
		return int64(d.T)*1000 + int64(d.I)
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
