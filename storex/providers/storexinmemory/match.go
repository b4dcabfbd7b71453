package storexinmemory

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/bsonx"
)

// Match reports whether doc satisfies a query filter
func Match(doc bson.M, filter any) (bool, error) {
	if filter == nil {
		return true, nil
	}
	fields, ok := entries(filter)
	if !ok {
		return false, invalid("filter must be a document")
	}

	for _, f := range fields {
		ok, err := matchField(doc, f.Key, f.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchField(doc bson.M, key string, cond any) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := asArray(cond)
		if !ok || len(clauses) == 0 {
			return false, invalid(key + " requires a nonempty array")
		}
		for _, c := range clauses {
			ok, err := Match(doc, c)
			if err != nil {
				return false, err
			}
			switch {
			case key == "$and" && !ok:
				return false, nil
			case key == "$or" && ok:
				return true, nil
			case key == "$nor" && ok:
				return false, nil
			}
		}
		return key != "$or", nil

	case "$expr":
		v, err := eval(cond, rootVars(doc))
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}

	if strings.HasPrefix(key, "$") {
		return false, unsupported("operator", key)
	}

	if ops, ok := operatorDoc(cond); ok {
		for _, op := range ops {
			ok, err := matchOperator(doc, key, op.Key, op.Value, ops)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return matchEq(doc, key, cond)
}

// operatorDoc returns cond's entries when every key is an operator
func operatorDoc(cond any) ([]bson.E, bool) {
	fields, ok := entries(cond)
	if !ok || len(fields) == 0 {
		return nil, false
	}
	for _, f := range fields {
		if !strings.HasPrefix(f.Key, "$") {
			return nil, false
		}
	}
	return fields, true
}

func matchOperator(doc bson.M, key, op string, arg any, siblings []bson.E) (bool, error) {
	switch op {
	case "$eq":
		return matchEq(doc, key, arg)
	case "$ne":
		ok, err := matchEq(doc, key, arg)
		return !ok, err
	case "$in", "$nin":
		values, ok := asArray(arg)
		if !ok {
			return false, invalid(op + " needs an array")
		}
		in := false
		for _, v := range values {
			ok, err := matchEq(doc, key, v)
			if err != nil {
				return false, err
			}
			if ok {
				in = true
				break
			}
		}
		return in == (op == "$in"), nil
	case "$exists":
		exists := len(bsonx.Candidates(doc, key)) > 0
		return exists == truthy(arg), nil
	case "$regex":
		re, err := compileRegex(arg, optionsOf(siblings))
		if err != nil {
			return false, err
		}
		return anyString(doc, key, re.MatchString), nil
	case "$options":
		return true, nil
	case "$not":
		if rx, ok := arg.(primitive.Regex); ok {
			re, err := compileRegex(rx, "")
			if err != nil {
				return false, err
			}
			return !anyString(doc, key, re.MatchString), nil
		}
		ops, ok := operatorDoc(arg)
		if !ok {
			return false, invalid("$not needs a regex or operator document")
		}
		for _, o := range ops {
			ok, err := matchOperator(doc, key, o.Key, o.Value, ops)
			if err != nil {
				return false, err
			}
			if !ok {
				return true, nil
			}
		}
		return false, nil
	case "$gt", "$gte", "$lt", "$lte":
		target := bsonx.Normalize(arg)
		for _, c := range bsonx.Candidates(doc, key) {
			if !sameClass(c, target) {
				continue
			}
			cmp := bsonx.Compare(c, target)
			if (op == "$gt" && cmp > 0) || (op == "$gte" && cmp >= 0) ||
				(op == "$lt" && cmp < 0) || (op == "$lte" && cmp <= 0) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, unsupported("operator", op)
}

// matchEq applies equality with query semantics: any array element may
// match, a regex matches strings, and null matches a missing field
func matchEq(doc bson.M, key string, want any) (bool, error) {
	if rx, ok := want.(primitive.Regex); ok {
		re, err := compileRegex(rx, "")
		if err != nil {
			return false, err
		}
		return anyString(doc, key, re.MatchString), nil
	}

	want = bsonx.Normalize(want)
	candidates := bsonx.Candidates(doc, key)
	if want == nil && len(candidates) == 0 {
		return true, nil
	}
	for _, c := range candidates {
		if bsonx.Equal(c, want) {
			return true, nil
		}
	}
	return false, nil
}

func anyString(doc bson.M, key string, fn func(string) bool) bool {
	for _, c := range bsonx.Candidates(doc, key) {
		if s, ok := c.(string); ok && fn(s) {
			return true
		}
	}
	return false
}

func sameClass(a, b any) bool {
	if bsonx.IsNumber(a) && bsonx.IsNumber(b) {
		return true
	}
	_, as := a.(string)
	_, bs := b.(string)
	if as || bs {
		return as && bs
	}
	return a != nil && b != nil
}

func optionsOf(siblings []bson.E) string {
	for _, s := range siblings {
		if s.Key == "$options" {
			opts, _ := s.Value.(string)
			return opts
		}
	}
	return ""
}

func compileRegex(arg any, options string) (*regexp.Regexp, error) {
	var pattern string
	switch t := arg.(type) {
	case primitive.Regex:
		pattern = t.Pattern
		options += t.Options
	case string:
		pattern = t
	default:
		return nil, invalid("$regex needs a string or regex")
	}

	var flags string
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, invalid("invalid regex: " + err.Error())
	}
	return re, nil
}
