package storexinmemory

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Conversia-AI/craftable-projection/bsonx"
)

// run applies pipeline to docs. $documents is only accepted as the first
// stage of a collection-less pipeline.
func run(ctx context.Context, docs []bson.M, pipeline mongo.Pipeline, collectionless bool) ([]bson.M, error) {
	for i, stage := range pipeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(stage) != 1 {
			return nil, invalid("a pipeline stage must have exactly one field")
		}

		name, arg := stage[0].Key, stage[0].Value
		var err error

		switch name {
		case "$documents":
			if !collectionless || i != 0 {
				return nil, invalid("$documents is only valid as the first stage of a collection-less pipeline")
			}
			docs, err = documentsStage(arg)
		case "$match":
			docs, err = matchStage(docs, arg)
		case "$project":
			docs, err = projectStage(docs, arg)
		case "$limit", "$skip":
			n, ok := bsonx.Number(arg)
			if !ok || n < 0 {
				return nil, invalid(name + " needs a non-negative number")
			}
			docs = window(docs, name, int(n))
		default:
			return nil, unsupported("stage", name)
		}
		if err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func documentsStage(arg any) ([]bson.M, error) {
	v, err := eval(arg, vars{})
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, invalid("$documents must resolve to an array")
	}

	out := make([]bson.M, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(bson.M)
		if !ok {
			return nil, invalid("$documents elements must be documents")
		}
		out = append(out, m)
	}
	return out, nil
}

func matchStage(docs []bson.M, filter any) ([]bson.M, error) {
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func window(docs []bson.M, name string, n int) []bson.M {
	if name == "$skip" {
		if n >= len(docs) {
			return []bson.M{}
		}
		return docs[n:]
	}
	if n < len(docs) {
		return docs[:n]
	}
	return docs
}

type projection struct {
	includeID bool
	exclusion bool
	fields    []bson.E
}

func parseProjection(doc any) (projection, error) {
	fields, ok := entries(doc)
	if !ok || len(fields) == 0 {
		return projection{}, invalid("$project needs a nonempty document")
	}

	p := projection{includeID: true}
	var included, computed bool
	for _, f := range fields {
		if strings.Contains(f.Key, ".") {
			return projection{}, unsupported("projection path", f.Key)
		}

		flag, isFlag := projectionFlag(f.Value)
		if f.Key == "_id" && isFlag {
			p.includeID = flag
			continue
		}

		switch {
		case isFlag && flag:
			included = true
		case isFlag:
			p.exclusion = true
		default:
			computed = true
		}
		p.fields = append(p.fields, f)
	}

	if p.exclusion && (included || computed) {
		return projection{}, invalid("$project cannot mix exclusion with inclusion")
	}
	return p, nil
}

func projectionFlag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if n, ok := bsonx.Number(v); ok {
		return n != 0, true
	}
	return false, false
}

func projectStage(docs []bson.M, doc any) ([]bson.M, error) {
	p, err := parseProjection(doc)
	if err != nil {
		return nil, err
	}

	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		projected, err := p.apply(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, projected)
	}
	return out, nil
}

func (p projection) apply(doc bson.M) (bson.M, error) {
	if p.exclusion {
		out := make(bson.M, len(doc))
		for k, v := range doc {
			out[k] = v
		}
		for _, f := range p.fields {
			delete(out, f.Key)
		}
		if !p.includeID {
			delete(out, "_id")
		}
		return out, nil
	}

	out := bson.M{}
	if id, ok := doc["_id"]; ok && p.includeID {
		out["_id"] = id
	}

	vs := rootVars(doc)
	for _, f := range p.fields {
		if _, isFlag := projectionFlag(f.Value); isFlag {
			if v, ok := doc[f.Key]; ok {
				out[f.Key] = v
			}
			continue
		}

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
