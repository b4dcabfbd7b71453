package projectx

import (
	"context"

	"github.com/Conversia-AI/craftable-projection/bsonx"
	"github.com/Conversia-AI/craftable-projection/queryx"
	"github.com/Conversia-AI/craftable-projection/storex"
)

// Source is what a strategy projects: in-process items or a stored
// collection, optionally narrowed by a predicate over stored keys
type Source[S any] struct {
	items []S
	coll  storex.Collection[S]
	where queryx.Predicate
}

// Items builds a source over in-process entities
func Items[S any](items ...S) Source[S] {
	if items == nil {
		items = []S{}
	}
	return Source[S]{items: items}
}

// Stored builds a source over a collection's lazy sequence
func Stored[S any](coll storex.Collection[S], where queryx.Predicate) Source[S] {
	return Source[S]{coll: coll, where: where}
}

// Where narrows the source; predicates are combined with AND
func (s Source[S]) Where(p queryx.Predicate) Source[S] {
	switch {
	case p == nil:
	case s.where == nil:
		s.where = p
	default:
		s.where = queryx.AllOf(s.where, p)
	}
	return s
}

// Predicate returns the source's filter, or nil
func (s Source[S]) Predicate() queryx.Predicate {
	return s.where
}

// Collection returns the backing collection, or nil for in-process items
func (s Source[S]) Collection() storex.Collection[S] {
	return s.coll
}

// Load materializes the source, evaluating the predicate in process
func (s Source[S]) Load(ctx context.Context) ([]S, error) {
	out := []S{}

	keep := func(item S) (bool, error) {
		if s.where == nil {
			return true, nil
		}
		doc, err := bsonx.ToDocument(item)
		if err != nil {
			return false, storex.StoreErrors.NewWithCause(storex.ErrDecodeFailed, err)
		}
		return queryx.Eval(s.where, doc), nil
	}

	if s.coll == nil {
		for _, item := range s.items {
			ok, err := keep(item)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, item)
			}
		}
		return out, nil
	}

	for item, err := range s.coll.Sequence(ctx) {
		if err != nil {
			return nil, err
		}
		ok, err := keep(item)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}
