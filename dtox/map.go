package dtox

import (
	"errors"
	"reflect"

	"github.com/Conversia-AI/craftable-projection/bsonx"
	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/queryx"
)

// Map projects src into a new T using the registered table
func Map[S, T any](r *Registry, src S) (T, error) {
	var zero T

	v, err := r.MapValue(reflect.ValueOf(src), typeOf[T]())
	if err != nil {
		return zero, err
	}
	return v.Interface().(T), nil
}

// MapAll projects every element of src. A nil input yields nil and an empty
// input yields an empty slice; the pair must be registered either way.
func MapAll[S, T any](r *Registry, src []S) ([]T, error) {
	if _, err := Resolve[S, T](r); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}

	out := make([]T, 0, len(src))
	for i, s := range src {
		t, err := Map[S, T](r, s)
		if err != nil {
			return nil, ErrorRegistry.NewWithCause(ErrBatchConversion, err).WithDetail("index", i)
		}
		out = append(out, t)
	}
	return out, nil
}

// MapValue projects a struct value into a new value of type target
func (r *Registry) MapValue(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	if !src.IsValid() {
		return reflect.Value{}, ErrorRegistry.New(ErrUnregisteredMapping).
			WithDetail("pair", Pair{Target: target}.String())
	}

	table, err := r.Resolve(src.Type(), target)
	if err != nil {
		return reflect.Value{}, err
	}

	out := reflect.New(target).Elem()
	for _, rule := range table.Rules {
		dst := out.FieldByIndex(rule.targetIndex)

		if rule.Conversion == Default {
			if rule.Default != nil {
				dst.Set(convertValue(deepCopy(reflect.ValueOf(rule.Default)), dst.Type()))
			}
			continue
		}

		v, err := r.convert(rule, src.FieldByIndex(rule.sourceIndex), dst.Type())
		if err != nil {
			return reflect.Value{}, err
		}
		dst.Set(v)
	}

	return out, nil
}

func (r *Registry) convert(rule Rule, sv reflect.Value, tt reflect.Type) (reflect.Value, error) {
	switch rule.Conversion {
	case Nested:
		if !rule.pointer {
			return r.MapValue(sv, rule.Element.Target)
		}
		if sv.IsNil() {
			return reflect.Zero(tt), nil
		}
		m, err := r.MapValue(sv.Elem(), rule.Element.Target)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(rule.Element.Target)
		ptr.Elem().Set(m)
		return ptr, nil

	case Each:
		return mapSlice(sv, tt, rule.Filter, func(e reflect.Value) (reflect.Value, error) {
			return r.MapValue(e, rule.Element.Target)
		})

	default:
		if rule.Filter != nil {
			return mapSlice(sv, tt, rule.Filter, func(e reflect.Value) (reflect.Value, error) {
				return deepCopy(e), nil
			})
		}
		return convertValue(deepCopy(sv), tt), nil
	}
}

func mapSlice(sv reflect.Value, tt reflect.Type, filter queryx.Predicate, fn func(reflect.Value) (reflect.Value, error)) (reflect.Value, error) {
	if sv.IsNil() {
		return reflect.Zero(tt), nil
	}

	out := reflect.MakeSlice(tt, 0, sv.Len())
	for i := 0; i < sv.Len(); i++ {
		e := sv.Index(i)

		if filter != nil {
			doc, err := bsonx.ToDocument(e.Interface())
			if err != nil {
				return reflect.Value{}, ErrorRegistry.NewWithCause(ErrTypeConversion, err).WithDetail("index", i)
			}
			if !queryx.Eval(filter, doc) {
				continue
			}
		}

		v, err := fn(e)
		if err != nil {
			var xerr *errx.Error
			if errors.As(err, &xerr) {
				return reflect.Value{}, xerr.WithDetail("index", i)
			}
			return reflect.Value{}, err
		}
		out = reflect.Append(out, v)
	}
	return out, nil
}

func convertValue(v reflect.Value, t reflect.Type) reflect.Value {
	if v.Type() == t {
		return v
	}
	return v.Convert(t)
}

// deepCopy copies pointees, slices and maps so the result shares no
// memory with v
func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		c := reflect.New(v.Type().Elem())
		c.Elem().Set(deepCopy(v.Elem()))
		return c
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			c.Index(i).Set(deepCopy(v.Index(i)))
		}
		return c
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		c := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return c
	case reflect.Struct:
		c := reflect.New(v.Type()).Elem()
		c.Set(v)
		for i := 0; i < c.NumField(); i++ {
			if f := c.Field(i); f.CanSet() {
				f.Set(deepCopy(v.Field(i)))
			}
		}
		return c
	}
	return v
}
