package dtox

import (
	"sync"

	"github.com/Conversia-AI/craftable-projection/queryx"
)

// Mapper provides type-safe projection from S to T backed by a Registry
type Mapper[S any, T any] struct {
	registry      *Registry
	fieldMappings map[string]string
	ignoreFields  []string
	defaults      map[string]any
	filters       map[string]Option
	rules         []ValidationRule
	once          sync.Once
	table         *CorrespondenceTable
	err           error
}

// NewMapper creates a mapper that registers into r; a nil r gets a private registry
func NewMapper[S any, T any](r *Registry) *Mapper[S, T] {
	if r == nil {
		r = NewRegistry()
	}
	return &Mapper[S, T]{
		registry:      r,
		fieldMappings: make(map[string]string),
		defaults:      make(map[string]any),
		filters:       make(map[string]Option),
	}
}

// WithFieldMapping adds a field name mapping from source field to target field
func (m *Mapper[S, T]) WithFieldMapping(sourceField, targetField string) *Mapper[S, T] {
	m.fieldMappings[targetField] = sourceField
	return m
}

// WithIgnoreField specifies a target field to leave unset
func (m *Mapper[S, T]) WithIgnoreField(field string) *Mapper[S, T] {
	m.ignoreFields = append(m.ignoreFields, field)
	return m
}

// WithDefault sets a constant for a target field
func (m *Mapper[S, T]) WithDefault(field string, value any) *Mapper[S, T] {
	m.defaults[field] = value
	return m
}

// WithElementFilter filters the elements of a collection field
func (m *Mapper[S, T]) WithElementFilter(field string, p queryx.Predicate) *Mapper[S, T] {
	m.filters[field] = WithElementFilter(field, p)
	return m
}

// Options returns the registration options collected so far
func (m *Mapper[S, T]) Options() []Option {
	var opts []Option
	for _, target := range sortedKeys(m.fieldMappings) {
		opts = append(opts, WithFieldMapping(m.fieldMappings[target], target))
	}
	for _, field := range m.ignoreFields {
		opts = append(opts, WithIgnoreField(field))
	}
	for _, field := range sortedKeys(m.defaults) {
		opts = append(opts, WithDefault(field, m.defaults[field]))
	}
	for _, field := range sortedKeys(m.filters) {
		opts = append(opts, m.filters[field])
	}
	return opts
}

// Register compiles the mapping once; later calls return the first outcome
func (m *Mapper[S, T]) Register() (*Mapper[S, T], error) {
	m.once.Do(func() {
		m.table, m.err = Register[S, T](m.registry, m.Options()...)
	})
	return m, m.err
}

// Table returns the compiled correspondence table
func (m *Mapper[S, T]) Table() (*CorrespondenceTable, error) {
	return Resolve[S, T](m.registry)
}

// Registry returns the backing registry
func (m *Mapper[S, T]) Registry() *Registry {
	return m.registry
}

// Map validates and converts a single source value
func (m *Mapper[S, T]) Map(src S) (T, error) {
	if err := Validate(src, m.rules); err != nil {
		var zero T
		return zero, err
	}
	return Map[S, T](m.registry, src)
}

// MapAll validates every source value, then converts them all
func (m *Mapper[S, T]) MapAll(src []S) ([]T, error) {
	for i, s := range src {
		if err := Validate(s, m.rules); err != nil {
			return nil, ErrorRegistry.NewWithCause(ErrBatchConversion, err).WithDetail("index", i)
		}
	}
	return MapAll[S, T](m.registry, src)
}
