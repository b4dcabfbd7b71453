package dtox

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/queryx"
)

// Conversion says how a rule produces its target value
type Conversion int

const (
	// Assign copies the source value, converting between scalar kinds
	Assign Conversion = iota
	// Nested maps a sub-document through the registered Element pair
	Nested
	// Each maps every element of a collection through the Element pair
	Each
	// Default sets a constant; no source field is read
	Default
)

func (c Conversion) String() string {
	switch c {
	case Assign:
		return "assign"
	case Nested:
		return "nested"
	case Each:
		return "each"
	case Default:
		return "default"
	}
	return fmt.Sprintf("conversion(%d)", int(c))
}

// Pair identifies a (source shape, target shape) registration
type Pair struct {
	Source reflect.Type
	Target reflect.Type
}

// PairOf returns the pair for S and T
func PairOf[S, T any]() Pair {
	return Pair{Source: typeOf[S](), Target: typeOf[T]()}
}

func (p Pair) String() string {
	return typeName(p.Source) + " -> " + typeName(p.Target)
}

// Rule is one compiled target field
type Rule struct {
	TargetField string
	TargetKey   string
	SourceField string
	SourceKey   string
	Conversion  Conversion
	// Element is the pair used by Nested and Each rules
	Element Pair
	Default any
	// Filter keeps only collection elements whose document form matches
	Filter queryx.Predicate

	targetIndex []int
	sourceIndex []int
	pointer     bool
}

// CorrespondenceTable is the compiled mapping for one pair. Rules follow the
// target's field order. A table is immutable once registered.
type CorrespondenceTable struct {
	Source reflect.Type
	Target reflect.Type
	Rules  []Rule

	fingerprint string
}

// Pair returns the table's type pair
func (t *CorrespondenceTable) Pair() Pair {
	return Pair{Source: t.Source, Target: t.Target}
}

// Rule returns the rule for a target field
func (t *CorrespondenceTable) Rule(targetField string) (Rule, bool) {
	return lo.Find(t.Rules, func(r Rule) bool { return r.TargetField == targetField })
}

// Option adjusts how a pair is compiled
type Option func(*settings)

type settings struct {
	mappings map[string]string
	ignore   map[string]bool
	defaults map[string]any
	filters  map[string]queryx.Predicate
}

func newSettings(opts []Option) *settings {
	s := &settings{
		mappings: make(map[string]string),
		ignore:   make(map[string]bool),
		defaults: make(map[string]any),
		filters:  make(map[string]queryx.Predicate),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithFieldMapping binds targetField to sourceField instead of matching by name
func WithFieldMapping(sourceField, targetField string) Option {
	return func(s *settings) { s.mappings[targetField] = sourceField }
}

// WithIgnoreField leaves targetField at its zero value
func WithIgnoreField(targetField string) Option {
	return func(s *settings) { s.ignore[targetField] = true }
}

// WithDefault sets targetField to value for every source
func WithDefault(targetField string, value any) Option {
	return func(s *settings) { s.defaults[targetField] = value }
}

// WithElementFilter keeps only the elements of a collection field matching p.
// The predicate sees the source element's stored keys.
func WithElementFilter(targetField string, p queryx.Predicate) Option {
	return func(s *settings) { s.filters[targetField] = p }
}

func (s *settings) fingerprint() string {
	var parts []string
	for _, k := range sortedKeys(s.mappings) {
		parts = append(parts, "map:"+k+"="+s.mappings[k])
	}
	for _, k := range sortedKeys(s.ignore) {
		parts = append(parts, "ignore:"+k)
	}
	for _, k := range sortedKeys(s.defaults) {
		parts = append(parts, fmt.Sprintf("default:%s=%#v", k, s.defaults[k]))
	}
	for _, k := range sortedKeys(s.filters) {
		parts = append(parts, fmt.Sprintf("filter:%s=%#v", k, s.filters[k]))
	}
	return strings.Join(parts, ";")
}

// Registry holds compiled correspondence tables keyed by type pair
type Registry struct {
	mu     sync.RWMutex
	tables map[Pair]*CorrespondenceTable
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tables: make(map[Pair]*CorrespondenceTable)}
}

// Register compiles and stores the table for (source, target). Registering
// the same pair again with identical options returns the existing table.
func (r *Registry) Register(source, target reflect.Type, opts ...Option) (*CorrespondenceTable, error) {
	p := Pair{Source: source, Target: target}
	s := newSettings(opts)
	fp := s.fingerprint()

	r.mu.RLock()
	existing := r.tables[p]
	r.mu.RUnlock()
	if existing != nil {
		return sameOptions(existing, fp)
	}

	table, err := compile(p, s)
	if err != nil {
		return nil, err
	}
	table.fingerprint = fp

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.tables[p]; existing != nil {
		return sameOptions(existing, fp)
	}
	r.tables[p] = table

	logx.Debug("dtox: registered %s (%d rules)", p, len(table.Rules))
	return table, nil
}

func sameOptions(existing *CorrespondenceTable, fp string) (*CorrespondenceTable, error) {
	if existing.fingerprint == fp {
		return existing, nil
	}
	return nil, configurationError(existing.Pair(), "pair already registered with different options")
}

// Register is the generic form of Registry.Register
func Register[S, T any](r *Registry, opts ...Option) (*CorrespondenceTable, error) {
	return r.Register(typeOf[S](), typeOf[T](), opts...)
}

// Resolve returns the table for (source, target)
func (r *Registry) Resolve(source, target reflect.Type) (*CorrespondenceTable, error) {
	p := Pair{Source: source, Target: target}

	r.mu.RLock()
	table, ok := r.tables[p]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrorRegistry.New(ErrUnregisteredMapping).WithDetail("pair", p.String())
	}
	return table, nil
}

// Resolve is the generic form of Registry.Resolve
func Resolve[S, T any](r *Registry) (*CorrespondenceTable, error) {
	return r.Resolve(typeOf[S](), typeOf[T]())
}

// Pairs lists registered pairs ordered by name
func (r *Registry) Pairs() []Pair {
	r.mu.RLock()
	pairs := lo.Keys(r.tables)
	r.mu.RUnlock()

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// Validate checks that every nested pair referenced by a table is registered
func (r *Registry) Validate() error {
	var missing []string
	for _, p := range r.Pairs() {
		table, err := r.Resolve(p.Source, p.Target)
		if err != nil {
			return err
		}
		for _, rule := range table.Rules {
			if rule.Conversion != Nested && rule.Conversion != Each {
				continue
			}
			if _, err := r.Resolve(rule.Element.Source, rule.Element.Target); err != nil {
				missing = append(missing, fmt.Sprintf("%s.%s needs %s", typeName(p.Target), rule.TargetField, rule.Element))
			}
		}
	}

	if len(missing) > 0 {
		return ErrorRegistry.New(ErrConfiguration).
			WithDetail("reason", "nested pairs are not registered").
			WithDetail("missing", strings.Join(missing, "; "))
	}
	return nil
}

type field struct {
	reflect.StructField
	key string
}

func fieldsOf(t reflect.Type) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := bsonKey(sf)
		if key == "-" {
			continue
		}
		out = append(out, field{StructField: sf, key: key})
	}
	return out
}

// bsonKey follows the driver's default: the tag name, else the lowercased field name
func bsonKey(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("bson"), ",")
	if name == "" {
		return strings.ToLower(sf.Name)
	}
	return name
}

func compile(p Pair, s *settings) (*CorrespondenceTable, error) {
	if p.Source == nil || p.Target == nil || p.Source.Kind() != reflect.Struct || p.Target.Kind() != reflect.Struct {
		return nil, configurationError(p, "source and target must be struct types")
	}

	sources := fieldsOf(p.Source)
	targets := fieldsOf(p.Target)

	byName := lo.KeyBy(sources, func(f field) string { return f.Name })
	byNorm := lo.GroupBy(sources, func(f field) string { return NormalizeName(f.Name) })
	targetNames := lo.SliceToMap(targets, func(f field) (string, bool) { return f.Name, true })

	if err := checkOptionFields(p, s, byName, targetNames); err != nil {
		return nil, err
	}

	table := &CorrespondenceTable{Source: p.Source, Target: p.Target}
	for _, tf := range targets {
		if s.ignore[tf.Name] {
			continue
		}

		if def, ok := s.defaults[tf.Name]; ok {
			if !defaultAssignable(def, tf.Type) {
				return nil, configurationError(p, "default is not assignable").
					WithDetail("field", tf.Name).
					WithDetail("value_type", reflect.TypeOf(def).String()).
					WithDetail("target_type", tf.Type.String())
			}
			table.Rules = append(table.Rules, Rule{
				TargetField: tf.Name,
				TargetKey:   tf.key,
				Conversion:  Default,
				Default:     def,
				targetIndex: tf.Index,
			})
			continue
		}

		var sf field
		if name, ok := s.mappings[tf.Name]; ok {
			sf = byName[name]
		} else {
			matches := byNorm[NormalizeName(tf.Name)]
			switch len(matches) {
			case 0:
				return nil, configurationError(p, "target field has no source correspondent").WithDetail("field", tf.Name)
			case 1:
				sf = matches[0]
			default:
				names := lo.Map(matches, func(f field, _ int) string { return f.Name })
				return nil, configurationError(p, "ambiguous source fields").
					WithDetail("field", tf.Name).
					WithDetail("candidates", strings.Join(names, ", "))
			}
		}

		rule, err := bind(p, tf, sf)
		if err != nil {
			return nil, err
		}

		if filter, ok := s.filters[tf.Name]; ok {
			if tf.Type.Kind() != reflect.Slice {
				return nil, configurationError(p, "element filter on a non-collection field").WithDetail("field", tf.Name)
			}
			rule.Filter = filter
		}

		table.Rules = append(table.Rules, rule)
	}

	return table, nil
}

func checkOptionFields(p Pair, s *settings, sources map[string]field, targets map[string]bool) error {
	for target, source := range s.mappings {
		if !targets[target] {
			return configurationError(p, "mapped target field does not exist").WithDetail("field", target)
		}
		if _, ok := sources[source]; !ok {
			return configurationError(p, "mapped source field does not exist").WithDetail("field", source)
		}
	}

	named := append(append(append([]string{}, lo.Keys(s.ignore)...), lo.Keys(s.defaults)...), lo.Keys(s.filters)...)
	sort.Strings(named)
	for _, name := range named {
		if !targets[name] {
			return configurationError(p, "option names an unknown target field").WithDetail("field", name)
		}
	}
	return nil
}

func bind(p Pair, tf, sf field) (Rule, error) {
	rule := Rule{
		TargetField: tf.Name,
		TargetKey:   tf.key,
		SourceField: sf.Name,
		SourceKey:   sf.key,
		Conversion:  Assign,
		targetIndex: tf.Index,
		sourceIndex: sf.Index,
	}

	st, tt := sf.Type, tf.Type
	switch {
	case st == tt:
	case st.Kind() == reflect.Struct && tt.Kind() == reflect.Struct:
		rule.Conversion = Nested
		rule.Element = Pair{Source: st, Target: tt}
	case isStructPtr(st) && isStructPtr(tt):
		rule.Conversion = Nested
		rule.Element = Pair{Source: st.Elem(), Target: tt.Elem()}
		rule.pointer = true
	case st.Kind() == reflect.Slice && tt.Kind() == reflect.Slice:
		se, te := st.Elem(), tt.Elem()
		switch {
		case se == te:
		case se.Kind() == reflect.Struct && te.Kind() == reflect.Struct:
			rule.Conversion = Each
			rule.Element = Pair{Source: se, Target: te}
		default:
			return Rule{}, incompatible(p, tf, sf)
		}
	case scalarConvertible(st, tt):
	default:
		return Rule{}, incompatible(p, tf, sf)
	}

	return rule, nil
}

func incompatible(p Pair, tf, sf field) error {
	return configurationError(p, "incompatible field types").
		WithDetail("field", tf.Name).
		WithDetail("source_type", sf.Type.String()).
		WithDetail("target_type", tf.Type.String())
}

func isStructPtr(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

// scalarConvertible allows identical kinds and numeric widening that keeps
// every source value. Narrowing, float to integer and signed to unsigned are
// refused because a decoder reading the same stored value rejects them.
func scalarConvertible(st, tt reflect.Type) bool {
	if !st.ConvertibleTo(tt) {
		return false
	}
	sk, tk := st.Kind(), tt.Kind()
	if sk == tk {
		return true
	}
	if !isNumeric(sk) || !isNumeric(tk) {
		return false
	}

	switch {
	case isSigned(sk) && isSigned(tk):
		return tt.Bits() >= st.Bits()
	case isUnsigned(sk) && isUnsigned(tk):
		return tt.Bits() >= st.Bits()
	case isUnsigned(sk) && isSigned(tk):
		return tt.Bits() > st.Bits()
	case isFloat(sk) && isFloat(tk):
		return tt.Bits() >= st.Bits()
	case (isSigned(sk) || isUnsigned(sk)) && isFloat(tk):
		// exact within the mantissa: 24 bits for float32, 53 for float64
		return st.Bits() <= 16 || (tk == reflect.Float64 && st.Bits() <= 32)
	}
	return false
}

// defaultAssignable accepts a default that can be stored in tt without
// losing its value
func defaultAssignable(def any, tt reflect.Type) bool {
	if def == nil {
		return true
	}
	v := reflect.ValueOf(def)
	dt := v.Type()
	if dt.AssignableTo(tt) || scalarConvertible(dt, tt) {
		return true
	}
	if !isNumeric(dt.Kind()) || !isNumeric(tt.Kind()) || !dt.ConvertibleTo(tt) {
		return false
	}

	if isUnsigned(tt.Kind()) && ((isSigned(dt.Kind()) && v.Int() < 0) || (isFloat(dt.Kind()) && v.Float() < 0)) {
		return false
	}
	back := v.Convert(tt).Convert(dt)
	return back.Interface() == v.Interface()
}

func isNumeric(k reflect.Kind) bool {
	return isSigned(k) || isUnsigned(k) || isFloat(k)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
