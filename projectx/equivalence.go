package projectx

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/samber/lo"

	"github.com/Conversia-AI/craftable-projection/logx"
)

// Mismatch is one diverging value between two projections
type Mismatch struct {
	Path  string
	Left  any
	Right any
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s != %s", m.Path, format(m.Left), format(m.Right))
}

// diffReporter collects every unequal leaf with its path
type diffReporter struct {
	path  cmp.Path
	diffs []Mismatch
}

func (r *diffReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *diffReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.path.Last().Values()
	r.diffs = append(r.diffs, Mismatch{
		Path:  formatPath(r.path),
		Left:  valueOf(vx),
		Right: valueOf(vy),
	})
}

func (r *diffReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

// Diff compares two values structurally. A nil slice and an empty slice
// are different values and unexported fields take part in the comparison.
func Diff(left, right any) []Mismatch {
	var r diffReporter
	cmp.Equal(left, right, cmp.Reporter(&r), opaqueArrays, allFields)
	return r.diffs
}

var allFields = cmp.Exporter(func(reflect.Type) bool { return true })

// opaqueArrays compares fixed-size arrays such as ObjectIDs as one value
var opaqueArrays = cmp.FilterPath(func(p cmp.Path) bool {
	t := p.Last().Type()
	return t != nil && t.Kind() == reflect.Array
}, cmp.Comparer(func(a, b any) bool {
	return reflect.DeepEqual(a, b)
}))

// Compare returns ErrProjectionMismatch naming the first diverging path
func Compare(leftKind Kind, left any, rightKind Kind, right any) error {
	diffs := Diff(left, right)
	if len(diffs) == 0 {
		return nil
	}

	first := diffs[0]
	return ErrorRegistry.New(ErrProjectionMismatch).
		WithDetail("strategies", leftKind.String()+" vs "+rightKind.String()).
		WithDetail("path", first.Path).
		WithDetail("left", format(first.Left)).
		WithDetail("right", format(first.Right)).
		WithDetail("mismatches", lo.Map(diffs, func(m Mismatch, _ int) string { return m.String() }))
}

// Result is the output of one strategy
type Result[T any] struct {
	Kind  Kind
	Items []T
}

// Outcome holds every strategy's output in the order they ran
type Outcome[T any] struct {
	Results []Result[T]
}

// Items returns the output of the first strategy
func (o Outcome[T]) Items() []T {
	if len(o.Results) == 0 {
		return nil
	}
	return o.Results[0].Items
}

// Of returns the output of kind
func (o Outcome[T]) Of(kind Kind) ([]T, bool) {
	r, ok := lo.Find(o.Results, func(r Result[T]) bool { return r.Kind == kind })
	return r.Items, ok
}

// CheckEquivalence runs each strategy over src and compares every output to
// the first one. The outcome is returned alongside a mismatch so callers can
// report what each strategy produced.
func CheckEquivalence[S, T any](ctx context.Context, src Source[S], strategies ...Strategy[S, T]) (Outcome[T], error) {
	var outcome Outcome[T]

	if len(strategies) == 0 {
		return outcome, ErrorRegistry.New(ErrNoStrategies)
	}

	for _, s := range strategies {
		items, err := s.Project(ctx, src)
		if err != nil {
			return outcome, ErrorRegistry.NewWithCause(ErrStrategyFailed, err).WithDetail("strategy", s.Kind().String())
		}
		outcome.Results = append(outcome.Results, Result[T]{Kind: s.Kind(), Items: items})
	}

	base := outcome.Results[0]
	for _, r := range outcome.Results[1:] {
		if err := Compare(base.Kind, base.Items, r.Kind, r.Items); err != nil {
			logx.Warn("projectx: %s and %s disagree", base.Kind, r.Kind)
			return outcome, err
		}
	}

	logx.Debug("projectx: %d strategies agree on %d items", len(strategies), len(base.Items))
	return outcome, nil
}

func formatPath(p cmp.Path) string {
	var b strings.Builder
	for _, step := range p {
		switch s := step.(type) {
		case cmp.SliceIndex:
			ix, iy := s.SplitKeys()
			switch {
			case ix == iy:
				fmt.Fprintf(&b, "[%d]", ix)
			case ix < 0:
				fmt.Fprintf(&b, "[%d]", iy)
			default:
				fmt.Fprintf(&b, "[%d]", ix)
			}
		case cmp.StructField:
			b.WriteString("." + s.Name())
		case cmp.MapIndex:
			fmt.Fprintf(&b, "[%v]", s.Key())
		}
	}
	return strings.TrimPrefix(b.String(), ".")
}

func valueOf(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

func format(v any) string {
	if v == nil {
		return "<absent>"
	}
	if s, ok := v.(fmt.Stringer); ok {
		if rv := reflect.ValueOf(v); rv.Kind() != reflect.Ptr || !rv.IsNil() {
			return s.String()
		}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return fmt.Sprintf("&%+v", rv.Elem().Interface())
	}
	return fmt.Sprintf("%#v", v)
}
