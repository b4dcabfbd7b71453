// Package stagex describes aggregation stages declaratively: a Projection is
// an ordered list of target keys and the rule producing each, rendered to a
// $project document. Projections are written by hand, derived from a dtox
// correspondence table, or parsed from Extended JSON.
package stagex

import (
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/queryx"
)

var ErrorRegistry = errx.NewRegistry("STAGEX")

var (
	ErrInvalidProjection = ErrorRegistry.Register("INVALID_PROJECTION", errx.TypeBadRequest, http.StatusBadRequest, "Projection document is invalid")
	ErrUnsupportedRule   = ErrorRegistry.Register("UNSUPPORTED_RULE", errx.TypeUnsupported, http.StatusNotImplemented, "Mapping rule has no stage form")
)

// Rule renders one projected value. Paths inside a rule are relative to
// the document or element the rule is evaluated against.
type Rule interface {
	render(base string) (any, error)
}

// Field binds a target key to a rule
type Field struct {
	Key  string
	Rule Rule
}

// Fields keeps target keys in output order
type Fields []Field

// Copy reads a stored path
type Copy struct {
	From string
}

// Literal emits a constant
type Literal struct {
	Value any
}

// Embed builds a sub-document from fields evaluated at the current level
type Embed struct {
	Fields Fields
}

// CondNull builds a sub-document from the document at From, or null when
// From is absent or null. Paths in Fields are relative to From.
type CondNull struct {
	From   string
	Fields Fields
}

// MapEach rebuilds every element of the array at From. Elements are bound
// to $$As; Where drops elements first. Nil Fields keeps elements unchanged.
type MapEach struct {
	From   string
	As     string
	Fields Fields
	Where  queryx.Predicate
}

func (c Copy) render(base string) (any, error) {
	return base + c.From, nil
}

func (l Literal) render(string) (any, error) {
	return bson.D{{Key: "$literal", Value: l.Value}}, nil
}

func (e Embed) render(base string) (any, error) {
	return e.Fields.render(base)
}

func (c CondNull) render(base string) (any, error) {
	path := base + c.From
	inner, err := c.Fields.render(path + ".")
	if err != nil {
		return nil, err
	}

	isNull := bson.D{{Key: "$eq", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{path, nil}}},
		nil,
	}}}
	return bson.D{{Key: "$cond", Value: bson.D{
		{Key: "if", Value: isNull},
		{Key: "then", Value: nil},
		{Key: "else", Value: inner},
	}}}, nil
}

func (m MapEach) render(base string) (any, error) {
	as := m.As
	if as == "" {
		as = "item"
	}

	var input any = base + m.From
	if m.Where != nil {
		cond, err := queryx.Expr(m.Where, "$$"+as)
		if err != nil {
			return nil, err
		}
		input = bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: input},
			{Key: "as", Value: as},
			{Key: "cond", Value: cond},
		}}}
	}

	if m.Fields == nil {
		return input, nil
	}

	in, err := m.Fields.render("$$" + as + ".")
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: input},
		{Key: "as", Value: as},
		{Key: "in", Value: in},
	}}}, nil
}

func (fs Fields) render(base string) (bson.D, error) {
	out := make(bson.D, 0, len(fs))
	for _, f := range fs {
		if f.Rule == nil {
			return nil, ErrorRegistry.New(ErrUnsupportedRule).WithDetail("key", f.Key)
		}
		v, err := f.Rule.render(base)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: f.Key, Value: v})
	}
	return out, nil
}

// Projection is a $project stage
type Projection struct {
	Fields    Fields
	ExcludeID bool

	raw bson.D
}

// Raw wraps an already rendered $project document
func Raw(doc bson.D) Projection {
	return Projection{raw: doc}
}

// IsRaw reports whether the projection was supplied as a document
func (p Projection) IsRaw() bool {
	return p.raw != nil
}

// Document renders the projection document
func (p Projection) Document() (bson.D, error) {
	if p.raw != nil {
		return p.raw, nil
	}

	doc, err := p.Fields.render("$")
	if err != nil {
		return nil, err
	}
	if p.ExcludeID && !hasKey(doc, "_id") {
		doc = append(doc, bson.E{Key: "_id", Value: 0})
	}
	return doc, nil
}

// Stage renders {$project: ...}
func (p Projection) Stage() (bson.D, error) {
	doc, err := p.Document()
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$project", Value: doc}}, nil
}

// Match renders {$match: ...}; a nil predicate yields no stage
func Match(p queryx.Predicate) (bson.D, error) {
	if p == nil {
		return nil, nil
	}
	filter, err := queryx.Filter(p)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "$match", Value: filter}}, nil
}

// Documents renders {$documents: [...]}. Each document is wrapped in
// $literal so string values starting with "$" are not read as paths.
func Documents[D any](docs []D) bson.D {
	arr := make(bson.A, len(docs))
	for i, d := range docs {
		arr[i] = bson.D{{Key: "$literal", Value: d}}
	}
	return bson.D{{Key: "$documents", Value: arr}}
}

// Limit renders {$limit: n}
func Limit(n int64) bson.D {
	return bson.D{{Key: "$limit", Value: n}}
}

// ParseProjection reads a projection from Extended JSON. Both the bare
// projection document and a {"$project": {...}} wrapper are accepted.
func ParseProjection(extJSON string) (Projection, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(extJSON), false, &doc); err != nil {
		return Projection{}, ErrorRegistry.NewWithCause(ErrInvalidProjection, err)
	}

	if len(doc) == 1 && doc[0].Key == "$project" {
		inner, ok := doc[0].Value.(bson.D)
		if !ok {
			return Projection{}, ErrorRegistry.New(ErrInvalidProjection).
				WithDetail("reason", fmt.Sprintf("$project holds %T", doc[0].Value))
		}
		doc = inner
	}
	if len(doc) == 0 {
		return Projection{}, ErrorRegistry.New(ErrInvalidProjection).WithDetail("reason", "empty projection")
	}
	return Raw(doc), nil
}

// ExtJSON renders a stage or pipeline as indented relaxed Extended JSON
func ExtJSON(v any) (string, error) {
	b, err := bson.MarshalExtJSONIndent(v, false, false, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func hasKey(doc bson.D, key string) bool {
	for _, e := range doc {
		if e.Key == key {
			return true
		}
	}
	return false
}
