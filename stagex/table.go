package stagex

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/Conversia-AI/craftable-projection/dtox"
)

// FromTable derives the projection equivalent to mapping through table.
// Nested pairs are resolved in reg.
func FromTable(reg *dtox.Registry, table *dtox.CorrespondenceTable) (Projection, error) {
	fields, err := fieldsFromTable(reg, table, 0)
	if err != nil {
		return Projection{}, err
	}

	keepsID := lo.ContainsBy(table.Rules, func(r dtox.Rule) bool { return r.TargetKey == "_id" })
	return Projection{Fields: fields, ExcludeID: !keepsID}, nil
}

// For resolves (S, T) in reg and derives its projection
func For[S, T any](reg *dtox.Registry) (Projection, error) {
	table, err := dtox.Resolve[S, T](reg)
	if err != nil {
		return Projection{}, err
	}
	return FromTable(reg, table)
}

func fieldsFromTable(reg *dtox.Registry, table *dtox.CorrespondenceTable, depth int) (Fields, error) {
	fields := make(Fields, 0, len(table.Rules))

	for _, rule := range table.Rules {
		var r Rule

		switch rule.Conversion {
		case dtox.Assign:
			r = Copy{From: rule.SourceKey}
			if rule.Filter != nil {
				r = MapEach{From: rule.SourceKey, As: elementVar(depth), Where: rule.Filter}
			}

		case dtox.Default:
			r = Literal{Value: rule.Default}

		case dtox.Nested:
			inner, err := nestedFields(reg, rule, depth)
			if err != nil {
				return nil, err
			}
			r = CondNull{From: rule.SourceKey, Fields: inner}

		case dtox.Each:
			inner, err := nestedFields(reg, rule, depth+1)
			if err != nil {
				return nil, err
			}
			r = MapEach{From: rule.SourceKey, As: elementVar(depth), Fields: inner, Where: rule.Filter}

		default:
			return nil, ErrorRegistry.New(ErrUnsupportedRule).
				WithDetail("field", rule.TargetField).
				WithDetail("conversion", rule.Conversion.String())
		}

		fields = append(fields, Field{Key: rule.TargetKey, Rule: r})
	}

	return fields, nil
}

func nestedFields(reg *dtox.Registry, rule dtox.Rule, depth int) (Fields, error) {
	table, err := reg.Resolve(rule.Element.Source, rule.Element.Target)
	if err != nil {
		return nil, err
	}
	return fieldsFromTable(reg, table, depth)
}

func elementVar(depth int) string {
	if depth == 0 {
		return "item"
	}
	return fmt.Sprintf("item%d", depth)
}
