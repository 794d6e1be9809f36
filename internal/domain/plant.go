package domain

import (
	"fmt"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
)

// Fact kind names for the plant domain.
const (
	KindPlant           = "plant"
	KindAttributeFilter = "attribute_filter"
	KindPlantAnswer     = "plant_answer"
)

// Plant is one catalog entry. The sample catalog is Russian-language;
// attribute matching is exact string equality.
type Plant struct {
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
	Size  string `json:"size" yaml:"size"`
	Type  string `json:"type" yaml:"type"`
	Link  string `json:"link" yaml:"link"`
}

// PlantCriteria is one caller query against the plant catalog.
// All three attributes participate in one criteria fact (one field group).
type PlantCriteria struct {
	Color string
	Size  string
	Type  string
}

// PlantKinds returns the plant fact kind definitions.
func PlantKinds() []ir.Kind {
	record := ir.NewKind(KindPlant,
		ir.F("name", ir.StringField),
		ir.F("color", ir.StringField),
		ir.F("size", ir.StringField),
		ir.F("type", ir.StringField),
		ir.F("link", ir.StringField),
	)
	answer := ir.NewKind(KindPlantAnswer, record.Fields...)
	return []ir.Kind{
		record,
		ir.NewKind(KindAttributeFilter,
			ir.F("color", ir.StringField),
			ir.F("size", ir.StringField),
			ir.F("type", ir.StringField),
		),
		answer,
	}
}

// PlantRules builds the plant rule set: a pure equality join of the
// attribute filter and the plant record on color, size, and type. No test
// predicate - structural matching carries the whole constraint.
func PlantRules() (*ir.RuleSet, error) {
	kinds := PlantKinds()
	answerKind := kinds[2]

	match := ir.Rule{
		ID: "plant-attributes",
		Patterns: []ir.Pattern{
			{Kind: KindAttributeFilter, Fields: map[string]ir.Match{
				"color": ir.Var("color"),
				"size":  ir.Var("size"),
				"type":  ir.Var("type"),
			}},
			{Kind: KindPlant, Fields: map[string]ir.Match{
				"color": ir.Var("color"),
				"size":  ir.Var("size"),
				"type":  ir.Var("type"),
				"name":  ir.Var("name"),
				"link":  ir.Var("link"),
			}},
		},
		ActionVars: []string{"name", "color", "size", "type", "link"},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			f, err := answerKind.New(ir.Object{
				"name":  b["name"],
				"color": b["color"],
				"size":  b["size"],
				"type":  b["type"],
				"link":  b["link"],
			})
			if err != nil {
				return nil, err
			}
			return []ir.Fact{f}, nil
		},
		Produces: []string{KindPlantAnswer},
	}

	return ir.NewRuleSet(kinds, []ir.Rule{match})
}

// PlantFacade builds a query façade for the plant domain.
func PlantFacade(opts ...query.FacadeOption) (*query.Facade, error) {
	rules, err := PlantRules()
	if err != nil {
		return nil, err
	}
	return query.NewFacade("plants", rules, []string{KindPlantAnswer}, opts...)
}

// Facts builds the single criteria fact for this query.
func (c PlantCriteria) Facts() []ir.Fact {
	return []ir.Fact{
		PlantKinds()[1].MustNew(ir.Object{
			"color": ir.String(c.Color),
			"size":  ir.String(c.Size),
			"type":  ir.String(c.Type),
		}),
	}
}

// Fact converts a plant record into a record fact.
func (p Plant) Fact() (ir.Fact, error) {
	return PlantKinds()[0].New(ir.Object{
		"name":  ir.String(p.Name),
		"color": ir.String(p.Color),
		"size":  ir.String(p.Size),
		"type":  ir.String(p.Type),
		"link":  ir.String(p.Link),
	})
}

// PlantFromRecord maps a raw source record into a record fact.
func PlantFromRecord(m map[string]any) (ir.Fact, error) {
	fields := make(ir.Object, len(m))
	for k, raw := range m {
		if raw == nil {
			continue
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return ir.Fact{}, fmt.Errorf("plant record field %q: %w", k, err)
		}
		fields[k] = v
	}
	return PlantKinds()[0].New(fields)
}

// PlantFromAnswer maps an answer fact back to the caller-visible shape.
func PlantFromAnswer(f ir.Fact) (Plant, error) {
	if f.Kind != KindPlantAnswer {
		return Plant{}, fmt.Errorf("want %s fact, got %s", KindPlantAnswer, f.Kind)
	}
	return Plant{
		Name:  fieldString(f, "name"),
		Color: fieldString(f, "color"),
		Size:  fieldString(f, "size"),
		Type:  fieldString(f, "type"),
		Link:  fieldString(f, "link"),
	}, nil
}
