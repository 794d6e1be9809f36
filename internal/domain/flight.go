package domain

import (
	"fmt"

	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
)

// Fact kind names for the flight domain.
const (
	KindFlight       = "flight"
	KindRouteFilter  = "route_filter"
	KindPriceLimit   = "price_limit"
	KindFlightAnswer = "flight_answer"
)

// Flight is one priced itinerary. Prices are integer minor units
// (kopecks/cents) - fact fields carry no floats.
type Flight struct {
	Origin      string `json:"origin" yaml:"origin"`
	Destination string `json:"destination" yaml:"destination"`
	Airline     string `json:"airline" yaml:"airline"`
	Price       int64  `json:"price" yaml:"price"`
	Currency    string `json:"currency" yaml:"currency"`
	Link        string `json:"link" yaml:"link"`
}

// FlightCriteria is one caller query against the flight catalog.
type FlightCriteria struct {
	Origin      string
	Destination string
	MaxPrice    int64
}

// FlightKinds returns the flight fact kind definitions.
func FlightKinds() []ir.Kind {
	record := ir.NewKind(KindFlight,
		ir.F("origin", ir.StringField),
		ir.F("destination", ir.StringField),
		ir.F("airline", ir.StringField),
		ir.F("price", ir.IntField),
		ir.F("currency", ir.StringField),
		ir.F("link", ir.StringField),
	)
	answer := ir.NewKind(KindFlightAnswer, record.Fields...)
	return []ir.Kind{
		record,
		ir.NewKind(KindRouteFilter,
			ir.F("origin", ir.StringField),
			ir.F("destination", ir.StringField),
		),
		ir.NewKind(KindPriceLimit, ir.F("value", ir.IntField)),
		answer,
	}
}

// FlightRules builds the flight rule set: equality join on the route plus
// an inclusive price ceiling test.
func FlightRules() (*ir.RuleSet, error) {
	kinds := FlightKinds()
	answerKind := kinds[3]

	match := ir.Rule{
		ID: "flight-route-price",
		Patterns: []ir.Pattern{
			{Kind: KindRouteFilter, Fields: map[string]ir.Match{
				"origin":      ir.Var("origin"),
				"destination": ir.Var("destination"),
			}},
			{Kind: KindPriceLimit, Fields: map[string]ir.Match{
				"value": ir.Var("limit"),
			}},
			{Kind: KindFlight, Fields: map[string]ir.Match{
				"origin":      ir.Var("origin"),
				"destination": ir.Var("destination"),
				"airline":     ir.Var("airline"),
				"price":       ir.Var("price"),
				"currency":    ir.Var("currency"),
				"link":        ir.Var("link"),
			}},
		},
		TestVars: []string{"price", "limit"},
		Test: func(b ir.Bindings) bool {
			price, ok1 := b.Int("price")
			limit, ok2 := b.Int("limit")
			if !ok1 || !ok2 {
				return false
			}
			return price <= limit
		},
		ActionVars: []string{"origin", "destination", "airline", "price", "currency", "link"},
		Action: func(b ir.Bindings) ([]ir.Fact, error) {
			f, err := answerKind.New(ir.Object{
				"origin":      b["origin"],
				"destination": b["destination"],
				"airline":     b["airline"],
				"price":       b["price"],
				"currency":    b["currency"],
				"link":        b["link"],
			})
			if err != nil {
				return nil, err
			}
			return []ir.Fact{f}, nil
		},
		Produces: []string{KindFlightAnswer},
	}

	return ir.NewRuleSet(kinds, []ir.Rule{match})
}

// FlightFacade builds a query façade for the flight domain.
func FlightFacade(opts ...query.FacadeOption) (*query.Facade, error) {
	rules, err := FlightRules()
	if err != nil {
		return nil, err
	}
	return query.NewFacade("flights", rules, []string{KindFlightAnswer}, opts...)
}

// Facts builds the criteria facts: one route filter, one price limit.
func (c FlightCriteria) Facts() []ir.Fact {
	kinds := FlightKinds()
	return []ir.Fact{
		kinds[1].MustNew(ir.Object{
			"origin":      ir.String(c.Origin),
			"destination": ir.String(c.Destination),
		}),
		kinds[2].MustNew(ir.Object{"value": ir.Int(c.MaxPrice)}),
	}
}

// Fact converts a flight record into a record fact.
func (f Flight) Fact() (ir.Fact, error) {
	return FlightKinds()[0].New(ir.Object{
		"origin":      ir.String(f.Origin),
		"destination": ir.String(f.Destination),
		"airline":     ir.String(f.Airline),
		"price":       ir.Int(f.Price),
		"currency":    ir.String(f.Currency),
		"link":        ir.String(f.Link),
	})
}

// FlightFromRecord maps a raw source record into a record fact.
func FlightFromRecord(m map[string]any) (ir.Fact, error) {
	fields := make(ir.Object, len(m))
	for k, raw := range m {
		if raw == nil {
			continue
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return ir.Fact{}, fmt.Errorf("flight record field %q: %w", k, err)
		}
		fields[k] = v
	}
	return FlightKinds()[0].New(fields)
}

// FlightFromAnswer maps an answer fact back to the caller-visible shape.
func FlightFromAnswer(f ir.Fact) (Flight, error) {
	if f.Kind != KindFlightAnswer {
		return Flight{}, fmt.Errorf("want %s fact, got %s", KindFlightAnswer, f.Kind)
	}
	return Flight{
		Origin:      fieldString(f, "origin"),
		Destination: fieldString(f, "destination"),
		Airline:     fieldString(f, "airline"),
		Price:       fieldInt(f, "price"),
		Currency:    fieldString(f, "currency"),
		Link:        fieldString(f, "link"),
	}, nil
}
