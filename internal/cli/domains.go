package cli

import (
	"fmt"

	"github.com/roach88/sift/internal/domain"
	"github.com/roach88/sift/internal/ir"
	"github.com/roach88/sift/internal/query"
	"github.com/roach88/sift/internal/source"
)

// domainSpec binds one catalog domain to its facade, record mapper, and
// answer projection. The query, replay, and test commands all resolve
// domains through this table.
type domainSpec struct {
	Name       string
	Facade     func(opts ...query.FacadeOption) (*query.Facade, error)
	MapRecord  source.MapFunc
	FromAnswer func(ir.Fact) (any, error)
}

var domainSpecs = map[string]domainSpec{
	"vacancies": {
		Name:      "vacancies",
		Facade:    domain.VacancyFacade,
		MapRecord: domain.VacancyFromRecord,
		FromAnswer: func(f ir.Fact) (any, error) {
			return domain.VacancyFromAnswer(f)
		},
	},
	"plants": {
		Name:      "plants",
		Facade:    domain.PlantFacade,
		MapRecord: domain.PlantFromRecord,
		FromAnswer: func(f ir.Fact) (any, error) {
			return domain.PlantFromAnswer(f)
		},
	},
	"flights": {
		Name:      "flights",
		Facade:    domain.FlightFacade,
		MapRecord: domain.FlightFromRecord,
		FromAnswer: func(f ir.Fact) (any, error) {
			return domain.FlightFromAnswer(f)
		},
	},
}

// resolveDomain looks up a domain by name.
func resolveDomain(name string) (domainSpec, error) {
	spec, ok := domainSpecs[name]
	if !ok {
		return domainSpec{}, fmt.Errorf("unknown domain %q: must be vacancies, plants, or flights", name)
	}
	return spec, nil
}
