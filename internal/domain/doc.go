// Package domain defines the concrete fact kinds, rule sets, and
// caller-visible record shapes for the three supported catalogs:
// vacancies, plants, and flights.
//
// Each domain contributes:
//   - a record kind (the candidate facts a source declares)
//   - one criteria kind per field group (exactly one instance per query)
//   - an answer kind, produced only by rule actions
//   - a rule set joining criteria and record facts on shared variables
//
// Criteria-to-record equality is expressed structurally (shared variable
// bindings); range constraints are test predicates over bound values.
package domain
