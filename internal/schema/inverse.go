package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forgecms/forge/internal/model"
)

// inverseRelation is a synthesized back-reference registered on the
// target model of a declared relation
type inverseRelation struct {
	fieldName  string
	targetType string
	collection bool
	label      string
}

func (inv inverseRelation) line() string {
	if inv.collection {
		if inv.label != "" {
			return fmt.Sprintf("%s %s[] @relation(%q)", inv.fieldName, inv.targetType, inv.label)
		}
		return fmt.Sprintf("%s %s[]", inv.fieldName, inv.targetType)
	}
	return fmt.Sprintf("%s %s?", inv.fieldName, inv.targetType)
}

// buildInverseMap walks every declared relation and registers the implied
// opposite field on the target model. 1:n children produce a pluralized
// collection on the parent, de-duplicated by child model name; 1:1
// relations produce a singular optional back-reference; n:m relations are
// symmetric and polymorphic targets get a collection per declaring model.
func buildInverseMap(defs []*model.Definition) map[string][]inverseRelation {
	inverses := make(map[string][]inverseRelation)
	seenCollection := make(map[string]bool) // parent + "/" + child dedup

	for _, def := range defs {
		for i := range def.Relations {
			rel := &def.Relations[i]

			switch rel.Kind {
			case model.OneToMany:
				key := rel.Model + "/" + def.Name
				if seenCollection[key] {
					continue
				}
				seenCollection[key] = true
				inverses[rel.Model] = append(inverses[rel.Model], inverseRelation{
					fieldName:  model.Pluralize(strings.ToLower(def.Name)),
					targetType: def.Name,
					collection: true,
				})

			case model.OneToOne:
				inverses[rel.Model] = append(inverses[rel.Model], inverseRelation{
					fieldName:  strings.ToLower(def.Name),
					targetType: def.Name,
				})

			case model.ManyToMany:
				key := rel.Model + "/" + def.Name + "/nm"
				if seenCollection[key] {
					continue
				}
				seenCollection[key] = true
				inverses[rel.Model] = append(inverses[rel.Model], inverseRelation{
					fieldName:  model.Pluralize(strings.ToLower(def.Name)),
					targetType: def.Name,
					collection: true,
					label:      relationLabel(def.Name, rel),
				})

			case model.Polymorphic:
				for _, target := range rel.Models {
					key := target + "/" + def.Name + "/" + rel.Name
					if seenCollection[key] {
						continue
					}
					seenCollection[key] = true
					inverses[target] = append(inverses[target], inverseRelation{
						fieldName:  model.Pluralize(strings.ToLower(def.Name)),
						targetType: def.Name,
						collection: true,
					})
				}
			}
		}
	}

	// Stable output order within each model
	for name := range inverses {
		sort.Slice(inverses[name], func(i, j int) bool {
			return inverses[name][i].fieldName < inverses[name][j].fieldName
		})
	}

	return inverses
}
