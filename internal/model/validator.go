package model

import "regexp"

// maskPresets is the closed set of built-in masking presets
var maskPresets = map[string]bool{
	"creditCard": true,
	"ssn":        true,
	"phone":      true,
	"email":      true,
}

// reservedFieldNames are system fields a definition may not redeclare
var reservedFieldNames = map[string]bool{
	"id":          true,
	"uuid":        true,
	"createdAt":   true,
	"updatedAt":   true,
	"deletedAt":   true,
	"createdBy":   true,
	"updatedBy":   true,
	"deletedBy":   true,
	"status":      true,
	"publishedAt": true,
}

// ValidateDefinition performs the static checks on a single definition:
// fields array present, enum values declared, relation targets resolvable,
// computed template/transform exclusivity, mask presets known. These run
// before compilation so configuration errors fail at startup, not on
// first request.
func ValidateDefinition(def *Definition, registry *Registry) error {
	if !def.FieldsDeclared() || def.Fields == nil {
		return NewConfigurationError(def.Name,
			"fields array is missing; the definition is out of sync, re-sync the model source")
	}

	seen := make(map[string]bool, len(def.Fields))
	for i := range def.Fields {
		field := &def.Fields[i]
		if field.Name == "" {
			return NewConfigurationError(def.Name, "field at index %d has no name", i)
		}
		if reservedFieldNames[field.Name] {
			return NewConfigurationError(def.Name,
				"field %s collides with a system field", field.Name)
		}
		if seen[field.Name] {
			return NewConfigurationError(def.Name, "duplicate field %s", field.Name)
		}
		seen[field.Name] = true

		if err := validateField(def, field); err != nil {
			return err
		}
	}

	relSeen := make(map[string]bool, len(def.Relations))
	for i := range def.Relations {
		rel := &def.Relations[i]
		if rel.Name == "" {
			return NewConfigurationError(def.Name, "relation at index %d has no name", i)
		}
		if relSeen[rel.Name] {
			return NewConfigurationError(def.Name, "duplicate relation %s", rel.Name)
		}
		relSeen[rel.Name] = true

		if err := validateRelation(def, rel, registry); err != nil {
			return err
		}
	}

	return nil
}

func validateField(def *Definition, field *Field) error {
	if field.Type == TypeEnum && len(field.Values) == 0 {
		return NewConfigurationError(def.Name,
			"enum field %s must declare non-empty values", field.Name)
	}
	if field.Type != TypeEnum && len(field.Values) > 0 {
		return NewConfigurationError(def.Name,
			"field %s declares enum values but is not an Enum", field.Name)
	}

	if field.Computed != nil {
		if field.Computed.Template != "" && field.Computed.Transform != "" {
			return NewConfigurationError(def.Name,
				"computed field %s declares both template and transform", field.Name)
		}
		if field.Computed.Template == "" && field.Computed.Transform == "" {
			return NewConfigurationError(def.Name,
				"computed field %s declares neither template nor transform", field.Name)
		}
	}

	if field.Masked != nil && field.Masked.Preset != "" && !maskPresets[field.Masked.Preset] {
		return NewConfigurationError(def.Name,
			"field %s uses unknown mask preset %q", field.Name, field.Masked.Preset)
	}

	if field.Validation != nil && field.Validation.Pattern != "" {
		if _, err := regexp.Compile(field.Validation.Pattern); err != nil {
			return NewConfigurationError(def.Name,
				"field %s has invalid validation pattern: %v", field.Name, err)
		}
	}

	return nil
}

func validateRelation(def *Definition, rel *Relation, registry *Registry) error {
	if rel.Kind == Polymorphic {
		if len(rel.Models) == 0 {
			return NewConfigurationError(def.Name,
				"polymorphic relation %s must declare models", rel.Name)
		}
		for _, target := range rel.Models {
			if !registry.Exists(target) {
				return NewConfigurationError(def.Name,
					"polymorphic relation %s targets unknown model %s", rel.Name, target)
			}
		}
		return nil
	}

	if rel.Model == "" {
		return NewConfigurationError(def.Name,
			"relation %s must declare a target model", rel.Name)
	}
	if !registry.Exists(rel.Model) {
		return NewConfigurationError(def.Name,
			"relation %s targets unknown model %s", rel.Name, rel.Model)
	}
	return nil
}
