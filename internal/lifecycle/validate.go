package lifecycle

import (
	"errors"
	"regexp"
	"strings"

	"github.com/forgecms/forge/internal/model"
)

// applyDefaults fills declared defaults into absent keys. Present keys,
// including explicit nulls, are left alone.
func applyDefaults(def *model.Definition, record model.Record) {
	for i := range def.Fields {
		f := &def.Fields[i]
		if f.Default == nil {
			continue
		}
		if _, present := record[f.Name]; present {
			continue
		}
		record[f.Name] = f.Default
	}
	if def.DraftPublish {
		if _, present := record["status"]; !present {
			record["status"] = "DRAFT"
		}
	}
}

// validateRecord checks the payload against the declared field rules,
// collecting every violation. Values that pass are written back coerced
// to their storage representation (enums upper-cased, DateTime parsed).
// partial skips the required check for absent fields.
func validateRecord(def *model.Definition, record model.Record, partial bool) error {
	verr := &ValidationError{}

	for i := range def.Fields {
		f := &def.Fields[i]
		raw, present := record[f.Name]

		if !present {
			if f.IsRequired() && !partial && f.Default == nil {
				verr.Add(f.Name, "is required")
			}
			continue
		}
		if raw == nil {
			if f.IsRequired() {
				verr.Add(f.Name, "must not be null")
			}
			continue
		}

		value, err := model.Coerce(f.Type, raw)
		if err != nil {
			verr.Add(f.Name, "must be a valid %s", f.Type)
			continue
		}

		if f.Type == model.TypeEnum {
			if !enumMember(f.Values, value.Str) {
				verr.Add(f.Name, "must be one of %s", strings.Join(f.Values, ", "))
				continue
			}
		}

		validateRules(f, value, verr)
		record[f.Name] = value.Native()
	}

	if def.DraftPublish {
		validateStatus(record, verr)
	}
	checkPolymorphicExclusivity(def, record, verr)

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateRules applies declarative rules to a coerced value. Numeric
// bounds apply to numeric kinds, length and pattern rules to strings;
// mismatched rule/value pairs are skipped.
func validateRules(f *model.Field, value model.Value, verr *ValidationError) {
	rules := f.Validation
	if rules == nil {
		return
	}

	if num, ok := numeric(value); ok {
		if rules.Min != nil && num < *rules.Min {
			verr.Add(f.Name, "must be at least %v", *rules.Min)
		}
		if rules.Max != nil && num > *rules.Max {
			verr.Add(f.Name, "must be at most %v", *rules.Max)
		}
	}

	if value.Kind == model.KindString {
		s := value.Str
		if rules.MinLength != nil && len(s) < *rules.MinLength {
			verr.Add(f.Name, "must be at least %d characters", *rules.MinLength)
		}
		if rules.MaxLength != nil && len(s) > *rules.MaxLength {
			verr.Add(f.Name, "must be at most %d characters", *rules.MaxLength)
		}
		if rules.Pattern != "" {
			// Patterns are compile-checked at registration
			if re, err := regexp.Compile(rules.Pattern); err == nil && !re.MatchString(s) {
				verr.Add(f.Name, "must match pattern %s", rules.Pattern)
			}
		}
		if len(rules.Enum) > 0 && !enumMember(rules.Enum, s) {
			verr.Add(f.Name, "must be one of %s", strings.Join(rules.Enum, ", "))
		}
	}
}

// statusValues is the workflow state set for draft/publish models
var statusValues = []string{"DRAFT", "PUBLISHED", "ARCHIVED"}

// validateStatus restricts the status field to the workflow states and
// writes the value back upper-cased so storage and the implicit
// published scope compare consistently.
func validateStatus(record model.Record, verr *ValidationError) {
	raw, present := record["status"]
	if !present {
		return
	}
	if raw == nil {
		verr.Add("status", "must not be null")
		return
	}
	s, ok := raw.(string)
	if !ok {
		verr.Add("status", "must be a valid Enum")
		return
	}
	if !enumMember(statusValues, s) {
		verr.Add("status", "must be one of %s", strings.Join(statusValues, ", "))
		return
	}
	record["status"] = strings.ToUpper(s)
}

func numeric(v model.Value) (float64, bool) {
	switch v.Kind {
	case model.KindInt:
		return float64(v.Int), true
	case model.KindFloat:
		return v.Float, true
	}
	return 0, false
}

// enumMember tests case-insensitive membership in the declared value set
func enumMember(values []string, candidate string) bool {
	for _, v := range values {
		if strings.EqualFold(v, candidate) {
			return true
		}
	}
	return false
}

// checkPolymorphicExclusivity rejects payloads setting more than one
// target foreign key of a polymorphic relation
func checkPolymorphicExclusivity(def *model.Definition, record model.Record, verr *ValidationError) {
	for i := range def.Relations {
		rel := &def.Relations[i]
		if rel.Kind != model.Polymorphic {
			continue
		}
		var set []string
		for _, target := range rel.Models {
			key := rel.Name + target + "Id"
			if v, ok := record[key]; ok && v != nil {
				set = append(set, key)
			}
		}
		if len(set) > 1 {
			verr.Add(rel.Name, "at most one of %s may be set", strings.Join(set, ", "))
		}
	}
}

// normalizeHookError wraps an arbitrary error thrown by a user validate
// hook into the structured taxonomy. A ValidationError passes through.
func normalizeHookError(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	norm := &ValidationError{}
	norm.Add("_", "%s", err.Error())
	return norm
}
