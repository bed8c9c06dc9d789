// Package shape applies the outgoing response pipeline: private-field
// redaction, computed-field derivation, then masking. The pipeline is
// idempotent; shaping an already-shaped record changes nothing.
package shape

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/forgecms/forge/internal/model"
)

// Shaper shapes outgoing records for one model. Capability lookups are
// resolved at construction, not per request.
type Shaper struct {
	def    *model.Definition
	logger *zap.Logger

	private  []string
	computed []computedField
	masked   []maskedField
}

type computedField struct {
	name     string
	template string
	fn       model.TransformFunc
}

type maskedField struct {
	name string
	fn   func(interface{}) interface{}
}

// NewShaper builds a shaper for the model, resolving every bound mask
// and transform function once. A field declaring both a computed
// template and transform is a configuration error.
func NewShaper(def *model.Definition, logger *zap.Logger) (*Shaper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shaper{def: def, logger: logger}

	for i := range def.Fields {
		f := &def.Fields[i]

		if f.Private {
			s.private = append(s.private, f.Name)
		}

		if f.Computed != nil {
			if f.Computed.Template != "" && f.Computed.Transform != "" {
				return nil, model.NewConfigurationError(def.Name,
					"computed field %s declares both template and transform", f.Name)
			}
			cf := computedField{name: f.Name, template: f.Computed.Template}
			if f.Computed.Transform != "" {
				fn, ok := def.Functions.Transform(f.Computed.Transform)
				if !ok {
					return nil, model.NewConfigurationError(def.Name,
						"computed field %s references unbound transform %s", f.Name, f.Computed.Transform)
				}
				cf.fn = fn
			}
			s.computed = append(s.computed, cf)
		}

		if f.Masked != nil {
			mf, err := s.resolveMask(f)
			if err != nil {
				return nil, err
			}
			s.masked = append(s.masked, mf)
		}
	}
	return s, nil
}

func (s *Shaper) resolveMask(f *model.Field) (maskedField, error) {
	spec := f.Masked
	switch {
	case spec.Preset != "":
		fn, ok := presetMasks[spec.Preset]
		if !ok {
			return maskedField{}, model.NewConfigurationError(s.def.Name,
				"field %s uses unknown mask preset %s", f.Name, spec.Preset)
		}
		return maskedField{name: f.Name, fn: fn}, nil

	case spec.Custom != nil:
		custom := *spec.Custom
		return maskedField{name: f.Name, fn: func(v interface{}) interface{} {
			return applyCustomMask(v, custom)
		}}, nil

	case spec.Function != "":
		fn, ok := s.def.Functions.Mask(spec.Function)
		if !ok {
			// Missing function passes the value through unmodified
			s.logger.Debug("mask function not bound, passing through",
				zap.String("model", s.def.Name),
				zap.String("field", f.Name),
				zap.String("function", spec.Function))
			return maskedField{name: f.Name, fn: func(v interface{}) interface{} { return v }}, nil
		}
		return maskedField{name: f.Name, fn: func(v interface{}) interface{} { return fn(v) }}, nil
	}
	return maskedField{name: f.Name, fn: func(v interface{}) interface{} { return v }}, nil
}

// Shape runs the three-stage pipeline over one record
func (s *Shaper) Shape(record model.Record) model.Record {
	if record == nil {
		return nil
	}
	out := s.filterPrivateFields(record)
	out = s.addComputedFields(out)
	s.applyMasking(out)
	return out
}

// ShapeAll shapes a record slice
func (s *Shaper) ShapeAll(records []model.Record) []model.Record {
	out := make([]model.Record, len(records))
	for i, r := range records {
		out[i] = s.Shape(r)
	}
	return out
}

// filterPrivateFields drops private keys. With no private fields the
// record passes through without cloning.
func (s *Shaper) filterPrivateFields(record model.Record) model.Record {
	if len(s.private) == 0 {
		return record
	}
	out := make(model.Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	for _, name := range s.private {
		delete(out, name)
	}
	return out
}

// addComputedFields derives computed values into fresh keys. Templates
// interpolate {dotted.path} placeholders against the source record;
// missing paths render empty.
func (s *Shaper) addComputedFields(record model.Record) model.Record {
	if len(s.computed) == 0 {
		return record
	}
	out := make(model.Record, len(record)+len(s.computed))
	for k, v := range record {
		out[k] = v
	}
	for _, cf := range s.computed {
		if cf.fn != nil {
			out[cf.name] = cf.fn(record)
			continue
		}
		out[cf.name] = interpolate(cf.template, record)
	}
	return out
}

// interpolate replaces {dotted.path} placeholders with record values
func interpolate(template string, record model.Record) string {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			break
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:open])
		path := rest[open+1 : open+close]
		b.WriteString(lookupPath(record, path))
		rest = rest[open+close+1:]
	}
	return b.String()
}

func lookupPath(record model.Record, path string) string {
	var current interface{} = map[string]interface{}(record)
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[key]
		if !ok {
			return ""
		}
	}
	if current == nil {
		return ""
	}
	return fmt.Sprintf("%v", current)
}

// applyMasking obfuscates masked fields in place. Null and absent
// values are skipped.
func (s *Shaper) applyMasking(record model.Record) {
	for _, mf := range s.masked {
		v, ok := record[mf.name]
		if !ok || v == nil {
			continue
		}
		record[mf.name] = mf.fn(v)
	}
}
