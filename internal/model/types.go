// Package model defines the declarative model layer of forge: field and
// relation types, behavioral flags, and the immutable registry every other
// component reads its metadata from.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType represents the built-in primitive field types
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBoolean
	TypeDateTime
	TypeJSON
	TypeEnum
)

// String returns the string representation of the field type
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "String"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBoolean:
		return "Boolean"
	case TypeDateTime:
		return "DateTime"
	case TypeJSON:
		return "Json"
	case TypeEnum:
		return "Enum"
	default:
		return "unknown"
	}
}

// ParseFieldType converts a string to a FieldType
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "String":
		return TypeString, nil
	case "Int":
		return TypeInt, nil
	case "Float":
		return TypeFloat, nil
	case "Boolean":
		return TypeBoolean, nil
	case "DateTime":
		return TypeDateTime, nil
	case "Json":
		return TypeJSON, nil
	case "Enum":
		return TypeEnum, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// MarshalJSON implements json.Marshaler
func (t FieldType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ValidationRules holds declarative validation rules for a field.
// Numeric bounds apply only when the runtime value is numeric; length and
// pattern rules only when it is a string. Mismatched rule/value pairs are
// skipped, not errors.
type ValidationRules struct {
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Enum      []string `json:"enum,omitempty"`
}

// MaskSpec describes how a field value is masked in responses.
// Exactly one of Preset, Custom, or Function is set.
type MaskSpec struct {
	Preset   string
	Custom   *CustomMask
	Function string
}

// CustomMask keeps VisibleStart leading and VisibleEnd trailing characters
// and replaces the middle with Pattern (a single-character pattern repeats
// to fill, a longer pattern is used verbatim).
type CustomMask struct {
	Pattern      string `json:"pattern"`
	VisibleStart int    `json:"visibleStart"`
	VisibleEnd   int    `json:"visibleEnd"`
}

// UnmarshalJSON accepts either a preset name string, a custom pattern
// object, or a {"function": name} reference.
func (m *MaskSpec) UnmarshalJSON(data []byte) error {
	var preset string
	if err := json.Unmarshal(data, &preset); err == nil {
		m.Preset = preset
		return nil
	}

	var obj struct {
		Pattern      string `json:"pattern"`
		VisibleStart int    `json:"visibleStart"`
		VisibleEnd   int    `json:"visibleEnd"`
		Function     string `json:"function"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid mask spec: %w", err)
	}
	if obj.Function != "" {
		m.Function = obj.Function
		return nil
	}
	m.Custom = &CustomMask{
		Pattern:      obj.Pattern,
		VisibleStart: obj.VisibleStart,
		VisibleEnd:   obj.VisibleEnd,
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (m MaskSpec) MarshalJSON() ([]byte, error) {
	switch {
	case m.Preset != "":
		return json.Marshal(m.Preset)
	case m.Function != "":
		return json.Marshal(map[string]string{"function": m.Function})
	case m.Custom != nil:
		return json.Marshal(m.Custom)
	}
	return []byte("null"), nil
}

// ComputedSpec describes a response-only derived field. Template and
// Transform are mutually exclusive; the definition validator rejects a
// spec carrying both.
type ComputedSpec struct {
	Template  string `json:"template,omitempty"`
	Transform string `json:"transform,omitempty"`
}

// Field represents one declared field on a model. Required is a pointer
// so absence defaults to true for both JSON-decoded and Go-constructed
// definitions; read it through IsRequired.
type Field struct {
	Name         string           `json:"name"`
	Type         FieldType        `json:"type"`
	Required     *bool            `json:"required,omitempty"`
	Unique       bool             `json:"unique,omitempty"`
	Default      interface{}      `json:"default,omitempty"`
	Validation   *ValidationRules `json:"validation,omitempty"`
	Values       []string         `json:"values,omitempty"`
	Private      bool             `json:"private,omitempty"`
	WritePrivate bool             `json:"writePrivate,omitempty"`
	Encrypted    bool             `json:"encrypted,omitempty"`
	Masked       *MaskSpec        `json:"masked,omitempty"`
	Computed     *ComputedSpec    `json:"computed,omitempty"`
}

// IsRequired reports whether the field is required, defaulting to true
// when the definition does not say
func (f *Field) IsRequired() bool {
	if f.Required == nil {
		return true
	}
	return *f.Required
}

// Bool returns a pointer to b, for optional definition flags
func Bool(b bool) *bool {
	return &b
}

// RelationKind represents the kind of relation between models
type RelationKind int

const (
	OneToOne RelationKind = iota
	OneToMany
	ManyToMany
	Polymorphic
)

// String returns the string representation of the relation kind
func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "1:1"
	case OneToMany:
		return "1:n"
	case ManyToMany:
		return "n:m"
	case Polymorphic:
		return "polymorphic"
	default:
		return "unknown"
	}
}

// ParseRelationKind converts a string to a RelationKind
func ParseRelationKind(s string) (RelationKind, error) {
	switch s {
	case "1:1":
		return OneToOne, nil
	case "1:n":
		return OneToMany, nil
	case "n:m":
		return ManyToMany, nil
	case "polymorphic":
		return Polymorphic, nil
	default:
		return 0, fmt.Errorf("unknown relation kind: %s", s)
	}
}

// MarshalJSON implements json.Marshaler
func (k RelationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (k *RelationKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRelationKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CascadeAction represents the on-delete behavior of a relation
type CascadeAction int

const (
	SetNull CascadeAction = iota
	Cascade
	NoAction
	Restrict
)

// String returns the string representation of the cascade action
func (c CascadeAction) String() string {
	switch c {
	case Cascade:
		return "Cascade"
	case SetNull:
		return "SetNull"
	case NoAction:
		return "NoAction"
	case Restrict:
		return "Restrict"
	default:
		return "unknown"
	}
}

// ParseCascadeAction converts a string to a CascadeAction
func ParseCascadeAction(s string) (CascadeAction, error) {
	switch s {
	case "Cascade":
		return Cascade, nil
	case "SetNull", "":
		return SetNull, nil
	case "NoAction":
		return NoAction, nil
	case "Restrict":
		return Restrict, nil
	default:
		return 0, fmt.Errorf("unknown cascade action: %s", s)
	}
}

// MarshalJSON implements json.Marshaler
func (c CascadeAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (c *CascadeAction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCascadeAction(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Relation represents a relation declared on a model. For 1:n the declaring
// model is always the child and owns the foreign key.
type Relation struct {
	Name       string        `json:"name"`
	Kind       RelationKind  `json:"type"`
	Model      string        `json:"model,omitempty"`
	Models     []string      `json:"models,omitempty"`
	ForeignKey string        `json:"foreignKey,omitempty"`
	References string        `json:"references,omitempty"`
	OnDelete   CascadeAction `json:"onDelete,omitempty"`
	Required   bool          `json:"required,omitempty"`
}

// ForeignKeyName returns the configured foreign key or the default
// `<name>Id`
func (r *Relation) ForeignKeyName() string {
	if r.ForeignKey != "" {
		return r.ForeignKey
	}
	return r.Name + "Id"
}

// ReferencesField returns the referenced field, defaulting to id
func (r *Relation) ReferencesField() string {
	if r.References != "" {
		return r.References
	}
	return "id"
}

// Constraints holds compound unique and index declarations
type Constraints struct {
	Unique  [][]string `json:"unique,omitempty"`
	Indexes [][]string `json:"indexes,omitempty"`
}

// APIConfig configures the generated HTTP surface for a model
type APIConfig struct {
	Prefix     string   `json:"prefix,omitempty"`
	Version    string   `json:"version,omitempty"`
	Operations []string `json:"operations,omitempty"`
	RateLimit  int      `json:"rateLimit,omitempty"`
}

// RoutePrefix returns the configured route prefix or a lowercased
// pluralized default derived from the model name
func (d *Definition) RoutePrefix() string {
	if d.API.Prefix != "" {
		return d.API.Prefix
	}
	return "/" + Pluralize(strings.ToLower(d.Name))
}

// OperationEnabled reports whether the named operation is enabled. An
// empty operations list enables everything.
func (d *Definition) OperationEnabled(op string) bool {
	if len(d.API.Operations) == 0 {
		return true
	}
	for _, o := range d.API.Operations {
		if strings.EqualFold(o, op) {
			return true
		}
	}
	return false
}

// Definition is the declarative description of one model: fields,
// relations, behavioral flags, and API configuration. Definitions are
// created at startup and immutable for the life of the process.
type Definition struct {
	Name         string      `json:"name"`
	Fields       []Field     `json:"fields"`
	Relations    []Relation  `json:"relations,omitempty"`
	SoftDelete   bool        `json:"softDelete,omitempty"`
	AuditTrail   bool        `json:"auditTrail,omitempty"`
	DraftPublish bool        `json:"draftPublish,omitempty"`
	Constraints  Constraints `json:"constraints,omitempty"`
	API          APIConfig   `json:"api,omitempty"`

	// Bound capability maps, attached at registration. Not serialized.
	Functions *Bindings `json:"-"`

	// fieldsMissing records that the raw document had no fields key at
	// all, which signals an unsynced definition and must fail compilation
	// with a descriptive error rather than an empty table.
	fieldsMissing bool
}

// UnmarshalJSON decodes a definition, tracking whether the fields array
// was present in the source document
func (d *Definition) UnmarshalJSON(data []byte) error {
	type alias Definition
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	*d = Definition(aux)
	if raw, ok := probe["fields"]; !ok || string(raw) == "null" {
		d.fieldsMissing = true
	}
	return nil
}

// FieldsDeclared reports whether the definition carried a fields array
func (d *Definition) FieldsDeclared() bool {
	return !d.fieldsMissing
}

// FieldByName returns the declared field with the given name
func (d *Definition) FieldByName(name string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// RelationByName returns the declared relation with the given name
func (d *Definition) RelationByName(name string) (*Relation, bool) {
	for i := range d.Relations {
		if d.Relations[i].Name == name {
			return &d.Relations[i], true
		}
	}
	return nil, false
}

// HasField reports whether the model declares or implicitly carries the
// named field (system fields included)
func (d *Definition) HasField(name string) bool {
	switch name {
	case "id", "uuid", "createdAt", "updatedAt":
		return true
	case "deletedAt":
		if d.SoftDelete {
			return true
		}
	case "createdBy", "updatedBy":
		if d.AuditTrail {
			return true
		}
	case "deletedBy":
		if d.AuditTrail && d.SoftDelete {
			return true
		}
	case "status", "publishedAt":
		if d.DraftPublish {
			return true
		}
	}
	_, ok := d.FieldByName(name)
	return ok
}

// FieldTypeOf resolves the type of a declared or system field
func (d *Definition) FieldTypeOf(name string) (FieldType, bool) {
	switch name {
	case "id":
		return TypeInt, true
	case "uuid", "createdBy", "updatedBy", "deletedBy":
		return TypeString, true
	case "createdAt", "updatedAt", "deletedAt", "publishedAt":
		return TypeDateTime, true
	case "status":
		if d.DraftPublish {
			return TypeEnum, true
		}
	}
	if f, ok := d.FieldByName(name); ok {
		return f.Type, true
	}
	return 0, false
}

// Pluralize applies the naming rule used for synthesized collection
// fields and default route prefixes: y→ies, s|x|ch|sh→+es, else +s
func Pluralize(s string) string {
	switch {
	case strings.HasSuffix(s, "y"):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"),
		strings.HasSuffix(s, "x"),
		strings.HasSuffix(s, "ch"),
		strings.HasSuffix(s, "sh"):
		return s + "es"
	default:
		return s + "s"
	}
}

// Capitalize upper-cases the first rune of a name
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
