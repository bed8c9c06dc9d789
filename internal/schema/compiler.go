// Package schema compiles registered model definitions into a declarative
// relational schema document consumed by an external migration tool.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forgecms/forge/internal/model"
)

// Compiler turns a model registry into schema text for a provider
type Compiler struct {
	registry *model.Registry
}

// NewCompiler creates a compiler over the given registry
func NewCompiler(registry *model.Registry) *Compiler {
	return &Compiler{registry: registry}
}

// Compile emits the full schema document: datasource header, enum blocks,
// then one model block per definition with system fields, declared fields
// and relations, synthesized inverse relations, lifecycle columns, and
// compound constraint directives.
func (c *Compiler) Compile(provider string) (string, error) {
	var out strings.Builder

	out.WriteString("datasource db {\n")
	out.WriteString(fmt.Sprintf("  provider = %q\n", provider))
	out.WriteString("  url      = env(\"DATABASE_URL\")\n")
	out.WriteString("}\n\n")

	defs := c.registry.All()

	for _, def := range defs {
		if !def.FieldsDeclared() || def.Fields == nil {
			return "", model.NewConfigurationError(def.Name,
				"fields array is missing; the definition is out of sync, re-sync the model source")
		}
	}

	if err := c.writeEnums(&out, defs); err != nil {
		return "", err
	}

	inverses := buildInverseMap(defs)

	for i, def := range defs {
		if err := c.writeModel(&out, def, inverses[def.Name]); err != nil {
			return "", err
		}
		if i < len(defs)-1 {
			out.WriteString("\n")
		}
	}

	return out.String(), nil
}

// enumTypeName names a generated enum block for a (model, field) pair
func enumTypeName(modelName, fieldName string) string {
	return modelName + model.Capitalize(fieldName)
}

// writeEnums emits one enum block per enum field plus the status enum for
// draft/publish models, de-duplicated by enum name
func (c *Compiler) writeEnums(out *strings.Builder, defs []*model.Definition) error {
	emitted := make(map[string]bool)

	for _, def := range defs {
		for i := range def.Fields {
			field := &def.Fields[i]
			if field.Type != model.TypeEnum {
				continue
			}
			name := enumTypeName(def.Name, field.Name)
			if emitted[name] {
				continue
			}
			emitted[name] = true

			out.WriteString(fmt.Sprintf("enum %s {\n", name))
			for _, v := range field.Values {
				out.WriteString("  " + strings.ToUpper(v) + "\n")
			}
			out.WriteString("}\n\n")
		}

		if def.DraftPublish {
			name := def.Name + "Status"
			if emitted[name] {
				continue
			}
			emitted[name] = true
			out.WriteString(fmt.Sprintf("enum %s {\n  DRAFT\n  PUBLISHED\n  ARCHIVED\n}\n\n", name))
		}
	}

	return nil
}

// writeModel emits one model block
func (c *Compiler) writeModel(out *strings.Builder, def *model.Definition, inverses []inverseRelation) error {
	out.WriteString(fmt.Sprintf("model %s {\n", def.Name))

	// Identifier fields
	out.WriteString("  id   Int    @id @default(autoincrement())\n")
	out.WriteString("  uuid String @unique @default(uuid())\n")

	// Declared fields
	for i := range def.Fields {
		field := &def.Fields[i]
		line, err := c.fieldLine(def, field)
		if err != nil {
			return err
		}
		out.WriteString("  " + line + "\n")
	}

	// Declared relations
	for i := range def.Relations {
		rel := &def.Relations[i]
		lines, err := c.relationLines(def, rel)
		if err != nil {
			return err
		}
		for _, line := range lines {
			out.WriteString("  " + line + "\n")
		}
	}

	// Synthesized inverse relations
	for _, inv := range inverses {
		out.WriteString("  " + inv.line() + "\n")
	}

	// Timestamps
	out.WriteString("  createdAt DateTime @default(now())\n")
	out.WriteString("  updatedAt DateTime @updatedAt\n")

	// Lifecycle flag columns
	if def.SoftDelete {
		out.WriteString("  deletedAt DateTime?\n")
	}
	if def.AuditTrail {
		out.WriteString("  createdBy String?\n")
		out.WriteString("  updatedBy String?\n")
		if def.SoftDelete {
			out.WriteString("  deletedBy String?\n")
		}
	}
	if def.DraftPublish {
		out.WriteString(fmt.Sprintf("  status      %sStatus @default(DRAFT)\n", def.Name))
		out.WriteString("  publishedAt DateTime?\n")
	}

	// Compound constraints
	for _, cols := range def.Constraints.Unique {
		out.WriteString(fmt.Sprintf("  @@unique([%s])\n", strings.Join(cols, ", ")))
	}
	for _, cols := range def.Constraints.Indexes {
		out.WriteString(fmt.Sprintf("  @@index([%s])\n", strings.Join(cols, ", ")))
	}

	out.WriteString("}\n")
	return nil
}

// fieldLine renders one declared field with its type, optionality marker,
// uniqueness, and default value
func (c *Compiler) fieldLine(def *model.Definition, field *model.Field) (string, error) {
	typeName := field.Type.String()
	if field.Type == model.TypeEnum {
		typeName = enumTypeName(def.Name, field.Name)
	}

	line := field.Name + " " + typeName
	if !field.IsRequired() {
		line += "?"
	}
	if field.Unique {
		line += " @unique"
	}

	if field.Default != nil {
		lit, err := defaultLiteral(def, field)
		if err != nil {
			return "", err
		}
		line += fmt.Sprintf(" @default(%s)", lit)
	}

	return line, nil
}

// defaultLiteral formats a default value for the schema text: strings
// quoted, booleans and numbers literal, DateTime "now" mapped to the now
// function, enum defaults upper-cased to match member casing
func defaultLiteral(def *model.Definition, field *model.Field) (string, error) {
	switch field.Type {
	case model.TypeString:
		return fmt.Sprintf("%q", fmt.Sprintf("%v", field.Default)), nil
	case model.TypeEnum:
		return strings.ToUpper(fmt.Sprintf("%v", field.Default)), nil
	case model.TypeDateTime:
		if s, ok := field.Default.(string); ok && s == "now" {
			return "now()", nil
		}
		return fmt.Sprintf("%q", fmt.Sprintf("%v", field.Default)), nil
	case model.TypeBoolean, model.TypeInt, model.TypeFloat:
		return fmt.Sprintf("%v", field.Default), nil
	case model.TypeJSON:
		return "", model.NewConfigurationError(def.Name,
			"field %s: Json fields cannot declare schema defaults", field.Name)
	}
	return fmt.Sprintf("%v", field.Default), nil
}

// relationLines renders the foreign key and object field lines for one
// declared relation, including polymorphic fan-out
func (c *Compiler) relationLines(def *model.Definition, rel *model.Relation) ([]string, error) {
	switch rel.Kind {
	case model.OneToOne:
		fk := rel.ForeignKeyName()
		refs := rel.ReferencesField()
		optional := "?"
		fkType := "Int?"
		if rel.Required {
			optional = ""
			fkType = "Int"
		}
		return []string{
			fmt.Sprintf("%s %s @unique", fk, fkType),
			fmt.Sprintf("%s %s%s @relation(fields: [%s], references: [%s], onDelete: %s)",
				rel.Name, rel.Model, optional, fk, refs, rel.OnDelete),
		}, nil

	case model.OneToMany:
		// Declaring model is always the child and owns the foreign key
		fk := rel.ForeignKeyName()
		refs := rel.ReferencesField()
		optional := "?"
		fkType := "Int?"
		if rel.Required {
			optional = ""
			fkType = "Int"
		}
		return []string{
			fmt.Sprintf("%s %s", fk, fkType),
			fmt.Sprintf("%s %s%s @relation(fields: [%s], references: [%s], onDelete: %s)",
				rel.Name, rel.Model, optional, fk, refs, rel.OnDelete),
		}, nil

	case model.ManyToMany:
		// Symmetric by construction, no synthesized inverse needed
		return []string{
			fmt.Sprintf("%s %s[] @relation(%q)", rel.Name, rel.Model, relationLabel(def.Name, rel)),
		}, nil

	case model.Polymorphic:
		// One nullable foreign key and one nullable reference per target.
		// At most one target is set per record; this exclusivity is a
		// runtime check, not a schema constraint.
		var lines []string
		for _, target := range rel.Models {
			fk := rel.Name + target + "Id"
			lines = append(lines,
				fmt.Sprintf("%s Int?", fk),
				fmt.Sprintf("%s%s %s? @relation(fields: [%s], references: [id], onDelete: %s)",
					rel.Name, target, target, fk, rel.OnDelete),
			)
		}
		return lines, nil
	}

	return nil, model.NewConfigurationError(def.Name, "relation %s has unknown kind", rel.Name)
}

// relationLabel names an n:m join relation deterministically regardless
// of which side declared it
func relationLabel(declaring string, rel *model.Relation) string {
	names := []string{declaring, rel.Model}
	sort.Strings(names)
	return names[0] + "To" + names[1]
}
