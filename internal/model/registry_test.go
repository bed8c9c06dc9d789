package model

import (
	"errors"
	"testing"
)

func validDef(name string) *Definition {
	return &Definition{
		Name:   name,
		Fields: []Field{{Name: "title", Type: TypeString}},
	}
}

func TestNewRegistryAppendsBuiltins(t *testing.T) {
	r, err := NewRegistry(validDef("Post"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for _, name := range []string{"Post", "ApiKey", "ApiMetric"} {
		if !r.Exists(name) {
			t.Errorf("registry should contain %s", name)
		}
	}
	if r.Count() != 3 {
		t.Errorf("Count() = %d, want 3", r.Count())
	}
}

func TestNewRegistryUserOverridesBuiltin(t *testing.T) {
	custom := validDef("ApiKey")
	r, err := NewRegistry(custom)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	def, _ := r.Get("ApiKey")
	if def != custom {
		t.Error("user-declared ApiKey should shadow the builtin")
	}
}

func TestNewRegistryDuplicateFails(t *testing.T) {
	_, err := NewRegistry(validDef("Post"), validDef("Post"))
	if !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("want ErrDuplicateModel, got %v", err)
	}
}

func TestNewRegistryValidatesDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
	}{
		{
			name: "missing fields array",
			def:  &Definition{Name: "Broken", fieldsMissing: true},
		},
		{
			name: "enum without values",
			def: &Definition{
				Name:   "Broken",
				Fields: []Field{{Name: "kind", Type: TypeEnum}},
			},
		},
		{
			name: "computed with template and transform",
			def: &Definition{
				Name: "Broken",
				Fields: []Field{{
					Name:     "full",
					Type:     TypeString,
					Computed: &ComputedSpec{Template: "{a}", Transform: "fn"},
				}},
			},
		},
		{
			name: "reserved field name",
			def: &Definition{
				Name:   "Broken",
				Fields: []Field{{Name: "createdAt", Type: TypeDateTime}},
			},
		},
		{
			name: "relation to unknown model",
			def: &Definition{
				Name:      "Broken",
				Fields:    []Field{{Name: "title", Type: TypeString}},
				Relations: []Relation{{Name: "owner", Kind: OneToMany, Model: "Nowhere"}},
			},
		},
		{
			name: "polymorphic without targets",
			def: &Definition{
				Name:      "Broken",
				Fields:    []Field{{Name: "title", Type: TypeString}},
				Relations: []Relation{{Name: "subject", Kind: Polymorphic}},
			},
		},
		{
			name: "invalid validation pattern",
			def: &Definition{
				Name: "Broken",
				Fields: []Field{{
					Name:       "code",
					Type:       TypeString,
					Validation: &ValidationRules{Pattern: "["},
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.def)
			if !IsConfigurationError(err) {
				t.Errorf("want ConfigurationError, got %v", err)
			}
		})
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r, err := NewRegistry(validDef("Zebra"), validDef("Alpha"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	names := r.Names()
	want := []string{"Alpha", "ApiKey", "ApiMetric", "Zebra"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestGenerateAndVerifyAPIKey(t *testing.T) {
	plaintext, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}
	if len(plaintext) < 10 || plaintext[:3] != "fk_" {
		t.Errorf("unexpected plaintext format: %q", plaintext)
	}
	if plaintext == hash {
		t.Error("hash must differ from plaintext")
	}
	if !VerifyAPIKey(hash, plaintext) {
		t.Error("generated key should verify against its hash")
	}
	if VerifyAPIKey(hash, "fk_wrong") {
		t.Error("wrong key should not verify")
	}
}
