package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		ft      FieldType
		raw     interface{}
		want    Value
		wantErr bool
	}{
		{name: "string", ft: TypeString, raw: "hello", want: Value{Kind: KindString, Str: "hello"}},
		{name: "enum upper-cases", ft: TypeEnum, raw: "draft", want: Value{Kind: KindString, Str: "DRAFT"}},
		{name: "int from string", ft: TypeInt, raw: "42", want: Value{Kind: KindInt, Int: 42}},
		{name: "int from json number", ft: TypeInt, raw: json.Number("7"), want: Value{Kind: KindInt, Int: 7}},
		{name: "int from float64", ft: TypeInt, raw: float64(3), want: Value{Kind: KindInt, Int: 3}},
		{name: "int garbage", ft: TypeInt, raw: "nope", wantErr: true},
		{name: "float from string", ft: TypeFloat, raw: "2.5", want: Value{Kind: KindFloat, Float: 2.5}},
		{name: "bool true string", ft: TypeBoolean, raw: "true", want: Value{Kind: KindBool, Bool: true}},
		{name: "bool other string is false", ft: TypeBoolean, raw: "yes", want: Value{Kind: KindBool, Bool: false}},
		{name: "bool native", ft: TypeBoolean, raw: true, want: Value{Kind: KindBool, Bool: true}},
		{name: "null", ft: TypeString, raw: nil, want: Value{Kind: KindNull}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.ft, tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Kind != tt.want.Kind || got.Str != tt.want.Str ||
				got.Int != tt.want.Int || got.Float != tt.want.Float || got.Bool != tt.want.Bool {
				t.Errorf("Coerce() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCoerceDateTime(t *testing.T) {
	inputs := []string{
		"2024-06-01T10:30:00Z",
		"2024-06-01 10:30:00",
		"2024-06-01",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			v, err := Coerce(TypeDateTime, in)
			if err != nil {
				t.Fatalf("Coerce(%q): %v", in, err)
			}
			if v.Kind != KindTime || v.Time.IsZero() {
				t.Errorf("Coerce(%q) = %+v", in, v)
			}
		})
	}

	if _, err := Coerce(TypeDateTime, "not-a-date"); err == nil {
		t.Error("garbage date should fail")
	}

	now := time.Now()
	v, err := Coerce(TypeDateTime, now)
	if err != nil || !v.Time.Equal(now) {
		t.Errorf("time.Time passthrough failed: %v %v", v, err)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"int less", Value{Kind: KindInt, Int: 1}, Value{Kind: KindInt, Int: 2}, -1},
		{"int equal", Value{Kind: KindInt, Int: 5}, Value{Kind: KindInt, Int: 5}, 0},
		{"string greater", Value{Kind: KindString, Str: "b"}, Value{Kind: KindString, Str: "a"}, 1},
		{"float less", Value{Kind: KindFloat, Float: 0.5}, Value{Kind: KindFloat, Float: 1.5}, -1},
		{"bool false before true", Value{Kind: KindBool, Bool: false}, Value{Kind: KindBool, Bool: true}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
		})
	}

	if _, err := Compare(Value{Kind: KindInt}, Value{Kind: KindString}); err == nil {
		t.Error("mismatched kinds should not compare")
	}
}
