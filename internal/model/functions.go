package model

// Record is a stored record flowing through the engine as a plain
// key-value map, matching the execution adapter contract.
type Record = map[string]interface{}

// MaskFunc irreversibly obfuscates a single outgoing field value
type MaskFunc func(value interface{}) interface{}

// TransformFunc derives a computed field value from the full record
type TransformFunc func(record Record) interface{}

// Bindings is the typed capability map attached to a model at
// registration: named mask and transform functions resolved once at
// startup rather than looked up by string per request.
type Bindings struct {
	Masks      map[string]MaskFunc
	Transforms map[string]TransformFunc
}

// Mask resolves a named mask function
func (b *Bindings) Mask(name string) (MaskFunc, bool) {
	if b == nil {
		return nil, false
	}
	fn, ok := b.Masks[name]
	return fn, ok
}

// Transform resolves a named transform function
func (b *Bindings) Transform(name string) (TransformFunc, bool) {
	if b == nil {
		return nil, false
	}
	fn, ok := b.Transforms[name]
	return fn, ok
}
