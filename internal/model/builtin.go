package model

// BuiltinDefinitions returns the system models appended to every registry
// unless the user declares models with the same names: ApiKey for access
// credentials and ApiMetric for request telemetry.
func BuiltinDefinitions() []*Definition {
	apiKey := &Definition{
		Name: "ApiKey",
		Fields: []Field{
			{Name: "name", Type: TypeString},
			{Name: "key", Type: TypeString, Unique: true, Private: true},
			{Name: "service", Type: TypeString},
			{Name: "isActive", Type: TypeBoolean, Default: true},
			{Name: "expiresAt", Type: TypeDateTime, Required: Bool(false)},
			{Name: "lastUsedAt", Type: TypeDateTime, Required: Bool(false)},
		},
		AuditTrail: true,
	}

	apiMetric := &Definition{
		Name: "ApiMetric",
		Fields: []Field{
			{Name: "endpoint", Type: TypeString},
			{Name: "method", Type: TypeString},
			{Name: "statusCode", Type: TypeInt},
			{Name: "durationMs", Type: TypeFloat, Required: Bool(false)},
			{Name: "timestamp", Type: TypeDateTime},
		},
		Constraints: Constraints{
			Indexes: [][]string{
				{"endpoint", "timestamp"},
				{"timestamp"},
			},
		},
	}

	return []*Definition{apiKey, apiMetric}
}
