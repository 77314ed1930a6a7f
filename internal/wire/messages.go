package wire

// SetConfigRequest carries the plugin's JSON configuration document.
type SetConfigRequest struct {
	ConfigJSON string `json:"configuration"`
}

// SetConfigResponse is the Ack on success; a non-nil error from the RPC
// carries a ConfigErrorKind instead (see ConfigError).
type SetConfigResponse struct{}

// ConfigErrorKind enumerates why SetConfig rejected a configuration.
type ConfigErrorKind int

const (
	ConfigErrUnspecified ConfigErrorKind = iota
	ConfigErrMissingRequiredConfig
	ConfigErrInvalidConfigValue
	ConfigErrEnvVarNotSet
	ConfigErrMissingProgram
)

func (k ConfigErrorKind) String() string {
	switch k {
	case ConfigErrMissingRequiredConfig:
		return "MissingRequiredConfig"
	case ConfigErrInvalidConfigValue:
		return "InvalidConfigValue"
	case ConfigErrEnvVarNotSet:
		return "EnvVarNotSet"
	case ConfigErrMissingProgram:
		return "MissingProgram"
	default:
		return "Unspecified"
	}
}

// ConfigError is returned by a plugin's SetConfig implementation when the
// supplied configuration is rejected.
type ConfigError struct {
	Kind   ConfigErrorKind `json:"kind"`
	Field  string          `json:"field"`
	Detail string          `json:"detail"`
}

func (e *ConfigError) Error() string {
	return "config rejected: " + e.Kind.String() + " field=" + e.Field + ": " + e.Detail
}

// DefaultPolicyExprRequest is empty; present for symmetry with the RPC shape.
type DefaultPolicyExprRequest struct{}

// DefaultPolicyExprResponse carries the plugin's suggested default policy
// expression, which may be empty.
type DefaultPolicyExprResponse struct {
	Expr string `json:"policy_expression"`
}

// ExplainDefaultQueryRequest is empty; present for symmetry with the RPC shape.
type ExplainDefaultQueryRequest struct{}

// ExplainDefaultQueryResponse carries an optional human-readable explanation.
type ExplainDefaultQueryResponse struct {
	Explanation *string `json:"explanation,omitempty"`
}

// QuerySchemasRequest is empty; present for symmetry with the RPC shape.
type QuerySchemasRequest struct{}

// QuerySchemaEntry describes one query a plugin exposes.
type QuerySchemaEntry struct {
	QueryName    string `json:"query_name"`
	KeySchema    string `json:"key_schema"`
	OutputSchema string `json:"output_schema"`
}
