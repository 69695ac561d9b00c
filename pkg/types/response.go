package types

// ErrorEnvelope is the failure body every account service endpoint returns.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	// Error mirrors Message for clients written against the first google-login route.
	Error string `json:"error,omitempty"`
}

// StatusEnvelope is the body of endpoints that only report success.
type StatusEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
