package errors

// Template defines a registered error code.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

var registry = map[string]Template{
	// Config (C001-C099)

	"C001": {
		Category:   CategoryConfig,
		Message:    "Invalid environment",
		Suggestion: "Check the COLLABMD_* variables and the .env file for typos.",
	},
	"C002": {
		Category:   CategoryConfig,
		Message:    "Redis URL required",
		Suggestion: "Set COLLABMD_REDIS_URL or use COLLABMD_BROKER=memory.",
	},
	"C003": {
		Category:   CategoryConfig,
		Message:    "Unknown broker",
		Suggestion: "COLLABMD_BROKER must be memory or redis.",
	},
	"C004": {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Suggestion: "Use debug, info, warn or error for the level and text or json for the format.",
	},
	"C005": {
		Category:   CategoryConfig,
		Message:    "Value out of range",
		Suggestion: "Sizes must be positive and durations must not be negative.",
	},
	"C006": {
		Category:   CategoryConfig,
		Message:    "Incomplete S3 credentials",
		Suggestion: "Set both COLLABMD_EXPORT_S3_ACCESS_KEY_ID and COLLABMD_EXPORT_S3_SECRET_KEY, or neither.",
	},

	// Broker (C100-C199)

	"C100": {
		Category:   CategoryBroker,
		Message:    "Broker unavailable",
		Suggestion: "Make sure Redis is running and reachable from this host.",
	},

	// Export (C200-C299)

	"C200": {
		Category:   CategoryExport,
		Message:    "Export target unavailable",
		Suggestion: "Check the S3 region, endpoint and credentials.",
	},

	// Server (C300-C399)

	"C300": {
		Category:   CategoryServer,
		Message:    "Server failed",
		Suggestion: "Is another process listening on the same address?",
	},
}

// Codes returns all registered error codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
