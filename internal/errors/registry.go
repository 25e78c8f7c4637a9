package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No reeldeck.json was found at the given path.",
		DocURL:   "https://reeldeck.dev/docs/errors/E100",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "reeldeck.json could not be read or parsed.",
		DocURL:   "https://reeldeck.dev/docs/errors/E101",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid server address",
		Detail:   "The configured port must be between 0 and 65535.",
		DocURL:   "https://reeldeck.dev/docs/errors/E102",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Unknown storage backend",
		Detail:   "The storage backend must be one of: memory, postgres, sqlite, s3, redis.",
		DocURL:   "https://reeldeck.dev/docs/errors/E103",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Incomplete storage configuration",
		Detail:   "The selected storage backend is missing required settings.",
		DocURL:   "https://reeldeck.dev/docs/errors/E104",
	},
	"E110": {
		Category: CategoryConfig,
		Message:  "State directory unavailable",
		Detail:   "The local state directory could not be created or opened.",
		DocURL:   "https://reeldeck.dev/docs/errors/E110",
	},

	// ============================================
	// Storage Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryStorage,
		Message:  "User data load failed",
		Detail:   "The persistence backend did not return the stored record.",
		DocURL:   "https://reeldeck.dev/docs/errors/E200",
	},
	"E201": {
		Category: CategoryStorage,
		Message:  "User data save failed",
		Detail:   "The persistence backend rejected the write. Local state is kept and flagged offline.",
		DocURL:   "https://reeldeck.dev/docs/errors/E201",
	},
	"E202": {
		Category: CategoryStorage,
		Message:  "User data delete failed",
		Detail:   "The persisted record could not be removed from the backend.",
		DocURL:   "https://reeldeck.dev/docs/errors/E202",
	},
	"E210": {
		Category: CategoryStorage,
		Message:  "Storage initialization failed",
		Detail:   "The backing table or bucket could not be prepared.",
		DocURL:   "https://reeldeck.dev/docs/errors/E210",
	},

	// ============================================
	// Identity Errors (E300-E319)
	// ============================================

	"E300": {
		Category: CategoryIdentity,
		Message:  "Identity provider unreachable",
		Detail:   "The OpenID Connect issuer could not be contacted.",
		DocURL:   "https://reeldeck.dev/docs/errors/E300",
	},
	"E301": {
		Category: CategoryIdentity,
		Message:  "Sign-in rejected",
		Detail:   "The identity provider rejected the credentials.",
		DocURL:   "https://reeldeck.dev/docs/errors/E301",
	},
	"E302": {
		Category: CategoryIdentity,
		Message:  "Session token invalid",
		Detail:   "The stored session token failed verification or has expired.",
		DocURL:   "https://reeldeck.dev/docs/errors/E302",
	},

	// ============================================
	// Catalog Errors (E400-E419)
	// ============================================

	"E400": {
		Category: CategoryCatalog,
		Message:  "Catalog request failed",
		Detail:   "The title catalog did not return a usable response.",
		DocURL:   "https://reeldeck.dev/docs/errors/E400",
	},

	// ============================================
	// Server Errors (E500-E519)
	// ============================================

	"E500": {
		Category: CategoryServer,
		Message:  "Server failed to start",
		Detail:   "The HTTP listener could not bind to the configured address.",
		DocURL:   "https://reeldeck.dev/docs/errors/E500",
	},

	// ============================================
	// CLI Errors (E600-E619)
	// ============================================

	"E600": {
		Category: CategoryCLI,
		Message:  "Invalid command arguments",
		Detail:   "The command was invoked with arguments it does not accept.",
		DocURL:   "https://reeldeck.dev/docs/errors/E600",
	},
}

// Lookup returns the template for a code, if registered.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered error codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}
