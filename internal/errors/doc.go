// Package errors provides structured, actionable error messages for
// reeldeck.
//
// # Error Categories
//
// Errors are organized into categories:
//   - config: configuration file and settings errors
//   - storage: persistence backend errors
//   - identity: identity provider and token errors
//   - catalog: upstream title catalog errors
//   - server: HTTP server errors
//   - cli: command invocation errors
//
// # Error Codes
//
// Each error has a unique code (e.g., "E100") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E100").
//	    WithDetail("No reeldeck.json found in /srv/reeldeck").
//	    WithSuggestion("Run 'reeldeck init' to create one")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E100: Configuration file not found
//	//
//	//   No reeldeck.json found in /srv/reeldeck
//	//
//	//   Hint: Run 'reeldeck init' to create one
//	//
//	//   Learn more: https://reeldeck.dev/docs/errors/E100
package errors
