// Package errors provides the categorized startup errors printed by the
// collabmd command.
//
// Library packages return plain sentinel and wrapped errors. When one of
// those reaches the command line it is converted into an *Error carrying a
// code, a category and a hint for the operator.
//
// # Categories
//
//   - config: invalid or inconsistent environment configuration
//   - broker: the fan-out broker could not be reached
//   - export: the export target could not be configured
//   - server: the HTTP listener failed
//
// # Usage
//
//	err := errors.New("C002").
//	    WithDetail("COLLABMD_REDIS_URL is empty").
//	    WithSuggestion("Set COLLABMD_REDIS_URL=redis://localhost:6379/0")
//
//	errors.PrintError(err)
//	// ERROR C002: Redis URL required
//	//
//	//   COLLABMD_REDIS_URL is empty
//	//
//	//   Hint: Set COLLABMD_REDIS_URL=redis://localhost:6379/0
package errors
