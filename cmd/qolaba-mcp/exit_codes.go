package main

// Exit codes so supervisors can distinguish configuration problems from
// runtime failures.

const (
	// ExitCodeSuccess indicates normal program termination
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates a generic error (default)
	ExitCodeGeneralError = 1

	// ExitCodeConfigError indicates configuration validation failed
	ExitCodeConfigError = 2

	// ExitCodeStartupError indicates the server failed to start or serve
	ExitCodeStartupError = 3
)
