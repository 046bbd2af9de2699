package kernel

// Error describes a kernel error. Errors are declared as package-level
// pointers to Error values because the trap path runs without a working
// allocator, so errors.New and fmt.Errorf are not available to it.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
