package framework

import "fmt"

// SetupError means that an application could not be hosted: its directory does not exist,
// it has no application configuration, or the virtual path is invalid.
type SetupError struct {
	Directory string
	Reason    string
}

func (e *SetupError) Error() string {
	if e.Directory == "" {
		return "application setup failed: " + e.Reason
	}
	return fmt.Sprintf("application setup failed for %q: %s", e.Directory, e.Reason)
}

// TransportError means that a closure could not be encoded for, or decoded after, crossing
// into a domain. Field is the dotted path of the offending captured field, starting with
// the name of the function that captured it.
type TransportError struct {
	Field  string
	Reason string
}

func (e *TransportError) Error() string {
	if e.Field == "" {
		return "cannot transport closure: " + e.Reason
	}
	return fmt.Sprintf("cannot transport captured field %q: %s", e.Field, e.Reason)
}

// ConfigOverrideError means that a configuration override map was required but not given.
type ConfigOverrideError struct {
	Reason string
}

func (e *ConfigOverrideError) Error() string {
	return "invalid configuration overrides: " + e.Reason
}

// ArgumentError means that a caller passed a nil or empty value where one is required.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Name, e.Reason)
}
