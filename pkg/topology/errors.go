package topology

import "fmt"

// ConfigurationError reports required input that is missing or invalid.
// It is raised before any resource is declared, except for duplicate subnet
// names, which are detected while subnets are recorded.
type ConfigurationError struct {
	// Field is the configuration path of the offending value
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ReferenceError reports a cross-reference to an entity that was not
// declared earlier in the build.
type ReferenceError struct {
	// Kind is the kind of the missing entity (e.g. "subnet")
	Kind string
	// Name is the name that failed to resolve
	Name string
	// Referrer describes the entity holding the reference
	Referrer string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s references unknown %s %q", e.Referrer, e.Kind, e.Name)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
