package enums

import "fmt"

// Lifecycle tags master data and accounts; retired rows stay readable but
// accept no new activity.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "ACTIVE"
	LifecycleRetired Lifecycle = "RETIRED"
)

// IsValid reports whether the value matches a known lifecycle.
func (l Lifecycle) IsValid() bool {
	return l == LifecycleActive || l == LifecycleRetired
}

// ParseLifecycle converts raw input into Lifecycle.
func ParseLifecycle(value string) (Lifecycle, error) {
	switch Lifecycle(value) {
	case LifecycleActive, LifecycleRetired:
		return Lifecycle(value), nil
	}
	return "", fmt.Errorf("invalid lifecycle %q", value)
}
