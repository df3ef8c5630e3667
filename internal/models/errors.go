package models

import "fmt"

// CapacityError is returned when a community refuses a new author because
// the maxAuthors cap is reached.
type CapacityError struct {
	Community string
	Max       int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("community %q is at capacity (%d authors)", e.Community, e.Max)
}
