package blob

import "fmt"

// NotFoundError indicates no object is stored under Key.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("blob not found: %s", e.Key)
}

// ReadOnlyError is returned by stores that refuse mutation.
type ReadOnlyError struct {
	Op  string
	Key string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("blob store is read-only: %s %s", e.Op, e.Key)
}
