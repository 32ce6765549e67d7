package history

import "fmt"

// NotFoundError indicates an unknown conversation.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// StorageError indicates the backing store failed a read or write. The
// triggering action fails; the session stays usable.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotInitializedError is returned when appending to a conversation that has
// stored history but no pages loaded in this session.
type NotInitializedError struct {
	ConversationID string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("conversation %s has no loaded pages; initialize its history first", e.ConversationID)
}

// IndexNotSavedError is returned by AppendMessage when the message page was
// written but the conversation index could not be saved afterwards. The
// message is stored; only the index metadata is stale.
type IndexNotSavedError struct {
	UserID string
	Err    error
}

func (e *IndexNotSavedError) Error() string {
	return fmt.Sprintf("message stored but conversation index of %s not saved: %v", e.UserID, e.Err)
}

func (e *IndexNotSavedError) Unwrap() error {
	return e.Err
}
