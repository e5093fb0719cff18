package storage

type storageError string

const ErrNotFound = storageError("not found")

// ErrReferenced is returned when a bridge still has sessions.
const ErrReferenced = storageError("still referenced")

func (e storageError) Error() string {
	return string(e)
}
