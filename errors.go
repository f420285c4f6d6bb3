package lokidb

import (
	"github.com/pkg/errors"
)

// Sentinel error kinds. Callers should use errors.Is against these values;
// wrapErr attaches context with github.com/pkg/errors so the stack survives
// the round trip through transaction rollback and adapter failures.
var (
	// ErrInvalidArgument is returned for a nil document passed to Insert or
	// InsertMany, an unsupported selector passed to Remove, a transform step
	// of unknown kind, or an operator passed to CalculateRange that is not
	// index-eligible. Get takes an int64 id and reports a missing id through
	// its boolean result; the sort methods do not validate their keys and
	// return no error.
	ErrInvalidArgument = errors.New("lokidb: invalid argument")

	// ErrDuplicateKey is returned when a UniqueIndex.set sees an existing
	// key for a non-null value.
	ErrDuplicateKey = errors.New("lokidb: duplicate key")

	// ErrUnsyncedDocument is returned when Update is called with a document
	// that has no $id.
	ErrUnsyncedDocument = errors.New("lokidb: document has no $id")

	// ErrNotFound is returned when Update/Remove target a $id absent from
	// the collection.
	ErrNotFound = errors.New("lokidb: document not found")

	// ErrInvalidIndex is returned by CheckIndex for a property with no
	// BinaryIndex.
	ErrInvalidIndex = errors.New("lokidb: no such index")

	// ErrAdapterError wraps a failure surfaced by a StorageAdapter.
	ErrAdapterError = errors.New("lokidb: storage adapter error")

	// ErrTransformError is returned for an unknown or malformed transform.
	ErrTransformError = errors.New("lokidb: invalid transform")
)

// wrapErr attaches op/collection context to a sentinel error while keeping
// it recoverable with errors.Is and errors.Cause.
func wrapErr(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}
