package lokidb

import "context"

// StorageAdapter is the persistence boundary described in spec §7: a
// three-method contract a Database delegates to, with no opinion on the
// actual backing store. Database implements the save/load orchestration
// (format selection, throttling); an adapter only needs to move bytes.
type StorageAdapter interface {
	// SaveDatabase persists serialized, the output of Database.Serialize,
	// under name.
	SaveDatabase(ctx context.Context, name string, serialized []byte) error
	// LoadDatabase retrieves the bytes previously passed to SaveDatabase
	// for name. Returns ErrNotFound if name has never been saved.
	LoadDatabase(ctx context.Context, name string) ([]byte, error)
	// DeleteDatabase removes any data stored for name. Deleting a name
	// that was never saved is not an error.
	DeleteDatabase(ctx context.Context, name string) error
}
