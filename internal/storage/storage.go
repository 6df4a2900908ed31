// Package storage provides the flat snapshot store the record layer
// persists into: five independently keyed serialized documents, read
// and written wholesale. Backends share the Blob interface so tests
// can run against the in-memory implementation.
package storage

import "fmt"

// Collection keys. They keep the names used by legacy snapshots so
// exported backups and old data files stay readable.
const (
	KeyTrainings       = "simep_trainings"
	KeyResponses       = "simep_responses"
	KeyGlobalQuestions = "simep_global_questions"
	KeyContacts        = "simep_contacts"
	KeySettings        = "simep_settings"
)

// Keys lists every collection key, in export order.
func Keys() []string {
	return []string{KeyTrainings, KeyResponses, KeyGlobalQuestions, KeyContacts, KeySettings}
}

// Blob is a whole-document key-value store. Get reports presence
// separately from errors so an absent collection is not a failure.
type Blob interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	// Reset removes every collection. Used for factory reset.
	Reset() error
	Close() error
}

// Driver names a storage backend.
type Driver string

const (
	DriverMemory Driver = "memory"
	DriverFile   Driver = "file"
	DriverSQLite Driver = "sqlite"
)

// Open selects a backend by driver name. path is the data directory
// for the file driver and the database file for the sqlite driver.
func Open(driver Driver, path string) (Blob, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile, "":
		return NewFile(path)
	case DriverSQLite:
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
