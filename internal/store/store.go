// Package store provides host-side persistence for named scripts.
//
// The engine itself stays decoupled from persistence: the store only
// feeds the script registry at startup and records registrations the
// host chooses to save.
package store

// Entry is one persisted script.
type Entry struct {
	Name   string
	Source string
}

// Store is the interface for script persistence.
type Store interface {
	// Get retrieves a script source by name. Returns "" and false if absent.
	Get(name string) (string, bool, error)
	// Put stores a script source by name, overwriting if it exists.
	Put(name, source string) error
	// Delete removes a script by name.
	Delete(name string) error
	// List returns all persisted scripts in insertion order.
	List() ([]Entry, error)
	// Close releases resources.
	Close() error
}
