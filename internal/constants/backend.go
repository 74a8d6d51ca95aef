package constants

// Backend names the graph store implementation.
type Backend string

const (
	// BackendMemory keeps the graph in process; used when nothing is configured.
	BackendMemory Backend = "memory"

	// BackendSQLite stores the graph in an embedded SQLite database.
	BackendSQLite Backend = "sqlite"

	// BackendSurreal queries a SurrealDB server.
	BackendSurreal Backend = "surreal"
)

// Valid returns true if the backend is a recognized value.
func (b Backend) Valid() bool {
	switch b {
	case BackendMemory, BackendSQLite, BackendSurreal:
		return true
	}
	return false
}

// String returns the string representation of the backend.
func (b Backend) String() string {
	return string(b)
}
