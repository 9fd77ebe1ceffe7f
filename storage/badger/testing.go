package badger

// NewMemoryRepositories creates an in-memory repository set for testing.
// Caller must Close it when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}
