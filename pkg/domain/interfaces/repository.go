package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Project() ProjectRepository
	Fragment() FragmentRepository
	Chapter() ChapterRepository

	Close() error
}
