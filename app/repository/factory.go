package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// DB returns the handle the repositories were built on.
func (f *Factory) DB() *gorm.DB {
	return f.db
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetReadingRepository returns the reading repository instance
func (f *Factory) GetReadingRepository() ReadingRepository {
	return f.GetRepositories().Reading
}

// GetCardRepository returns the card repository instance
func (f *Factory) GetCardRepository() CardRepository {
	return f.GetRepositories().Card
}
