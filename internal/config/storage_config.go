package config

type StorageConfig interface {
	GetDatabaseURL() string
	GetRedisAddr() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetDatabaseURL() string {
	return GetEnv("DATABASE_URL", "postgres://localhost:5432/sessiond?sslmode=disable")
}

// GetRedisAddr returns the Redis address for the access-token denylist.
// An empty value disables the denylist.
func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}
