package config

type StorageConfig interface {
	GetRedisURL() string
	GetAuditDBPath() string
	GetStubSecret() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetRedisURL is empty when the persistent scope should live in memory
func (Storage) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}

func (Storage) GetAuditDBPath() string {
	return GetEnv("AUDIT_DB_PATH", "sadsa-audit.sqlite")
}

// GetStubSecret signs the tokens of the in-process authentication stub
func (Storage) GetStubSecret() string {
	return GetEnv("STUB_SECRET", "sadsa-dev-secret")
}
