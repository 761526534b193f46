package config

type Config interface {
	EnvConfig
	TokenConfig
	CleanupConfig
	StorageConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	Tokens
	Cleanup
	Storage
}

func New() Config {
	return mainConfig{}
}
