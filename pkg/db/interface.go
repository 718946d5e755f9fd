package db

type DB interface {
	Init() error
	StoreConfig(cfg *Config) error
	CommitFiles(records []*FileRecord) error
	Files() ([]*FileRecord, error)
	GetConfig() (map[string]string, error)
	Close() error
}
