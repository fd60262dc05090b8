package config

// StorageConfig holds configuration for a single storage connection, read from
// jbatch.storage.<name>.
type StorageConfig struct {
	// Type is the storage type: "local" or "gcs".
	Type string `yaml:"type"`
	// BucketName is the default bucket when a call passes none.
	BucketName string `yaml:"bucket_name"`
	// CredentialsFile is a service account key file (gcs). Empty uses application default credentials.
	CredentialsFile string `yaml:"credentials_file"`
	// Endpoint overrides the service endpoint (gcs), e.g. a local emulator.
	Endpoint string `yaml:"endpoint"`
	// BaseDir is the root directory of a local storage.
	BaseDir string `yaml:"base_dir"`
}
