package storage

import (
	"fmt"
	"strings"
)

// Config represents asset storage configuration
type Config struct {
	// Type is "fs", "s3" or "memory"
	Type string

	// Filesystem backend settings
	BasePath string

	// S3 backend settings
	S3 S3Config
}

// S3Config holds S3 or MinIO connection settings.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	switch c.Type {
	case "fs":
		if c.BasePath == "" {
			return fmt.Errorf("filesystem base path is required for fs backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket is required for s3 backend")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return fmt.Errorf("s3 access key and secret key must be set together")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid backend type: %s (must be fs, s3 or memory)", c.Type)
	}
	return nil
}
