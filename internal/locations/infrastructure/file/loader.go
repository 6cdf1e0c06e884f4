// Package file loads the location directory from a local JSON document,
// used by tools and local runs without S3 access.
package file

import (
	"fmt"
	"os"

	locations "gasmon/internal/locations/domain"
	s3loader "gasmon/internal/locations/infrastructure/s3"
)

// Load reads and parses a locations document from disk.
func Load(path string) (*locations.Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("locations file: read %s: %w", path, err)
	}
	return s3loader.Parse(data)
}
