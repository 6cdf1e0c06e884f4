// Package s3 loads the location directory from an S3 object.
package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	locations "gasmon/internal/locations/domain"
)

// ObjectGetter is the slice of the S3 API the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

// Loader fetches and parses the locations JSON document.
type Loader struct {
	client ObjectGetter
	bucket string
	key    string
	logger *log.Logger
}

// NewLoader constructs a loader for the given bucket and key.
func NewLoader(client ObjectGetter, bucket, key string, logger *log.Logger) (*Loader, error) {
	if client == nil {
		return nil, errors.New("locations s3: nil client")
	}
	if bucket == "" || key == "" {
		return nil, errors.New("locations s3: bucket and key required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{client: client, bucket: bucket, key: key, logger: logger}, nil
}

// Load downloads the directory document and parses it.
func (l *Loader) Load(ctx context.Context) (*locations.Directory, error) {
	l.logger.Printf("locations: downloading key %s from bucket %s", l.key, l.bucket)
	out, err := l.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(l.key),
	})
	if err != nil {
		return nil, fmt.Errorf("locations s3: get object: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("locations s3: read object: %w", err)
	}
	directory, err := Parse(body)
	if err != nil {
		return nil, err
	}
	l.logger.Printf("locations: loaded %d locations", directory.Len())
	return directory, nil
}

type locationDoc struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	ID string  `json:"id"`
}

// Parse decodes the locations JSON document into a directory.
func Parse(data []byte) (*locations.Directory, error) {
	var docs []locationDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("locations s3: malformed locations document: %w", err)
	}
	ordered := make([]locations.Location, 0, len(docs))
	for _, doc := range docs {
		ordered = append(ordered, locations.Location{X: doc.X, Y: doc.Y, ID: doc.ID})
	}
	return locations.NewDirectory(ordered)
}
