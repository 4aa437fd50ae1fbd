// Package gcs reads and writes objects in Google Cloud Storage. The ledger
// document and imported CSV exports can both live in a bucket.
package gcs

import (
	"context"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// FetchFromGCS downloads file bytes from the given storage URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)

	// WriteToGCS replaces the object at the given storage URI.
	WriteToGCS(ctx context.Context, gcsURI string, data []byte, contentType string) error
}
