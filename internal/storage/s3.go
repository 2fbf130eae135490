// Package storage persists signed CLA documents. The engine treats it as a
// pure side-effect sink: upload failures are logged, never rolled back into
// signature state.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/clahub/clahub/internal/clerrors"
	"github.com/clahub/clahub/internal/signature"
)

// DocumentStore persists signed documents keyed by project, signature type,
// reference and signature ID.
type DocumentStore interface {
	UploadSignedDocument(ctx context.Context, projectID uuid.UUID, sigType signature.Type, referenceID, signatureID uuid.UUID, pdf []byte) error
}

// S3Store implements DocumentStore on an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates a DocumentStore writing to the given bucket.
func NewS3Store(cfg aws.Config, bucket string) *S3Store {
	return &S3Store{client: s3.NewFromConfig(cfg), bucket: bucket}
}

// UploadSignedDocument stores the signed PDF under
// contract-group/{project}/{type}/{reference}/{signature}.pdf.
func (s *S3Store) UploadSignedDocument(ctx context.Context, projectID uuid.UUID, sigType signature.Type, referenceID, signatureID uuid.UUID, pdf []byte) error {
	key := fmt.Sprintf("contract-group/%s/%s/%s/%s.pdf", projectID, sigType, referenceID, signatureID)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pdf),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return &clerrors.ProviderError{Provider: "s3", Op: "upload " + key, Err: err}
	}
	return nil
}
