// Package blobstore implements content-addressed byte storage on top of an
// S3-compatible object store: raw transcripts, rendered markdown, and
// serialized metadata documents.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store puts and gets content-addressed blobs in a single bucket.
type Store struct {
	client *minio.Client
	bucket string
	log    *slog.Logger
}

// Config holds connection parameters for the backing object store.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
}

// New constructs a Store and ensures its bucket exists.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: connect: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("blobstore: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("blobstore: create bucket: %w", err)
		}
	}

	return &Store{client: client, bucket: cfg.Bucket, log: log}, nil
}

// Put uploads data under key, overwriting any existing object.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("blobstore: put %s: %w", key, err)
	}
	s.log.Debug("blob stored", "key", key, "bytes", len(data))
	return nil
}

// Get downloads the full contents of key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object at key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present in the store.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: stat %s: %w", key, err)
	}
	return true, nil
}

// Key builders matching the blob layout in spec §6.

// YouTubeTranscriptKey returns the key for a video's raw transcript.
func YouTubeTranscriptKey(videoID string) string {
	return fmt.Sprintf("youtube/%s/transcript.txt", videoID)
}

// YouTubeMetadataKey returns the key for a video's metadata JSON document.
func YouTubeMetadataKey(videoID string) string {
	return fmt.Sprintf("youtube/%s/metadata.json", videoID)
}

// WebContentKey returns the key for extracted markdown of a web URL, keyed
// by the sha256 hash of its canonical form.
func WebContentKey(urlHash string) string {
	return fmt.Sprintf("web/%s/content.md", urlHash)
}

// UploadedDocumentKey returns the key for an admin-uploaded document.
func UploadedDocumentKey(contentType, contentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", contentType, contentID, filename)
}
