// Package artifacts reads experiment result artifacts from the output
// bucket and caches them locally for the dashboard. Object keys follow
// <experiment>/<job_id>/<region>/... as written by the compute tasks.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"scenarios/internal/config"
)

// downloadParallelism bounds concurrent object downloads.
const downloadParallelism = 8

// ObjectAPI is the slice of the S3 client the store uses.
type ObjectAPI interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store reads result artifacts from a single bucket.
type Store struct {
	client ObjectAPI
	bucket string
}

// New builds a store from toolkit settings, using the default credentials
// chain. A custom endpoint (MinIO and friends) is honored when configured.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage.bucket is required to browse artifacts")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// NewWithClient builds a store around an existing client.
func NewWithClient(client ObjectAPI, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// List returns every object key under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("listing artifacts under %q: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return keys, nil
		}
		continuation = out.NextContinuationToken
	}
}

// Fetch reads one object into memory.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching artifact %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Download mirrors the given keys under cacheDir, skipping keys whose cache
// file already exists, and returns the local paths. Downloads run in
// parallel; the first failure cancels the rest.
func (s *Store) Download(ctx context.Context, keys []string, cacheDir string) ([]string, error) {
	paths := make([]string, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadParallelism)
	for i, key := range keys {
		paths[i] = filepath.Join(cacheDir, filepath.FromSlash(key))
		if _, err := os.Stat(paths[i]); err == nil {
			continue
		}
		local := paths[i]
		g.Go(func() error {
			data, err := s.Fetch(ctx, key)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
				return fmt.Errorf("creating cache directory for %s: %w", key, err)
			}
			return os.WriteFile(local, data, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
