package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chirino/chat-history/internal/config"
	registryblob "github.com/chirino/chat-history/internal/registry/blob"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name:   "s3",
		Loader: load,
	})
}

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func load(ctx context.Context) (registryblob.BlobStore, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("s3store: missing config in context")
	}
	role := config.RoleFromContext(ctx)
	src := cfg.Source(role)
	if src.S3Bucket == "" {
		return nil, fmt.Errorf("s3store: %s bucket is required", role)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("s3store: load AWS config: %w", err)
	}
	usePathStyle := src.S3UsePathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return New(client, src.S3Bucket, src.S3Prefix), nil
}

// S3Store keeps one object per key in a bucket, below an optional prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New returns a store over an existing client.
func New(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

// objectKey applies the prefix to a storage key. The prefix never leaks back
// into names returned by List.
func (s *S3Store) objectKey(key string) string {
	key = strings.Trim(key, "/")
	if key == "" {
		return s.prefix
	}
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	objectKey := s.objectKey(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("s3store: head object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	objectKey := s.objectKey(key)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objectKey,
	})
	if isNotFound(err) {
		return nil, &registryblob.NotFoundError{Key: key}
	}
	if err != nil {
		return nil, fmt.Errorf("s3store: get object %s: %w", key, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read object %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) Write(ctx context.Context, key string, data []byte) error {
	objectKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &objectKey,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := s.objectKey(dir)
	if prefix != "" {
		prefix += "/"
	}
	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    &prefix,
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3store: list %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (s *S3Store) CreateIfAbsent(ctx context.Context, key string) error {
	exists, err := s.Exists(ctx, key)
	if err != nil || exists {
		return err
	}
	return s.Write(ctx, key, []byte{})
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

var _ registryblob.BlobStore = (*S3Store)(nil)
