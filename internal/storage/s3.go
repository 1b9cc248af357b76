package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/amillerrr/video2music/pkg/models"
)

// Default timeout for s3 operations
const DefaultS3Timeout = 5 * time.Minute

const genericContentType = "application/octet-stream"

// Container types for the accepted upload extensions. The system mime table
// does not reliably carry them.
var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// S3API is the subset of the S3 client used for video uploads.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner signs GET requests for private buckets.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// VideoStore uploads videos and hands out the URL the analysis stage reads from.
type VideoStore struct {
	client        S3API
	presigner     Presigner
	bucket        string
	region        string
	publicBaseURL string
	presignTTL    time.Duration
}

// VideoStoreConfig configures a VideoStore.
type VideoStoreConfig struct {
	Bucket        string
	Region        string
	PublicBaseURL string
	// PresignTTL > 0 returns presigned GET URLs instead of public ones.
	PresignTTL time.Duration
}

// NewVideoStore creates a VideoStore backed by client.
func NewVideoStore(client *s3.Client, cfg VideoStoreConfig) *VideoStore {
	return newVideoStore(client, s3.NewPresignClient(client), cfg)
}

func newVideoStore(client S3API, presigner Presigner, cfg VideoStoreConfig) *VideoStore {
	return &VideoStore{
		client:        client,
		presigner:     presigner,
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		presignTTL:    cfg.PresignTTL,
	}
}

// VideoKey builds the object key for an uploaded video.
func VideoKey(userID, fileID, filename string) string {
	return fmt.Sprintf("videos/%s/%s_%s", userID, fileID, path.Base(filename))
}

// PutVideo uploads body under key and returns the URL the video can be read from.
func (s *VideoStore) PutVideo(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultS3Timeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if ct := ContentTypeFor(key, contentType); ct != "" {
		input.ContentType = aws.String(ct)
	}

	_, err := s.client.PutObject(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	if s.presignTTL > 0 {
		return s.presignedURL(ctx, key)
	}
	return s.PublicURL(key), nil
}

// ContentTypeFor returns declared unless it is empty or generic, in which
// case the type is derived from the key's extension. It returns "" when
// neither yields a type.
func ContentTypeFor(key, declared string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != genericContentType {
		return declared
	}
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := videoContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return declared
}

// PublicURL returns the unsigned URL of key.
func (s *VideoStore) PublicURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	escaped := strings.Join(segments, "/")

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, escaped)
}

func (s *VideoStore) presignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.presignTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign request: %w", err)
	}

	return req.URL, nil
}
