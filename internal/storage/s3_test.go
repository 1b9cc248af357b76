package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/amillerrr/video2music/pkg/models"
)

type mockS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.input = in
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		m.body = string(b)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

type mockPresigner struct {
	expires time.Duration
}

func (m *mockPresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	m.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + aws.ToString(in.Key) + "?X-Amz-Signature=abc"}, nil
}

func TestVideoKey(t *testing.T) {
	got := VideoKey("user-1", "f1", "../../etc/clip.mp4")
	if got != "videos/user-1/f1_clip.mp4" {
		t.Errorf("VideoKey() = %q", got)
	}
}

func TestPutVideo_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  VideoStoreConfig
		want string
	}{
		{
			name: "bucket url",
			cfg:  VideoStoreConfig{Bucket: "vids", Region: "us-west-2"},
			want: "https://vids.s3.us-west-2.amazonaws.com/videos/u1/f1_my%20clip.mp4",
		},
		{
			name: "public base url",
			cfg:  VideoStoreConfig{Bucket: "vids", Region: "us-west-2", PublicBaseURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/videos/u1/f1_my%20clip.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{}
			store := newVideoStore(client, &mockPresigner{}, tt.cfg)

			got, err := store.PutVideo(context.Background(), VideoKey("u1", "f1", "my clip.mp4"), strings.NewReader("data"), 4, "video/mp4")
			if err != nil {
				t.Fatalf("PutVideo() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PutVideo() = %q, want %q", got, tt.want)
			}
			if aws.ToString(client.input.ContentType) != "video/mp4" || client.body != "data" {
				t.Errorf("PutObject input = %+v body = %q", client.input, client.body)
			}
		})
	}
}

func TestPutVideo_MissingContentType(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		declared string
		want     *string
	}{
		{"derived from extension", "videos/u1/f1_clip.MOV", "", aws.String("video/quicktime")},
		{"generic replaced", "videos/u1/f1_clip.webm", "application/octet-stream", aws.String("video/webm")},
		{"declared kept", "videos/u1/f1_clip.mp4", "video/x-custom", aws.String("video/x-custom")},
		{"unknown extension omitted", "videos/u1/f1_clip", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockS3{}
			store := newVideoStore(client, &mockPresigner{}, VideoStoreConfig{Bucket: "vids", Region: "us-west-2"})

			if _, err := store.PutVideo(context.Background(), tt.key, strings.NewReader("x"), 1, tt.declared); err != nil {
				t.Fatalf("PutVideo() error = %v", err)
			}
			got := client.input.ContentType
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("ContentType = %v, want %v", aws.ToString(got), aws.ToString(tt.want))
			}
		})
	}
}

func TestPutVideo_Presigned(t *testing.T) {
	presigner := &mockPresigner{}
	store := newVideoStore(&mockS3{}, presigner, VideoStoreConfig{Bucket: "vids", PresignTTL: time.Hour})

	got, err := store.PutVideo(context.Background(), "videos/u1/f1_a.mp4", strings.NewReader("x"), 1, "video/mp4")
	if err != nil {
		t.Fatalf("PutVideo() error = %v", err)
	}
	if !strings.HasPrefix(got, "https://signed.example.com/videos/u1/f1_a.mp4") {
		t.Errorf("PutVideo() = %q", got)
	}
	if presigner.expires != time.Hour {
		t.Errorf("Expires = %v, want 1h", presigner.expires)
	}
}

func TestPutVideo_Error(t *testing.T) {
	store := newVideoStore(&mockS3{err: errors.New("access denied")}, &mockPresigner{}, VideoStoreConfig{Bucket: "vids"})

	_, err := store.PutVideo(context.Background(), "k", strings.NewReader("x"), 1, "video/mp4")
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Errorf("PutVideo() error = %v, want ErrUploadFailed", err)
	}
}
