// Package storage is the media upload gateway backed by S3. The conversation
// flow only needs one thing from it: a durable URL string to embed in a
// message. It does no retrying, multipart bookkeeping or progress reporting.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Object path prefixes, matching the layout of the source system.
const (
	profilePicturePrefix = "images/"
	messagePhotoPrefix   = "message_images/"
	messageVideoPrefix   = "message_videos/"
)

// FileExtension is the set of media file types the send path produces.
type FileExtension string

const (
	ExtPNG FileExtension = ".png"
	ExtMOV FileExtension = ".mov"
)

// UploadError wraps a failed upload or URL resolution.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload %s: %v", e.Key, e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// S3Store uploads media objects and resolves their download URLs.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	region     string
	presignTTL time.Duration
}

// NewS3Store builds a store for the given bucket. A non-empty endpoint
// switches to path-style addressing for S3-compatible servers (MinIO).
func NewS3Store(ctx context.Context, region, bucket, endpoint string, presignTTL time.Duration) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		region:     region,
		presignTTL: presignTTL,
	}, nil
}

// MessageFileName builds the object file name for media attached to a
// message. Spaces in the id are folded to dashes to keep the key clean.
func MessageFileName(messageID string, ext FileExtension) string {
	return "media_message_" + strings.ReplaceAll(messageID, " ", "-") + string(ext)
}

// ProfilePicturePath returns the object path of a user's profile picture.
func ProfilePicturePath(safeEmail string) string {
	return profilePicturePrefix + safeEmail + "_profile_picture.png"
}

// UploadProfilePicture stores a profile picture and returns its URL.
func (s *S3Store) UploadProfilePicture(ctx context.Context, data []byte, fileName string) (string, error) {
	return s.upload(ctx, profilePicturePrefix+fileName, "image/png", data)
}

// UploadMessagePhoto stores an image sent in a conversation and returns the
// URL to embed in the photo message.
func (s *S3Store) UploadMessagePhoto(ctx context.Context, data []byte, fileName string) (string, error) {
	return s.upload(ctx, messagePhotoPrefix+fileName, "image/png", data)
}

// UploadMessageVideo stores a video sent in a conversation and returns the
// URL to embed in the video message.
func (s *S3Store) UploadMessageVideo(ctx context.Context, data []byte, fileName string) (string, error) {
	return s.upload(ctx, messageVideoPrefix+fileName, "video/quicktime", data)
}

// DownloadURL returns a presigned GET URL for a stored object path.
func (s *S3Store) DownloadURL(ctx context.Context, path string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", &UploadError{Key: path, Err: err}
	}
	return req.URL, nil
}

func (s *S3Store) upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}

	// escape per segment so prefixes keep their slashes
	parts := strings.Split(key, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, strings.Join(parts, "/")), nil
}
