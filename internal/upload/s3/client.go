package s3

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// PartInfo — завершённая часть multipart загрузки.
type PartInfo struct {
	PartNumber int
	ETag       string
}

type Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Endpoint переопределяет базовый URL (MinIO / локальная разработка).
	Endpoint string
	// PublicBaseURL — база для публичных ссылок; пустая = стандартный S3 URL.
	PublicBaseURL string
}

// Client wraps the S3 multipart protocol: initiate / part URLs / complete /
// abort / head. It holds no mutable state beyond connection configuration.
type Client struct {
	s3Client  *s3.Client
	presigner *s3.PresignClient
	cfg       Config
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is empty")
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3Client:  s3Client,
		presigner: s3.NewPresignClient(s3Client),
		cfg:       cfg,
	}, nil
}

// ObjectKey builds the destination key: <folder>/<uuid><ext>.
func ObjectKey(folder, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return path.Join(folder, uuid.New().String()+ext)
}

// Initiate opens a multipart upload and returns the destination key plus the
// upload handle required by every subsequent call.
func (c *Client) Initiate(ctx context.Context, fileName, folder, contentType string, metadata map[string]string) (string, string, error) {
	key := ObjectKey(folder, fileName)

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	result, err := c.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", "", fmt.Errorf("create multipart upload: %w", err)
	}

	return key, aws.ToString(result.UploadId), nil
}

// PartUploadURL presigns a PUT for one part; the client transfers the bytes
// directly to storage with it.
func (c *Client) PartUploadURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:     aws.String(c.cfg.Bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(int32(partNumber)),
	}

	request, err := c.presigner.PresignUploadPart(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign part %d: %w", partNumber, err)
	}

	return request.URL, nil
}

// Complete commits the ordered part set as one object.
func (c *Client) Complete(ctx context.Context, key, uploadID string, parts []PartInfo) error {
	completedParts := make([]s3Types.CompletedPart, len(parts))
	for i, part := range parts {
		completedParts[i] = s3Types.CompletedPart{
			ETag:       aws.String(part.ETag),
			PartNumber: aws.Int32(int32(part.PartNumber)),
		}
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &s3Types.CompletedMultipartUpload{
			Parts: completedParts,
		},
	}

	if _, err := c.s3Client.CompleteMultipartUpload(ctx, input); err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

// Abort releases storage-side resources of an unfinished multipart upload.
func (c *Client) Abort(ctx context.Context, key, uploadID string) error {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}

	if _, err := c.s3Client.AbortMultipartUpload(ctx, input); err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

// PublicURL returns the playback URL of a committed object.
func (c *Client) PublicURL(key string) string {
	if c.cfg.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimSuffix(c.cfg.PublicBaseURL, "/"), key)
	}
	if c.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(c.cfg.Endpoint, "/"), c.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.Bucket, c.cfg.Region, key)
}

// HeadMetadata fetches the user metadata of a committed object. Returns nil
// without error when the object does not exist yet.
func (c *Client) HeadMetadata(ctx context.Context, key string) (map[string]string, error) {
	result, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3Types.NotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("head object: %w", err)
	}
	return result.Metadata, nil
}
