package objectclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/markdave123-py/pagetext/internal/core"
)

// Options selects the bucket and credentials. Empty keys fall back to the
// default AWS credential chain (env, shared config, instance role).
type Options struct {
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
}

type S3Client struct {
	client *s3.Client
	region string
	bucket string
	log    *slog.Logger
}

var _ core.ObjectClient = (*S3Client)(nil)

func NewS3Client(ctx context.Context, opts Options, log *slog.Logger) (*S3Client, error) {
	if opts.Region == "" {
		return nil, fmt.Errorf("%w: AWS_REGION not set", core.ErrInvalidConfig)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	log = log.With("component", "s3")
	log.Info("s3 client ready", "region", opts.Region, "bucket", opts.Bucket)

	return &S3Client{
		client: s3.NewFromConfig(awsCfg),
		region: opts.Region,
		bucket: opts.Bucket,
		log:    log,
	}, nil
}

// Bucket is the default bucket for uploads.
func (c *S3Client) Bucket() string { return c.bucket }

// UploadFile streams data to S3 through the multipart upload manager and returns the object URL.
func (c *S3Client) UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	if bucket == "" {
		bucket = c.bucket
	}
	uploader := manager.NewUploader(c.client)

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	_, err := uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	c.log.Debug("object uploaded", "bucket", bucket, "key", key)
	return ObjectURL(bucket, c.region, key), nil
}

func (c *S3Client) DeleteFile(ctx context.Context, bucket, key string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := c.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

// GetFile downloads the whole object with concurrent ranged GETs.
func (c *S3Client) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(c.client)
	if _, err := downloader.Download(ctxGet, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	return buf.Bytes(), nil
}

// ObjectURL is the virtual-hosted style URL of an object.
func ObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// ParseObjectURL extracts bucket and key from s3://bucket/key or a
// virtual-hosted style URL such as https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf.
// ok is false for anything else (e.g. a local path).
func ParseObjectURL(raw string) (bucket, key string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "s3":
		bucket = u.Host
	case "https", "http":
		host := u.Hostname()
		i := strings.Index(host, ".s3.")
		if i <= 0 || !strings.HasSuffix(host, ".amazonaws.com") {
			return "", "", false
		}
		bucket = host[:i]
	default:
		return "", "", false
	}
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
