package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tendant/objectgate/pkg/objectgate"
)

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PartSize        int64  // Multipart upload part size in bytes (default: manager default)

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm
}

// Client is the subset of *s3.Client the backend uses
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend is an S3-compatible implementation of the objectgate.ObjectStore interface
type Backend struct {
	client   Client
	uploader *manager.Uploader
	config   Config
}

// New creates a new S3-compatible storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	// Set up AWS config
	var awsCfg aws.Config
	var err error

	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		// Use provided credentials
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				config.AccessKeyID,
				config.SecretAccessKey,
				"",
			)),
		)
	} else {
		// Use default credential chain
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(config.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)

	// Custom endpoint for S3-compatible services (MinIO, etc.)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Options...), config), nil
}

// NewWithClient creates a backend over an existing client
func NewWithClient(client Client, config Config) *Backend {
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	return &Backend{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if config.PartSize > 0 {
				u.PartSize = config.PartSize
			}
		}),
		config: config,
	}
}

// CreateBucket creates the bucket if it doesn't exist
func (b *Backend) CreateBucket(ctx context.Context, bucket string) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	// Handle multiple error types for MinIO compatibility
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) &&
		!strings.Contains(err.Error(), "BadRequest") &&
		!strings.Contains(err.Error(), "NoSuchBucket") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	createInput := &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	}
	// Add location constraint for regions other than us-east-1
	if b.config.Region != "us-east-1" {
		createInput.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, createInput); err != nil {
		var exists *types.BucketAlreadyExists
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &exists) || errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ListObjects pages through ListObjectsV2 until maxKeys keys were collected
func (b *Backend) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int32) ([]objectgate.ObjectSummary, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(maxKeys)
	}

	var out []objectgate.ObjectSummary
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, bucket, prefix)
		}
		for _, obj := range page.Contents {
			out = append(out, objectgate.ObjectSummary{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
			if maxKeys > 0 && len(out) >= int(maxKeys) {
				return out, nil
			}
		}
	}
	return out, nil
}

// HeadObject retrieves user metadata and content headers
func (b *Backend) HeadObject(ctx context.Context, bucket, key string) (*objectgate.ObjectHead, error) {
	result, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, bucket, key)
	}

	return &objectgate.ObjectHead{
		Metadata: result.Metadata,
		Headers: objectgate.ContentHeaders{
			ContentType:        aws.ToString(result.ContentType),
			ContentEncoding:    aws.ToString(result.ContentEncoding),
			ContentLanguage:    aws.ToString(result.ContentLanguage),
			ContentDisposition: aws.ToString(result.ContentDisposition),
		},
		ContentLength: aws.ToInt64(result.ContentLength),
		ETag:          strings.Trim(aws.ToString(result.ETag), "\""),
		LastModified:  aws.ToTime(result.LastModified),
	}, nil
}

// GetObject opens a read stream
func (b *Backend) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, bucket, key)
	}
	return result.Body, nil
}

// GetObjectTagging returns the tag set
func (b *Backend) GetObjectTagging(ctx context.Context, bucket, key string) ([]objectgate.Tag, error) {
	result, err := b.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, bucket, key)
	}

	tags := make([]objectgate.Tag, 0, len(result.TagSet))
	for _, tag := range result.TagSet {
		tags = append(tags, objectgate.Tag{ID: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

// PutObjectTagging replaces the tag set
func (b *Backend) PutObjectTagging(ctx context.Context, bucket, key string, tags []objectgate.Tag) error {
	tagSet := make([]types.Tag, 0, len(tags))
	for _, tag := range tags {
		tagSet = append(tagSet, types.Tag{Key: aws.String(tag.ID), Value: aws.String(tag.Value)})
	}
	_, err := b.client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(bucket),
		Key:     aws.String(key),
		Tagging: &types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return mapError(err, bucket, key)
	}
	return nil
}

// Upload streams the body through the multipart uploader. A failed body
// aborts the multipart upload so nothing is committed.
func (b *Backend) Upload(ctx context.Context, input objectgate.UploadInput) (*objectgate.UploadOutput, error) {
	put := &s3.PutObjectInput{
		Bucket:   aws.String(input.Bucket),
		Key:      aws.String(input.Key),
		Body:     input.Body,
		Metadata: input.Metadata,
	}
	setHeaders(&put.ContentType, &put.ContentEncoding, &put.ContentLanguage, &put.ContentDisposition, input.Headers)
	if input.Tagging != "" {
		put.Tagging = aws.String(input.Tagging)
	}
	b.applySSE(&put.ServerSideEncryption, &put.SSEKMSKeyId)

	result, err := b.uploader.Upload(ctx, put)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", mapError(err, input.Bucket, input.Key))
	}

	return &objectgate.UploadOutput{
		Location: result.Location,
		ETag:     strings.Trim(aws.ToString(result.ETag), "\""),
	}, nil
}

// CopyObject performs a server-side copy
func (b *Backend) CopyObject(ctx context.Context, input objectgate.CopyInput) (*objectgate.CopyOutput, error) {
	params := &s3.CopyObjectInput{
		Bucket:     aws.String(input.Bucket),
		Key:        aws.String(input.Key),
		CopySource: aws.String(input.CopySource),
	}
	if input.ReplaceMetadata {
		params.MetadataDirective = types.MetadataDirectiveReplace
		params.Metadata = input.Metadata
		setHeaders(&params.ContentType, &params.ContentEncoding, &params.ContentLanguage, &params.ContentDisposition, input.Headers)
	}
	if input.ReplaceTagging {
		params.TaggingDirective = types.TaggingDirectiveReplace
		params.Tagging = aws.String(input.Tagging)
	}
	b.applySSE(&params.ServerSideEncryption, &params.SSEKMSKeyId)

	result, err := b.client.CopyObject(ctx, params)
	if err != nil {
		return nil, mapError(err, input.Bucket, input.Key)
	}

	out := &objectgate.CopyOutput{}
	if result.CopyObjectResult != nil {
		out.ETag = strings.Trim(aws.ToString(result.CopyObjectResult.ETag), "\"")
		out.LastModified = aws.ToTime(result.CopyObjectResult.LastModified)
	}
	return out, nil
}

// DeleteObject removes the object
func (b *Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", mapError(err, bucket, key))
	}
	return nil
}

func (b *Backend) applySSE(algorithm *types.ServerSideEncryption, kmsKeyID **string) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		*algorithm = types.ServerSideEncryptionAes256
	case "aws:kms":
		*algorithm = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			*kmsKeyID = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

func setHeaders(contentType, encoding, language, disposition **string, h objectgate.ContentHeaders) {
	if h.ContentType != "" {
		*contentType = aws.String(h.ContentType)
	}
	if h.ContentEncoding != "" {
		*encoding = aws.String(h.ContentEncoding)
	}
	if h.ContentLanguage != "" {
		*language = aws.String(h.ContentLanguage)
	}
	if h.ContentDisposition != "" {
		*disposition = aws.String(h.ContentDisposition)
	}
}

// mapError marks missing objects and buckets with objectgate.ErrNotFound.
// Other errors pass through for objectgate.Normalize to classify.
func mapError(err error, bucket, key string) error {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return fmt.Errorf("%s/%s: %w", bucket, key, objectgate.ErrNotFound)
	}
	return err
}
