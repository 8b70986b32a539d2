package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"video-sentinel/internal/config"
	apperrors "video-sentinel/pkg/errors"
	"video-sentinel/pkg/logger"
	"video-sentinel/pkg/tracer"
)

var throttleCodes = map[string]struct{}{
	"SlowDown":             {},
	"Throttling":           {},
	"ThrottlingException":  {},
	"TooManyRequests":      {},
	"RequestLimitExceeded": {},
	"ServiceUnavailable":   {},
	"RequestThrottled":     {},
}

// S3Store S3 兼容对象存储（Cloudflare R2）
type S3Store struct {
	backend   string
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	publicURL string
	timeout   time.Duration
}

var _ Store = (*S3Store)(nil)

// NewS3Store 创建 R2/S3 存储
func NewS3Store(ctx context.Context, cfg *config.StorageConfig) (*S3Store, error) {
	r2 := cfg.R2
	if r2.Bucket == "" || r2.AccessKeyID == "" || r2.SecretAccessKey == "" {
		return nil, fmt.Errorf("r2 credentials not fully configured")
	}

	endpoint := r2.Endpoint
	if endpoint == "" && cfg.Backend == "r2" {
		if r2.AccountID == "" {
			return nil, fmt.Errorf("r2 account_id is required when endpoint is empty")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID)
	}
	region := r2.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKeyID, r2.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = r2.UsePathStyle
	})

	publicURL := r2.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimRight(endpoint, "/") + "/" + r2.Bucket
	}

	return &S3Store{
		backend:   cfg.Backend,
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    r2.Bucket,
		publicURL: publicURL,
		timeout:   cfg.Timeout,
	}, nil
}

// Backend 后端名称
func (s *S3Store) Backend() string { return s.backend }

// Put 上传文件，Content-Type 按扩展名设置
func (s *S3Store) Put(ctx context.Context, key, localPath string) (Location, error) {
	ctx, span := otel.Tracer("storage").Start(ctx, "storage.S3Store.Put")
	span.SetAttributes(attribute.String("storage.key", key), attribute.String("storage.bucket", s.bucket))
	defer span.End()

	f, _, err := openLocal(localPath)
	if err != nil {
		tracer.RecordError(span, err)
		return Location{}, err
	}
	defer f.Close()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(ContentType(localPath)),
	})
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn(ctx, "segment upload failed", "key", key, "error", err.Error())
		return Location{}, ClassifyS3Error(err, "failed to upload segment")
	}

	return Location{Key: key, URL: PublicURL(s.publicURL, key)}, nil
}

// Delete 删除对象
func (s *S3Store) Delete(ctx context.Context, key string) error {
	ctx, span := otel.Tracer("storage").Start(ctx, "storage.S3Store.Delete")
	defer span.End()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tracer.RecordError(span, err)
		return ClassifyS3Error(err, "failed to delete object")
	}
	return nil
}

// ClassifyS3Error 归类 S3 错误：限流 → Capacity，4xx → Permanent，其余 → Transient
func ClassifyS3Error(err error, message string) *apperrors.AppError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := throttleCodes[apiErr.ErrorCode()]; ok {
			return apperrors.Capacity(err, message)
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		status := statusErr.HTTPStatusCode()
		if status == 503 {
			return apperrors.Capacity(err, message)
		}
		if status > 0 {
			return apperrors.ClassifyStatus(err, status, message)
		}
	}
	return apperrors.Classify(err, message)
}
