package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"audiomanifest/config"
	"audiomanifest/logger"

	"github.com/cockroachdb/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const tsvContentType = "text/tab-separated-values"

// UploadError is a fatal failure to publish a manifest file.
type UploadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ManifestUploader 把生成的清单文件发布到 MinIO/S3 存储桶。
type ManifestUploader struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// NewManifestUploader 创建 MinIO 客户端；这里不发起网络请求
func NewManifestUploader(cfg *config.Config) (*ManifestUploader, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create minio client")
	}

	return &ManifestUploader{
		client: client,
		bucket: cfg.MinioBucket,
		prefix: cfg.MinioPrefix,
		region: cfg.MinioRegion,
	}, nil
}

// EnsureBucket 检查存储桶是否存在，不存在则创建
func (u *ManifestUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return &UploadError{Bucket: u.bucket, Err: errors.Wrap(err, "check bucket")}
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region}); err != nil {
		return &UploadError{Bucket: u.bucket, Err: errors.Wrap(err, "make bucket")}
	}
	logger.Info("bucket created", logger.String("bucket", u.bucket))
	return nil
}

// Upload puts the local file at localPath under <prefix>/<basename> and returns the object key.
func (u *ManifestUploader) Upload(ctx context.Context, localPath string, metadata map[string]string) (string, error) {
	key := ObjectKey(u.prefix, filepath.Base(localPath))
	info, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType:  tsvContentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return "", &UploadError{Bucket: u.bucket, Key: key, Err: err}
	}
	logger.Info("manifest uploaded",
		logger.String("bucket", u.bucket),
		logger.String("key", key),
		logger.Int64("size", info.Size))
	return key, nil
}

// ObjectInfo 已发布清单的信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	RunID        string
}

// List 列出前缀下已发布的清单文件
func (u *ManifestUploader) List(ctx context.Context) ([]ObjectInfo, error) {
	prefix := strings.Trim(u.prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	var out []ObjectInfo
	for obj := range u.client.ListObjects(ctx, u.bucket, minio.ListObjectsOptions{
		Prefix:       prefix,
		Recursive:    true,
		WithMetadata: true,
	}) {
		if obj.Err != nil {
			return out, &UploadError{Bucket: u.bucket, Key: prefix, Err: errors.Wrap(obj.Err, "list objects")}
		}
		out = append(out, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			RunID:        runIDFromMetadata(obj.UserMetadata),
		})
	}
	return out, nil
}

// MinIO 返回的用户元数据键带 X-Amz-Meta- 前缀，大小写不固定
func runIDFromMetadata(md map[string]string) string {
	for k, v := range md {
		k = strings.ToLower(k)
		if k == "run-id" || k == "x-amz-meta-run-id" {
			return v
		}
	}
	return ""
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// ObjectKey joins prefix and name with "/", ignoring empty or slash-padded prefixes.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
