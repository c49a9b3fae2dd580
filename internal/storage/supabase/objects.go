package supabase

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// signedURLTTL 下载直链的有效期
const signedURLTTL = 60 * time.Second

// ObjectConfig S3 兼容对象存储的连接参数
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStorage 基于 S3 协议访问 Supabase Storage
type ObjectStorage struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

// NewObjectStorage 创建对象存储客户端并确保桶存在
func NewObjectStorage(ctx context.Context, cfg ObjectConfig, log *zap.Logger) (*ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	s := &ObjectStorage{client: client, bucket: cfg.Bucket, log: log}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ObjectStorage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}
	s.log.Info("已创建对象存储桶", zap.String("bucket", s.bucket))
	return nil
}

// UploadObject 上传文件
func (s *ObjectStorage) UploadObject(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %q: %w", path, err)
	}
	return nil
}

// SignedDownloadURL 生成 60 秒有效的下载直链
func (s *ObjectStorage) SignedDownloadURL(ctx context.Context, path string) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, path, signedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %q: %w", path, err)
	}
	return signed.String(), nil
}

// DeleteObject 删除文件
func (s *ObjectStorage) DeleteObject(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %q: %w", path, err)
	}
	return nil
}
