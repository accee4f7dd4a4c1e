package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"ragsystem/internal/config"
)

const (
	bucketCheckTimeout = 5 * time.Second
	resumePrefix       = "resumes/"
)

// Client 保存用户上传的简历原文件。Bucket 为私有，下载只通过预签名链接。
type Client struct {
	mc     *minio.Client
	bucket string
}

// ObjectMeta 是 StatObject 返回的对象信息。
type ObjectMeta struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// ResumeObjectKey 生成简历文件的对象键：resumes/<user>/<uuid>.<ext>。
func ResumeObjectKey(userID, fileType string) string {
	return resumePrefix + userID + "/" + uuid.NewString() + "." + strings.ToLower(fileType)
}

// NewClient 连接 MinIO；Bucket 不存在时按配置决定创建或报错。
func NewClient(ctx context.Context, cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	c := &Client{mc: mc, bucket: cfg.Bucket}
	if err := c.ensureBucket(ctx, cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ensureBucket(ctx context.Context, cfg config.MinIOConfig) error {
	ctx, cancel := context.WithTimeout(ctx, bucketCheckTimeout)
	defer cancel()

	exists, err := c.mc.BucketExists(ctx, c.bucket)
	switch {
	case err != nil:
		return fmt.Errorf("check bucket %q: %w", c.bucket, err)
	case exists:
		return nil
	case !cfg.AutoCreateBucket:
		return fmt.Errorf("bucket %q does not exist and auto create is disabled", c.bucket)
	}
	if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", c.bucket, err)
	}
	return nil
}

func (c *Client) UploadFile(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error) {
	info, err := c.mc.PutObject(ctx, c.bucket, objectKey, reader, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", objectKey, err)
	}
	return &info, nil
}

// StatObject 返回对象信息；对象不存在时返回包装了 ErrObjectNotFound 的错误。
func (c *Client) StatObject(ctx context.Context, objectKey string) (*ObjectMeta, error) {
	info, err := c.mc.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if IsNoSuchKey(err) {
			return nil, fmt.Errorf("stat object %q: %w", objectKey, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat object %q: %w", objectKey, err)
	}
	return &ObjectMeta{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

func (c *Client) GeneratePresignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, objectKey, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign object %q: %w", objectKey, err)
	}
	return u.String(), nil
}

// DeleteObject 删除对象，空键与不存在的对象都视为成功。
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	err := c.mc.RemoveObject(ctx, c.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil && !IsNoSuchKey(err) {
		return fmt.Errorf("remove object %q: %w", objectKey, err)
	}
	return nil
}

// Ping 供就绪探针使用。
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.mc.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("ping bucket %q: %w", c.bucket, err)
	}
	return nil
}
