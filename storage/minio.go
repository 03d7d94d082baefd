package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"TrackPulse/config"
	"TrackPulse/logger"
	"TrackPulse/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore 以 MinIO 存储桶作为附件存储
type MinioStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinioStore 连接 MinIO，存储桶不存在时创建
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	logger.Info("正在连接 MinIO 服务器",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.String("region", cfg.MinioRegion))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("已创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return &MinioStore{client: client, bucketName: cfg.MinioBucket}, nil
}

func (m *MinioStore) Get(ctx context.Context, name string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.wrapErr(name, err)
	}
	defer object.Close()

	// GetObject 是惰性的，错误在第一次读取时才出现
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, m.wrapErr(name, err)
	}
	return data, nil
}

func (m *MinioStore) wrapErr(name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("artifact %s: %w", name, model.ErrNotFound)
	}
	return fmt.Errorf("failed to read artifact %s: %w", name, err)
}

func (m *MinioStore) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	_, err := m.client.PutObject(ctx, m.bucketName, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload artifact %s: %w", name, err)
	}
	return nil
}

func (m *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, stats, nil
}

// DeletePrefix 删除前缀下的所有对象，返回删除数量
func (m *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("refusing to delete without a prefix")
	}

	var names []minio.ObjectInfo
	for object := range m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return 0, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		names = append(names, object)
	}

	objectsCh := make(chan minio.ObjectInfo, len(names))
	for _, object := range names {
		objectsCh <- object
	}
	close(objectsCh)

	var firstErr error
	failed := 0
	for rerr := range m.client.RemoveObjects(ctx, m.bucketName, objectsCh, minio.RemoveObjectsOptions{}) {
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to delete %s: %w", rerr.ObjectName, rerr.Err)
		}
	}
	return len(names) - failed, firstErr
}
