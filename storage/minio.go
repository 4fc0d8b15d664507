package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"Praetorius/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio 初始化 MinIO 客户端
// 音频与乐谱PDF资源都存放在同一个存储桶里
func InitMinio(cfg *config.Config) error {
	log.Printf("正在连接 MinIO 服务器...")
	log.Printf("Bucket: %s", cfg.MinioBucket)
	if len(cfg.MinioAccessKey) > 4 {
		log.Printf("AccessKey: %s...", cfg.MinioAccessKey[:4])
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("创建 MinIO 客户端失败: %v", err)
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 检查存储桶是否存在
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %v", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		})
		if err != nil {
			return fmt.Errorf("创建存储桶失败: %v", err)
		}
		log.Printf("✅ 成功创建存储桶: %s", cfg.MinioBucket)
	} else {
		log.Printf("✅ 存储桶已存在: %s", cfg.MinioBucket)
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	log.Println("✅ MinIO 客户端初始化成功！")
	return nil
}

// GetMinioClient 获取 MinIO 客户端实例
func GetMinioClient() *minio.Client {
	return minioClient
}

// OpenAsset 打开存储桶中的一个资源对象，调用方负责关闭
func OpenAsset(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	object, err := minioClient.GetObject(ctx, minioBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectName, err)
	}
	return object, nil
}

// StatAsset 查询资源对象的元信息
func StatAsset(ctx context.Context, objectName string) (minio.ObjectInfo, error) {
	if minioClient == nil {
		return minio.ObjectInfo{}, fmt.Errorf("MinIO client not initialized")
	}
	info, err := minioClient.StatObject(ctx, minioBucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, fmt.Errorf("failed to stat object %s: %w", objectName, err)
	}
	return info, nil
}

// UploadAsset 上传一个资源对象
func UploadAsset(ctx context.Context, objectName string, reader io.Reader, size int64) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	_, err := minioClient.PutObject(ctx, minioBucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: AssetContentType(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", objectName, err)
	}
	return nil
}

// AssetContentType 根据对象扩展名推断Content-Type
func AssetContentType(objectName string) string {
	switch strings.ToLower(path.Ext(objectName)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
