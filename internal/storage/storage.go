package storage

import (
	"fmt"
	"mime/multipart"

	"github.com/Jamemaniquiz/BOOKNEST-sub000/config"
)

// FileStorage 文件存储接口，付款截图和图书封面都走这里
type FileStorage interface {
	UploadFile(file *multipart.FileHeader, path string) (string, error)
}

// New 根据配置选择存储后端
func New(cfg *config.Config) (FileStorage, error) {
	switch cfg.StorageBackend {
	case "local", "":
		return NewLocalStorage(cfg.LocalStoragePath)
	case "s3":
		return NewS3Client(cfg.S3Region, cfg.S3Bucket)
	case "gcs":
		return NewGCSClient(cfg.GCSProjectID, cfg.GCSBucketName, cfg.GCSCredentialsFile)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
