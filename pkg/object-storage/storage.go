package objstorage

import (
	"context"
	"fmt"

	"github.com/filedepot/filedepot/pkg/object-storage/s3"
)

// ObjectResult 下载结果
type ObjectResult struct {
	Content     []byte
	ContentType string
}

// Store 对象存储的唯一依赖面：get/put/delete，后端无关。
// Put 必须是提交式写入，失败的传输不允许留下半写对象
type Store interface {
	GetObject(ctx context.Context, path string) (*ObjectResult, error)
	PutObject(ctx context.Context, path string, content []byte) error
	DeleteObject(ctx context.Context, path string) error
}

// S3Store 将 s3 客户端适配为 Store
type S3Store struct {
	cli *s3.S3
}

func NewS3Store(cli *s3.S3) *S3Store {
	return &S3Store{cli: cli}
}

func (s *S3Store) GetObject(ctx context.Context, path string) (*ObjectResult, error) {
	res, err := s.cli.GetObject(ctx, path)
	if err != nil {
		return nil, err
	}
	return &ObjectResult{Content: res.File, ContentType: res.FileType}, nil
}

func (s *S3Store) PutObject(ctx context.Context, path string, content []byte) error {
	return s.cli.PutObject(ctx, path, content)
}

func (s *S3Store) DeleteObject(ctx context.Context, path string) error {
	return s.cli.Delete(ctx, path)
}

func (s *S3Store) GenGetObjectPreSignURL(path string) (string, error) {
	return s.cli.GenGetObjectPreSignURL(path)
}

// NoneStore 未配置存储时的占位实现
type NoneStore struct{}

func (NoneStore) GetObject(ctx context.Context, path string) (*ObjectResult, error) {
	return nil, fmt.Errorf("object storage not configured")
}

func (NoneStore) PutObject(ctx context.Context, path string, content []byte) error {
	return fmt.Errorf("object storage not configured")
}

func (NoneStore) DeleteObject(ctx context.Context, path string) error {
	return fmt.Errorf("object storage not configured")
}
