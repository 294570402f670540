package objstorage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore stores objects on the local file system.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (l *LocalStore) fullPath(path string) string {
	return filepath.Join(l.Root, strings.TrimPrefix(path, "/"))
}

func (l *LocalStore) GetObject(ctx context.Context, path string) (*ObjectResult, error) {
	content, err := os.ReadFile(l.fullPath(path))
	if err != nil {
		return nil, err
	}

	probe := content
	if len(probe) > 512 {
		probe = probe[:512]
	}

	return &ObjectResult{
		Content:     content,
		ContentType: http.DetectContentType(probe),
	}, nil
}

// PutObject 先写临时文件再 rename 提交，避免半写对象被读到
func (l *LocalStore) PutObject(ctx context.Context, path string, content []byte) error {
	target := l.fullPath(path)

	dir := filepath.Dir(target)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write staging file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close staging file: %w", err)
	}

	if err = os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit file: %w", err)
	}
	return nil
}

func (l *LocalStore) DeleteObject(ctx context.Context, path string) error {
	err := os.Remove(l.fullPath(path))
	if os.IsNotExist(err) {
		// 删除一个不存在的对象视为成功，保证重放安全
		return nil
	}
	return err
}
