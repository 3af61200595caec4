// Package storage 抽象外部Blob存储。
// 上层只依赖上传/删除两个操作，便于替换为云对象存储。
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BlobStore 是外部Blob存储的最小接口。
// Put返回可直接下载的URL；key是之后删除时使用的不透明句柄。
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// DiskBlobStore 把Blob保存在本地磁盘，通过静态路由对外提供下载
type DiskBlobStore struct {
	basePath string
	baseURL  string
}

// 创建磁盘Blob存储，确保根目录存在
func NewDiskBlobStore(basePath, baseURL string) (*DiskBlobStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &DiskBlobStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Put 保存Blob并返回下载URL
func (s *DiskBlobStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.basePath, filepath.Clean("/"+key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		// 写入中断时不留下半个Blob
		os.Remove(path)
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	return s.baseURL + "/blobs/" + key, nil
}

// Delete 删除Blob。句柄已不存在时视为成功。
func (s *DiskBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(s.basePath, filepath.Clean("/"+key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// BasePath 返回磁盘存储根目录，供静态路由注册使用
func (s *DiskBlobStore) BasePath() string {
	return s.basePath
}
