package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"TrackPulse/model"
)

// DirStore 以本地目录作为附件存储，与抓取服务共享同一个目录
type DirStore struct {
	root string
}

// NewDirStore 创建目录存储，目录不存在时自动创建
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact dir %s: %w", root, err)
	}
	return &DirStore{root: root}, nil
}

// path 只接受 root 之下的相对路径
func (s *DirStore) path(name string) (string, error) {
	name = filepath.FromSlash(strings.TrimPrefix(name, "/"))
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid artifact name %q: %w", name, model.ErrNotFound)
	}
	return filepath.Join(s.root, name), nil
}

func (s *DirStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", name, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	return data, nil
}

func (s *DirStore) Put(ctx context.Context, name string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", name, err)
	}
	// 先写临时文件再改名，读方不会看到半个文件
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("failed to commit artifact %s: %w", name, err)
	}
	return nil
}

func (s *DirStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		stats.TotalObjects++
		stats.TotalSize += info.Size()
		if info.ModTime().After(stats.LastModified) {
			stats.LastModified = info.ModTime()
		}
		objects = append(objects, ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ContentTypeFor(key),
		})
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, stats, nil
}
