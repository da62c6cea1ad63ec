package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore 文件型本地缓存
// 设计说明：
// 1. 每个键对应数据目录下的一个.json文件，键名做简单的路径安全清洗
// 2. 写入采用"临时文件+rename"保证单键原子性，进程崩溃不会留下半截快照
// 3. 互斥锁串行化全部写入；读多写少且值是整集合快照，粒度足够
type FileStore struct {
	dir string
	mu  sync.Mutex
	log *zap.Logger
}

// NewFileStore 创建文件缓存，目录不存在时自动创建
func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, log: log}, nil
}

// GetItem 读取键值，文件不存在视为键不存在
func (s *FileStore) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Error("读取本地缓存失败", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return string(data), true
}

// SetItem 覆盖写入键值（失败记日志后吞掉）
func (s *FileStore) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		s.log.Error("写入本地缓存失败", zap.String("key", key), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.log.Error("提交本地缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// RemoveItem 删除键（不存在不算错误）
func (s *FileStore) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		s.log.Error("删除本地缓存失败", zap.String("key", key), zap.Error(err))
	}
}

// path 键到文件路径；替换路径分隔符防止逃出数据目录
func (s *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}
