package cache

import "sync"

// MemoryStore 内存缓存
// 用途：测试，以及显式禁用本地持久化的部署（数据只活在进程内）
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryStore 创建内存缓存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]string)}
}

func (s *MemoryStore) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStore) SetItem(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

func (s *MemoryStore) RemoveItem(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}
