package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestFileStore 测试文件缓存的读写与重开持久性
func TestFileStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	t.Run("不存在的键", func(t *testing.T) {
		_, ok := s.GetItem("products")
		assert.False(t, ok)
	})

	t.Run("写入后可读回", func(t *testing.T) {
		s.SetItem("products", `[{"id":"1"}]`)
		v, ok := s.GetItem("products")
		require.True(t, ok)
		assert.Equal(t, `[{"id":"1"}]`, v)
	})

	t.Run("覆盖写入", func(t *testing.T) {
		s.SetItem("products", `[]`)
		v, _ := s.GetItem("products")
		assert.Equal(t, `[]`, v)
	})

	t.Run("重开后数据仍在", func(t *testing.T) {
		s2, err := NewFileStore(dir, zap.NewNop())
		require.NoError(t, err)
		v, ok := s2.GetItem("products")
		require.True(t, ok)
		assert.Equal(t, `[]`, v)
	})

	t.Run("删除键", func(t *testing.T) {
		s.RemoveItem("products")
		_, ok := s.GetItem("products")
		assert.False(t, ok)
		// 删除不存在的键不报错
		s.RemoveItem("products")
	})

	t.Run("键名路径清洗", func(t *testing.T) {
		s.SetItem("../escape", "x")
		v, ok := s.GetItem("../escape")
		require.True(t, ok)
		assert.Equal(t, "x", v)
	})
}
