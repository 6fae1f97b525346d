package cache

import (
	"context"
	"sort"
	"strings"
	"sync"

	pkgerrors "titulacion/backend/pkg/errors"
)

// Store 字符串键值存储（本地持久化缓存）
// 生产环境由 Redis 实现，Redis 不可用或测试时使用 Memory
type Store interface {
	// Get 读取键值，不存在时返回 pkgerrors.ErrCacheMiss
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// Keys 列出以 prefix 开头的全部键
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Memory 进程内 Store 实现
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory 创建空的内存 Store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgerrors.ErrCacheMiss
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Len 当前键数量
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
