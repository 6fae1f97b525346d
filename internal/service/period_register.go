package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"titulacion/backend/internal/dto"
	"titulacion/backend/pkg/cache"
	pkgerrors "titulacion/backend/pkg/errors"
)

// activePeriodKey 持久化的最近一次活动周期名称（不属于周期作用域缓存，不被清扫）
const activePeriodKey = "periodo:activo"

// ActivePeriodSource 活动周期的权威来源
type ActivePeriodSource interface {
	ActivePeriod(ctx context.Context) (*dto.PeriodoRef, error)
}

type registerListener struct {
	id int
	fn func(active string)
}

// PeriodRegister 进程级活动周期登记处
//
//   - 活动周期的唯一可信来源，空串表示无活动周期
//   - 值发生变化时清扫两类排期的全部周期作用域缓存
//   - 变更后按注册顺序同步通知订阅者；订阅者内不可再调用 SetActive
type PeriodRegister struct {
	setMu sync.Mutex // 串行化 SetActive，保证清扫与通知顺序

	mu        sync.RWMutex
	active    string
	listeners []registerListener
	nextID    int

	source ActivePeriodSource
	cache  cache.Store
	flight singleflight.Group
	logger *zap.Logger
}

// NewPeriodRegister 创建登记处，并从缓存恢复上次记录的活动周期（重启不视为变更）
func NewPeriodRegister(ctx context.Context, source ActivePeriodSource, store cache.Store, logger *zap.Logger) *PeriodRegister {
	r := &PeriodRegister{source: source, cache: store, logger: logger}

	v, err := store.Get(ctx, activePeriodKey)
	switch {
	case err == nil:
		r.active = normalizePeriodName(v)
	case !errors.Is(err, pkgerrors.ErrCacheMiss):
		logger.Warn("读取已记录的活动周期失败", zap.Error(err))
	}

	return r
}

// Active 当前活动周期名称，无则为空串
func (r *PeriodRegister) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Subscribe 注册变更回调，返回取消订阅函数
func (r *PeriodRegister) Subscribe(fn func(active string)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, registerListener{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, l := range r.listeners {
			if l.id == id {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetActive 设置活动周期。空白输入视为无活动周期；
// 值与当前不同（含 有→无）时先清扫缓存，相同值不清扫。
func (r *PeriodRegister) SetActive(ctx context.Context, name string) {
	r.setMu.Lock()
	defer r.setMu.Unlock()

	name = normalizePeriodName(name)

	r.mu.RLock()
	prev := r.active
	r.mu.RUnlock()

	if prev != name {
		n, err := SweepCronogramaCache(ctx, r.cache)
		if err != nil {
			r.logger.Error("清扫排期缓存失败", zap.Error(err))
		}
		periodCacheSweeps.Inc()
		r.logger.Info("活动周期变更，已清扫排期缓存",
			zap.String("from", prev),
			zap.String("to", name),
			zap.Int("keys", n),
		)
		r.persist(ctx, name)
	}

	r.mu.Lock()
	r.active = name
	listeners := make([]registerListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, l := range listeners {
		l.fn(name)
	}
}

// RefreshFromRemote 向后端查询活动周期。
// 任何失败都按"无活动周期"处理（不保留旧值），错误仅供调用方记录。
// 并发调用合并为一次后端请求。查询不随调用方取消而中断（由后端超时约束），
// 调用方断开不会被当作后端失败。
func (r *PeriodRegister) RefreshFromRemote(ctx context.Context) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := r.flight.Do("active", func() (interface{}, error) {
		ref, err := r.source.ActivePeriod(flightCtx)
		if err != nil {
			r.logger.Warn("查询活动周期失败，按无活动周期处理", zap.Error(err))
			r.SetActive(flightCtx, "")
			return "", err
		}
		name := ""
		if ref != nil {
			name = ref.Nombre
		}
		r.SetActive(flightCtx, name)
		return r.Active(), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RunRefresher 按固定间隔刷新活动周期，直到 ctx 结束
func (r *PeriodRegister) RunRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RefreshFromRemote(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("定时刷新活动周期失败", zap.Error(err))
			}
		}
	}
}

func (r *PeriodRegister) persist(ctx context.Context, name string) {
	var err error
	if name == "" {
		err = r.cache.Delete(ctx, activePeriodKey)
	} else {
		err = r.cache.Set(ctx, activePeriodKey, name)
	}
	if err != nil {
		r.logger.Warn("记录活动周期失败", zap.Error(err))
	}
}

// SweepCronogramaCache 删除两类排期的全部周期作用域缓存（工作草稿、最近发布、各周期发布快照），
// 返回删除的键数量
func SweepCronogramaCache(ctx context.Context, store cache.Store) (int, error) {
	var keys []string
	for _, v := range dto.Variants() {
		ks, err := store.Keys(ctx, cronogramaKeyPrefix(v))
		if err != nil {
			return 0, err
		}
		keys = append(keys, ks...)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// normalizePeriodName 空白视为无周期，其余原样保留（按显示名称精确比较）
func normalizePeriodName(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return name
}
