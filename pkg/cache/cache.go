// Package cache 实现按规范化问题缓存已验证回答的 ResponseCache。
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"satyam-ai-go/internal/model"
	"satyam-ai-go/pkg/log"
	"satyam-ai-go/pkg/metrics"
)

// Entry 是缓存中的一条记录，序列化后与 AnswerResult 字段平铺。
type Entry struct {
	model.AnswerResult
	CachedAt *time.Time `json:"cached_at,omitempty"`
}

// Store 是缓存的持久化后端。每次操作都读入完整映射并整体写回。
type Store interface {
	Load(ctx context.Context) (map[string]Entry, error)
	Save(ctx context.Context, entries map[string]Entry) error
}

// NormalizeKey 返回缓存键：去掉首尾空白并转为小写。
func NormalizeKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// ResponseCache 缓存数据库支撑的回答。读取失败视为空缓存，写入失败只记录日志。
type ResponseCache struct {
	store    Store
	policies []Policy
	now      func() time.Time

	// 串行化本进程内的读-改-写，跨进程仍是后写覆盖。
	mu sync.Mutex
}

// New 创建缓存。未传入策略时缓存不淘汰、不过期。
func New(store Store, policies ...Policy) *ResponseCache {
	return &ResponseCache{store: store, policies: policies, now: time.Now}
}

func (c *ResponseCache) load(ctx context.Context) map[string]Entry {
	entries, err := c.store.Load(ctx)
	if err != nil {
		log.Warnf("[ResponseCache] 读取缓存失败，按空缓存处理: %v", err)
		return map[string]Entry{}
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries
}

func (c *ResponseCache) expired(e Entry, now time.Time) bool {
	for _, p := range c.policies {
		if p.Expired(e, now) {
			return true
		}
	}
	return false
}

// Get 查找 query 对应的回答，过期条目视为未命中。
func (c *ResponseCache) Get(ctx context.Context, query string) (model.AnswerResult, bool) {
	key := NormalizeKey(query)
	entry, ok := c.load(ctx)[key]
	if ok && c.expired(entry, c.now()) {
		ok = false
	}
	metrics.IncCacheLookup(ok)
	if !ok {
		return model.AnswerResult{}, false
	}
	log.Infof("[ResponseCache] 命中缓存, key: '%s'", key)
	return entry.AnswerResult, true
}

// Put 写入 query 对应的回答并整体保存。保存失败不会返回错误。
func (c *ResponseCache) Put(ctx context.Context, query string, result model.AnswerResult) {
	key := NormalizeKey(query)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entries := c.load(ctx)
	entries[key] = Entry{AnswerResult: result, CachedAt: &now}
	for _, p := range c.policies {
		p.Trim(entries, now)
	}

	if err := c.store.Save(ctx, entries); err != nil {
		log.Errorf("[ResponseCache] 保存缓存失败, key: '%s', error: %v", key, err)
		return
	}
	log.Infof("[ResponseCache] 已缓存回答, key: '%s', 当前条目数: %d", key, len(entries))
}

// Entries 返回当前全部未过期条目，供命令行查看。
func (c *ResponseCache) Entries(ctx context.Context) map[string]Entry {
	now := c.now()
	out := map[string]Entry{}
	for k, e := range c.load(ctx) {
		if !c.expired(e, now) {
			out[k] = e
		}
	}
	return out
}
