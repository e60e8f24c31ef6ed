package cache

import (
	"sort"
	"time"

	"satyam-ai-go/internal/config"
)

// Policy 决定条目何时过期以及写入后如何裁剪。
type Policy interface {
	Expired(e Entry, now time.Time) bool
	Trim(entries map[string]Entry, now time.Time)
}

// TTL 使早于 ttl 写入的条目过期。没有写入时间的旧条目永不过期。
type TTL time.Duration

func (t TTL) Expired(e Entry, now time.Time) bool {
	return t > 0 && e.CachedAt != nil && now.Sub(*e.CachedAt) > time.Duration(t)
}

func (t TTL) Trim(entries map[string]Entry, now time.Time) {
	for k, e := range entries {
		if t.Expired(e, now) {
			delete(entries, k)
		}
	}
}

// MaxEntries 限制条目数，超出时优先淘汰最早写入的条目。
type MaxEntries int

func (m MaxEntries) Expired(Entry, time.Time) bool { return false }

func (m MaxEntries) Trim(entries map[string]Entry, _ time.Time) {
	if m <= 0 || len(entries) <= int(m) {
		return
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := entries[keys[i]].CachedAt, entries[keys[j]].CachedAt
		switch {
		case a == nil && b == nil:
			return keys[i] < keys[j]
		case a == nil:
			return true
		case b == nil:
			return false
		case a.Equal(*b):
			return keys[i] < keys[j]
		default:
			return a.Before(*b)
		}
	})
	for _, k := range keys[:len(keys)-int(m)] {
		delete(entries, k)
	}
}

// PoliciesFromConfig 根据配置组合淘汰策略，全部为零值时返回空（不淘汰）。
func PoliciesFromConfig(cfg config.CacheConfig) []Policy {
	var policies []Policy
	if cfg.TTL > 0 {
		policies = append(policies, TTL(cfg.TTL))
	}
	if cfg.MaxEntries > 0 {
		policies = append(policies, MaxEntries(cfg.MaxEntries))
	}
	return policies
}
