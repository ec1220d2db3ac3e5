package cache

import "sync/atomic"

type CacheMetrics struct {
	hits    int64
	misses  int64
	sets    int64
	deletes int64
	errors  int64
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{}
}

func (m *CacheMetrics) RecordHit()    { atomic.AddInt64(&m.hits, 1) }
func (m *CacheMetrics) RecordMiss()   { atomic.AddInt64(&m.misses, 1) }
func (m *CacheMetrics) RecordSet()    { atomic.AddInt64(&m.sets, 1) }
func (m *CacheMetrics) RecordDelete() { atomic.AddInt64(&m.deletes, 1) }
func (m *CacheMetrics) RecordError()  { atomic.AddInt64(&m.errors, 1) }

func (m *CacheMetrics) HitRate() float64 {
	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (m *CacheMetrics) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"hits":    atomic.LoadInt64(&m.hits),
		"misses":  atomic.LoadInt64(&m.misses),
		"sets":    atomic.LoadInt64(&m.sets),
		"deletes": atomic.LoadInt64(&m.deletes),
		"errors":  atomic.LoadInt64(&m.errors),
	}
}
