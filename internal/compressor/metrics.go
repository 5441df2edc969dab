package compressor

import "sync"

// Metrics accumulates counters across every compression attempt, surfaced
// by the admin status endpoint. Ported from the teacher's tool-output pipe
// Metrics struct, trimmed to the counters this proxy's pipeline produces.
type Metrics struct {
	mu sync.RWMutex

	CacheHits       int64
	CacheMisses     int64
	CompressionOK   int64
	CompressionFail int64
	RateLimited     int64
	BytesIn         int64
	BytesOut        int64
}

// NewMetrics returns a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	m.CacheHits++
	m.mu.Unlock()
}

func (m *Metrics) RecordCacheMiss() {
	m.mu.Lock()
	m.CacheMisses++
	m.mu.Unlock()
}

func (m *Metrics) RecordSuccess(bytesIn, bytesOut int) {
	m.mu.Lock()
	m.CompressionOK++
	m.BytesIn += int64(bytesIn)
	m.BytesOut += int64(bytesOut)
	m.mu.Unlock()
}

func (m *Metrics) RecordFailure() {
	m.mu.Lock()
	m.CompressionFail++
	m.mu.Unlock()
}

func (m *Metrics) RecordRateLimited() {
	m.mu.Lock()
	m.RateLimited++
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters, safe to serialize.
type Snapshot struct {
	CacheHits       int64   `json:"cacheHits"`
	CacheMisses     int64   `json:"cacheMisses"`
	CompressionOK   int64   `json:"compressionOk"`
	CompressionFail int64   `json:"compressionFail"`
	RateLimited     int64   `json:"rateLimited"`
	BytesIn         int64   `json:"bytesIn"`
	BytesOut        int64   `json:"bytesOut"`
	BytesSaved      int64   `json:"bytesSaved"`
	CompressionRate float64 `json:"compressionRatio"`
}

// Snapshot returns a consistent, serializable copy of the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Snapshot{
		CacheHits:       m.CacheHits,
		CacheMisses:     m.CacheMisses,
		CompressionOK:   m.CompressionOK,
		CompressionFail: m.CompressionFail,
		RateLimited:     m.RateLimited,
		BytesIn:         m.BytesIn,
		BytesOut:        m.BytesOut,
		BytesSaved:      m.BytesIn - m.BytesOut,
	}
	if m.BytesIn > 0 {
		s.CompressionRate = float64(s.BytesOut) / float64(s.BytesIn)
	}
	return s
}
