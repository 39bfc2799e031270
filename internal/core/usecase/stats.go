package usecase

import (
	"sync"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// serviceStats keeps the rolling aggregate counters the health endpoint
// reports. Guarded by a single mutex; updated once per completed query.
type serviceStats struct {
	mu sync.Mutex

	totalQueries      uint64
	successfulQueries uint64
	failedQueries     uint64
	totalElapsed      time.Duration

	strategyUsage      map[string]uint64
	intentDistribution map[string]uint64
}

func newServiceStats() *serviceStats {
	return &serviceStats{
		strategyUsage:      make(map[string]uint64),
		intentDistribution: make(map[string]uint64),
	}
}

func (s *serviceStats) recordSuccess(strategy domain.ServiceType, queryType domain.QueryType, elapsed time.Duration, resultCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalQueries++
	if resultCount > 0 {
		s.successfulQueries++
	} else {
		s.failedQueries++
	}
	s.totalElapsed += elapsed
	s.strategyUsage[string(strategy)]++
	s.intentDistribution[string(queryType)]++
}

func (s *serviceStats) recordFailure(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalQueries++
	s.failedQueries++
	s.totalElapsed += elapsed
}

func (s *serviceStats) snapshot() (total, successful, failed uint64, avgMs float64, usage, intents map[string]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage = make(map[string]uint64, len(s.strategyUsage))
	for k, v := range s.strategyUsage {
		usage[k] = v
	}
	intents = make(map[string]uint64, len(s.intentDistribution))
	for k, v := range s.intentDistribution {
		intents[k] = v
	}
	avgMs = 0
	if s.totalQueries > 0 {
		avgMs = float64(s.totalElapsed.Microseconds()) / 1000.0 / float64(s.totalQueries)
	}
	return s.totalQueries, s.successfulQueries, s.failedQueries, avgMs, usage, intents
}
