package orders

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pmcell-separacao/internal/db"
)

// Dashboard clients poll stats aggressively; a short TTL cache plus
// singleflight turns a refresh storm into one aggregate query per window.
const (
	statsTTL        = 30 * time.Second
	statsWindowDays = 30
)

type statsCache struct {
	mu      sync.Mutex
	value   *db.OrderStats
	expires time.Time
	group   singleflight.Group
}

// Stats returns order and item totals plus the average separation time of
// orders completed in the last 30 days. Results may be up to 30 seconds
// stale.
func (s *Service) Stats() (*db.OrderStats, error) {
	s.stats.mu.Lock()
	if s.stats.value != nil && time.Now().Before(s.stats.expires) {
		v := s.stats.value
		s.stats.mu.Unlock()
		return v, nil
	}
	s.stats.mu.Unlock()

	v, err, _ := s.stats.group.Do("order-stats", func() (interface{}, error) {
		cutoff := time.Now().UTC().AddDate(0, 0, -statsWindowDays).Format(time.RFC3339)
		st, err := s.db.OrderStatsSince(cutoff)
		if err != nil {
			return nil, err
		}
		s.stats.mu.Lock()
		s.stats.value = st
		s.stats.expires = time.Now().Add(statsTTL)
		s.stats.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*db.OrderStats), nil
}
