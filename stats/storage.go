package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MonthlyStats holds the counters collected for one calendar month.
type MonthlyStats struct {
	AuditCacheHits   int       `json:"audit_hits"`
	AuditCacheMisses int       `json:"audit_misses"`
	LinkCacheHits    int       `json:"link_hits"`
	LinkCacheMisses  int       `json:"link_misses"`
	BlockedRequests  int       `json:"blocked_requests"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Storage persists per-month counters to disk. Writes are buffered and
// flushed by a background goroutine; the on-disk file is replaced
// atomically via a temp file rename.
type Storage struct {
	mutex       sync.RWMutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	logger      *zap.Logger
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewStorage creates a statistics store backed by dataDir/stats.json,
// loading any counters a previous run left behind.
func NewStorage(dataDir string, logger *zap.Logger) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, "stats.json"),
		logger:      logger,
		writeBuffer: make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	s.wg.Add(1)
	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

func (s *Storage) save() error {
	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	// Write-then-rename keeps the file intact if the process dies
	// mid-write.
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func (s *Storage) backgroundWriter() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
			if err := s.save(); err != nil {
				s.logger.Warn("Failed to save statistics", zap.Error(err))
			}
		case <-ticker.C:
			if err := s.save(); err != nil {
				s.logger.Warn("Failed to save statistics", zap.Error(err))
			}
		case <-s.done:
			return
		}
	}
}

func currentMonth() string {
	return time.Now().Format("2006-01")
}

// requestWrite signals the background writer; a pending request is
// collapsed into the one already queued.
func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
	}
}

func (s *Storage) increment(apply func(*MonthlyStats)) {
	month := currentMonth()

	s.mutex.Lock()
	stats, exists := s.stats[month]
	if !exists {
		stats = &MonthlyStats{}
		s.stats[month] = stats
	}
	apply(stats)
	stats.LastUpdated = time.Now()
	writeDue := time.Since(s.lastWrite) > time.Minute
	if writeDue {
		s.lastWrite = time.Now()
	}
	s.mutex.Unlock()

	if writeDue {
		s.requestWrite()
	}
}

// IncrementAudit records audit cache hits and misses.
func (s *Storage) IncrementAudit(hits, misses int) {
	s.increment(func(m *MonthlyStats) {
		m.AuditCacheHits += hits
		m.AuditCacheMisses += misses
	})
}

// IncrementLink records link cache hits and misses.
func (s *Storage) IncrementLink(hits, misses int) {
	s.increment(func(m *MonthlyStats) {
		m.LinkCacheHits += hits
		m.LinkCacheMisses += misses
	})
}

// IncrementBlocked records a rate-limited request.
func (s *Storage) IncrementBlocked() {
	s.increment(func(m *MonthlyStats) {
		m.BlockedRequests++
	})
}

// GetCurrentStats returns the counters for the current month.
func (s *Storage) GetCurrentStats() MonthlyStats {
	month := currentMonth()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[month]; exists {
		return *stats
	}
	return MonthlyStats{}
}

// GetMonthlyStats returns the counters for a specific "YYYY-MM" month.
func (s *Storage) GetMonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if stats, exists := s.stats[yearMonth]; exists {
		return *stats, true
	}
	return MonthlyStats{}, false
}

// GetAllMonths returns the months with recorded counters, newest first.
func (s *Storage) GetAllMonths() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))

	return months
}

// Cleanup drops every month except the current and previous one.
func (s *Storage) Cleanup() {
	now := time.Now()
	current := now.Format("2006-01")
	previous := now.AddDate(0, -1, 0).Format("2006-01")

	s.mutex.Lock()
	for key := range s.stats {
		if key != current && key != previous {
			delete(s.stats, key)
		}
	}
	s.mutex.Unlock()

	s.requestWrite()
	s.logger.Info("Retained statistics",
		zap.String("current", current),
		zap.String("previous", previous))
}

// Shutdown stops the background writer and flushes counters to disk.
// It is safe to call more than once.
func (s *Storage) Shutdown() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return s.save()
}
