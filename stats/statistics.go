package stats

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EnvDevMode controls whether the statistics snapshot includes the
// per-URL breakdown.
const EnvDevMode = "DEV_MODE"

// Statistics tracks request-level usage of the service: unique
// visitors, audit volume, error rate and load times. One instance is
// created at startup and shared by the request handlers.
type Statistics struct {
	UniqueVisitors map[string]time.Time `json:"uniqueVisitors"` // IP -> last visit time
	AuditRequests  int                  `json:"auditRequests"`
	ErrorCount     int                  `json:"errorCount"`
	PopularURLs    map[string]int       `json:"popularUrls"`
	AverageLoadMs  float64              `json:"averageLoadTime"`
	TotalLoadMs    float64              `json:"-"`
	RequestCount   int                  `json:"-"`
	LastPersisted  time.Time            `json:"lastPersisted"`

	filePath string
	mutex    sync.RWMutex
}

// NewStatistics creates a Statistics instance persisted to
// dataDir/statistics.json, loading any existing snapshot.
func NewStatistics(dataDir string) (*Statistics, error) {
	s := &Statistics{
		UniqueVisitors: make(map[string]time.Time),
		PopularURLs:    make(map[string]int),
		LastPersisted:  time.Now(),
		filePath:       filepath.Join(dataDir, "statistics.json"),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// TrackVisitor records a visit from the given IP.
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.UniqueVisitors[ip] = time.Now()
}

// cleanURL reduces an audited URL to scheme://host/path for popularity
// tracking; local and API URLs are filtered out.
func cleanURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}

	if strings.Contains(u.Host, "localhost") ||
		strings.Contains(u.Host, "127.0.0.1") ||
		strings.Contains(strings.ToLower(u.Path), "/api/") {
		return ""
	}

	clean := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		clean += u.Path
	}

	return strings.TrimSuffix(clean, "/")
}

// TrackAudit records one audit request and its outcome.
func (s *Statistics) TrackAudit(url string, loadTimeMs float64, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.AuditRequests++

	if cleaned := cleanURL(url); cleaned != "" {
		s.PopularURLs[cleaned]++
	}

	if hasError {
		s.ErrorCount++
	}

	s.TotalLoadMs += loadTimeMs
	s.RequestCount++
	s.AverageLoadMs = s.TotalLoadMs / float64(s.RequestCount)
}

// AuditCount returns the total number of tracked audit requests.
func (s *Statistics) AuditCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.AuditRequests
}

// GetUniqueVisitorsCount returns the visitors seen in the last 24 hours.
func (s *Statistics) GetUniqueVisitorsCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.uniqueVisitorsLocked()
}

func (s *Statistics) uniqueVisitorsLocked() int {
	count := 0
	cutoff := time.Now().Add(-24 * time.Hour)

	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}

	return count
}

// GetPopularURLs returns up to n audited URLs with their counts.
func (s *Statistics) GetPopularURLs(n int) map[string]int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.popularURLsLocked(n)
}

func (s *Statistics) popularURLsLocked(n int) map[string]int {
	result := make(map[string]int)
	count := 0

	for url, freq := range s.PopularURLs {
		if count < n {
			result[url] = freq
			count++
		}
	}

	return result
}

// GetErrorRate returns the percentage of audit requests that failed.
func (s *Statistics) GetErrorRate() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.errorRateLocked()
}

func (s *Statistics) errorRateLocked() float64 {
	if s.AuditRequests == 0 {
		return 0
	}
	return (float64(s.ErrorCount) / float64(s.AuditRequests)) * 100
}

// Save persists the statistics snapshot.
func (s *Statistics) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.LastPersisted = time.Now()

	file, err := os.Create(s.filePath)
	if err != nil {
		return fmt.Errorf("could not create statistics file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(s); err != nil {
		return fmt.Errorf("could not encode statistics: %w", err)
	}

	return nil
}

// Load reads a previously saved snapshot. A missing file is not an
// error.
func (s *Statistics) Load() error {
	file, err := os.Open(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("could not open statistics file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(s); err != nil {
		return fmt.Errorf("could not decode statistics: %w", err)
	}

	return nil
}

// Snapshot returns the statistics suitable for the /api/statistics
// response. The per-URL breakdown is only included in development mode.
func (s *Statistics) Snapshot() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snapshot := map[string]interface{}{
		"uniqueVisitors24h": s.uniqueVisitorsLocked(),
		"totalRequests":     s.AuditRequests,
		"errorRate":         s.errorRateLocked(),
		"averageLoadTime":   s.AverageLoadMs,
	}

	if os.Getenv(EnvDevMode) == "true" {
		snapshot["popularUrls"] = s.popularURLsLocked(5)
	}

	return snapshot
}
