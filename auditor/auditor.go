package auditor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/seo-audit/backend/cache"
	"github.com/seo-audit/backend/metrics"
	"github.com/seo-audit/backend/stats"
)

const userAgent = "SEOAudit/1.0"

// Options configures the auditor's caches and its outbound link probe
// throttle.
type Options struct {
	AuditCacheSize int
	AuditCacheTTL  time.Duration
	LinkCacheSize  int
	LinkCacheTTL   time.Duration
	LinkProbeRPS   float64
}

// CacheStats describes the state of both caches for the statistics
// endpoint.
type CacheStats struct {
	AuditEntries     int           `json:"auditEntries"`
	LinkEntries      int           `json:"linkEntries"`
	AuditCacheHits   int           `json:"auditCacheHits"`
	AuditCacheMisses int           `json:"auditCacheMisses"`
	LinkCacheHits    int           `json:"linkCacheHits"`
	LinkCacheMisses  int           `json:"linkCacheMisses"`
	AuditCacheTTL    time.Duration `json:"auditCacheTTL"`
	LinkCacheTTL     time.Duration `json:"linkCacheTTL"`
}

// Auditor fetches a page and produces an SEO report. Reports are
// memoized by canonical URL fingerprint, and per-link reachability is
// cached separately so repeated audits of linked-to pages stay cheap.
type Auditor struct {
	client *http.Client
	audits *cache.Cache[*Audit]
	links  *cache.Cache[bool]
	probe  *rate.Limiter
	stats  *stats.Storage
	logger *zap.Logger
	opts   Options
}

// New creates an Auditor. The shared transport pools connections across
// audits; link probing is throttled to opts.LinkProbeRPS outbound
// requests per second.
func New(opts Options, storage *stats.Storage, logger *zap.Logger) (*Auditor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	audits, err := cache.New[*Audit](opts.AuditCacheSize, opts.AuditCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("auditor: audit cache: %w", err)
	}
	links, err := cache.New[bool](opts.LinkCacheSize, opts.LinkCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("auditor: link cache: %w", err)
	}
	if opts.LinkProbeRPS <= 0 {
		return nil, fmt.Errorf("auditor: link probe rate must be positive, got %f", opts.LinkProbeRPS)
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Auditor{
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		audits: audits,
		links:  links,
		probe:  rate.NewLimiter(rate.Limit(opts.LinkProbeRPS), int(opts.LinkProbeRPS)+1),
		stats:  storage,
		logger: logger,
		opts:   opts,
	}, nil
}

// Audit runs a complete audit of the given URL, bounded to 30 seconds.
func (a *Auditor) Audit(rawURL string) (*Audit, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.AuditWithContext(ctx, rawURL)
}

// AuditWithContext runs a complete audit, returning the cached report
// when a fresh one exists for the canonical URL.
func (a *Auditor) AuditWithContext(ctx context.Context, rawURL string) (*Audit, error) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return nil, err
	}
	key := Fingerprint(canonical)

	if report, ok := a.audits.Get(key, time.Now()); ok {
		a.stats.IncrementAudit(1, 0)
		metrics.RecordCacheHit("audit")
		return report, nil
	}
	a.stats.IncrementAudit(0, 1)
	metrics.RecordCacheMiss("audit")

	stop := metrics.TimeAudit()
	report, err := a.run(ctx, canonical)
	stop()
	if err != nil {
		return nil, err
	}

	a.audits.Set(key, report, time.Now())
	metrics.UpdateCacheEntries("audit", a.audits.Len())
	return report, nil
}

// IsCached reports whether a fresh report exists for the URL.
func (a *Auditor) IsCached(rawURL string) bool {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return false
	}
	_, ok := a.audits.Get(Fingerprint(canonical), time.Now())
	return ok
}

// Invalidate drops any cached report for the URL.
func (a *Auditor) Invalidate(rawURL string) {
	canonical, err := Canonicalize(rawURL)
	if err != nil {
		return
	}
	a.audits.Delete(Fingerprint(canonical))
}

// GetCacheStats returns cache sizes, counters and TTLs.
func (a *Auditor) GetCacheStats() CacheStats {
	current := a.stats.GetCurrentStats()
	return CacheStats{
		AuditEntries:     a.audits.Len(),
		LinkEntries:      a.links.Len(),
		AuditCacheHits:   current.AuditCacheHits,
		AuditCacheMisses: current.AuditCacheMisses,
		LinkCacheHits:    current.LinkCacheHits,
		LinkCacheMisses:  current.LinkCacheMisses,
		AuditCacheTTL:    a.opts.AuditCacheTTL,
		LinkCacheTTL:     a.opts.LinkCacheTTL,
	}
}

// Shutdown flushes statistics and drops both caches.
func (a *Auditor) Shutdown() error {
	if a == nil {
		return nil
	}
	a.audits.Clear()
	a.links.Clear()
	if a.stats != nil {
		if err := a.stats.Shutdown(); err != nil {
			return fmt.Errorf("auditor: failed to shutdown stats storage: %w", err)
		}
	}
	return nil
}

// run fetches the page and builds the full report.
func (a *Auditor) run(ctx context.Context, canonical string) (*Audit, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, canonical, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	pageSize := 0
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.Atoi(contentLength); err == nil {
			pageSize = size
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	if pageSize == 0 {
		pageSize = buf.Len()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}

	loadTime := time.Since(startTime)

	mobileOptimized := false
	doc.Find("meta[name='viewport']").Each(func(_ int, s *goquery.Selection) {
		if content, exists := s.Attr("content"); exists &&
			strings.Contains(strings.ToLower(content), "width=device-width") {
			mobileOptimized = true
		}
	})

	report := &Audit{URL: canonical}
	report.Title = a.auditTitle(doc)
	report.Meta = a.auditMeta(doc)
	report.Headings = a.auditHeadings(doc)
	report.Content = a.auditContent(doc)
	report.Performance = a.auditPerformance(pageSize, loadTime, mobileOptimized)
	report.Links = a.auditLinks(ctx, doc, canonical)
	report.Scores = a.calculateScores(report)
	report.Issues = a.collectIssues(report)
	report.Recommendations = a.buildRecommendations(report)

	a.logger.Debug("Audit complete",
		zap.String("url", canonical),
		zap.Float64("overall", report.Scores.Overall),
		zap.Duration("took", time.Since(startTime)))

	return report, nil
}

func (a *Auditor) auditTitle(doc *goquery.Document) TitleAudit {
	title := doc.Find("title").First().Text()
	length := len(title)

	score := 0
	if length > 0 {
		if length >= 30 && length <= 60 {
			score = 100
		} else if length < 30 {
			score = 50
		} else {
			score = 70
		}
	}

	return TitleAudit{
		Title:    title,
		Length:   length,
		HasTitle: length > 0,
		Score:    score,
	}
}

func (a *Auditor) auditMeta(doc *goquery.Document) MetaAudit {
	meta := MetaAudit{}
	score := 0

	meta.Description, _ = doc.Find("meta[name='description']").Attr("content")
	meta.DescriptionLen = len(meta.Description)
	meta.HasDescription = meta.DescriptionLen > 0

	meta.Keywords, _ = doc.Find("meta[name='keywords']").Attr("content")
	meta.HasKeywords = len(meta.Keywords) > 0

	meta.Robots, _ = doc.Find("meta[name='robots']").Attr("content")
	meta.Viewport, _ = doc.Find("meta[name='viewport']").Attr("content")

	if meta.HasDescription {
		if meta.DescriptionLen >= 120 && meta.DescriptionLen <= 160 {
			score += 40
		} else {
			score += 20
		}
	}
	if meta.HasKeywords {
		score += 20
	}
	if meta.Viewport != "" {
		score += 20
	}
	if meta.Robots != "" {
		score += 20
	}

	meta.Score = score
	return meta
}

func (a *Auditor) auditHeadings(doc *goquery.Document) HeadingAudit {
	headings := HeadingAudit{}

	headings.H1Count = doc.Find("h1").Length()
	headings.H2Count = doc.Find("h2").Length()
	headings.H3Count = doc.Find("h3").Length()

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		headings.H1Text = append(headings.H1Text, strings.TrimSpace(s.Text()))
	})

	score := 0
	if headings.H1Count == 1 {
		score += 40
	} else if headings.H1Count > 1 {
		score += 20
	}
	if headings.H2Count > 0 {
		score += 30
	}
	if headings.H3Count > 0 {
		score += 30
	}

	headings.Score = score
	return headings
}

func (a *Auditor) auditContent(doc *goquery.Document) ContentAudit {
	content := ContentAudit{}

	text := doc.Find("body").Text()
	content.WordCount = len(strings.Fields(text))

	images := doc.Find("img")
	content.TotalImages = images.Length()
	content.HasImages = content.TotalImages > 0

	images.Each(func(_ int, s *goquery.Selection) {
		if _, exists := s.Attr("alt"); exists {
			content.ImagesWithAlt++
		}
	})

	score := 0
	if content.WordCount >= 300 {
		score += 30
	}
	if content.HasImages {
		score += 20
		if content.ImagesWithAlt == content.TotalImages {
			score += 30
		} else if content.ImagesWithAlt > 0 {
			score += 20
		}
	}

	content.Score = score
	return content
}

func (a *Auditor) auditPerformance(pageSize int, loadTime time.Duration, mobileOptimized bool) Performance {
	perf := Performance{
		PageSize:         pageSize,
		LoadTime:         int(loadTime.Milliseconds()),
		MobileOptimized:  mobileOptimized,
		PageSizeSeverity: "good",
		LoadTimeSeverity: "good",
	}

	score := 100

	pageSizeKB := float64(pageSize) / 1024.0
	switch {
	case pageSizeKB > 5120:
		score -= 40
		perf.PageSizeSeverity = "critical"
	case pageSizeKB > 2048:
		score -= 30
		perf.PageSizeSeverity = "major"
	case pageSizeKB > 1024:
		score -= 20
		perf.PageSizeSeverity = "moderate"
	case pageSizeKB > 500:
		score -= 10
		perf.PageSizeSeverity = "minor"
	}

	loadTimeMs := loadTime.Milliseconds()
	switch {
	case loadTimeMs > 3000:
		score -= 40
		perf.LoadTimeSeverity = "critical"
	case loadTimeMs > 2000:
		score -= 30
		perf.LoadTimeSeverity = "major"
	case loadTimeMs > 1500:
		score -= 20
		perf.LoadTimeSeverity = "moderate"
	case loadTimeMs > 1000:
		score -= 10
		perf.LoadTimeSeverity = "minor"
	}

	if !perf.MobileOptimized {
		score -= 20
	}

	perf.Score = score
	return perf
}

func (a *Auditor) auditLinks(ctx context.Context, doc *goquery.Document, baseURL string) LinkAudit {
	links := LinkAudit{}

	seen := make(map[string]bool)
	var linkURLs []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" || href == "#" {
			return
		}

		href = strings.TrimSpace(href)
		if strings.HasPrefix(href, "//") {
			href = "https:" + href
		} else if strings.HasPrefix(href, "/") {
			href = baseURL + href
		}

		if seen[href] {
			return
		}
		seen[href] = true

		if strings.HasPrefix(href, baseURL) {
			links.InternalLinks++
			linkURLs = append(linkURLs, href)
		} else if strings.HasPrefix(href, "http") {
			links.ExternalLinks++
			linkURLs = append(linkURLs, href)
		}
	})

	// Probe links with bounded parallelism on top of the global
	// outbound throttle.
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 10)
	var mu sync.Mutex

	linkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	// Snapshot the counters under the probe mutex; on the cancellation
	// paths probe goroutines may still be writing BrokenLinks.
	finish := func() LinkAudit {
		mu.Lock()
		result := links
		mu.Unlock()
		result.Score = a.scoreLinks(result)
		return result
	}

	for _, link := range linkURLs {
		select {
		case <-ctx.Done():
			return finish()
		default:
		}

		wg.Add(1)
		go func(link string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if !a.probeLink(linkCtx, link) {
				mu.Lock()
				links.BrokenLinks++
				mu.Unlock()
			}
		}(link)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	return finish()
}

func (a *Auditor) scoreLinks(links LinkAudit) int {
	score := 100

	switch {
	case links.InternalLinks == 0:
		score -= 40
	case links.InternalLinks < 3:
		score -= 30
	case links.InternalLinks < 5:
		score -= 20
	}

	switch {
	case links.ExternalLinks == 0:
		score -= 30
	case links.ExternalLinks > 50:
		score -= 15
	}

	switch {
	case links.BrokenLinks > 5:
		score -= 30
	case links.BrokenLinks > 3:
		score -= 20
	case links.BrokenLinks > 0:
		score -= 10
	}

	return score
}

// probeLink reports whether a link answers a HEAD request with a
// non-error status, consulting the link cache first.
func (a *Auditor) probeLink(ctx context.Context, link string) bool {
	key := Fingerprint(link)
	if accessible, ok := a.links.Get(key, time.Now()); ok {
		a.stats.IncrementLink(1, 0)
		metrics.RecordCacheHit("link")
		return accessible
	}
	a.stats.IncrementLink(0, 1)
	metrics.RecordCacheMiss("link")

	// The throttle keeps audits of link-heavy pages from hammering
	// third-party hosts.
	if err := a.probe.Wait(ctx); err != nil {
		return a.cacheLinkStatus(key, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return a.cacheLinkStatus(key, false)
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: a.client.Transport,
	}

	resp, err := client.Do(req)
	if err != nil {
		return a.cacheLinkStatus(key, false)
	}
	defer resp.Body.Close()

	accessible := resp.StatusCode >= 200 && resp.StatusCode < 400
	return a.cacheLinkStatus(key, accessible)
}

func (a *Auditor) cacheLinkStatus(key string, accessible bool) bool {
	a.links.Set(key, accessible, time.Now())
	metrics.UpdateCacheEntries("link", a.links.Len())
	return accessible
}

// calculateScores rolls the section scores into the technical/content/
// authority grouping the report presents, plus the weighted overall.
func (a *Auditor) calculateScores(report *Audit) Scores {
	technical := 0.6*float64(report.Performance.Score) + 0.4*float64(report.Meta.Score)
	content := 0.35*float64(report.Title.Score) +
		0.25*float64(report.Headings.Score) +
		0.4*float64(report.Content.Score)
	authority := float64(report.Links.Score)

	overall := 0.2*float64(report.Title.Score) +
		0.2*float64(report.Meta.Score) +
		0.15*float64(report.Headings.Score) +
		0.2*float64(report.Content.Score) +
		0.15*float64(report.Performance.Score) +
		0.1*float64(report.Links.Score)

	return Scores{
		Technical: technical,
		Content:   content,
		Authority: authority,
		Overall:   overall,
	}
}

func (a *Auditor) collectIssues(report *Audit) []string {
	var issues []string

	if !report.Title.HasTitle {
		issues = append(issues, "Missing title tag")
	}
	if !report.Meta.HasDescription {
		issues = append(issues, "Missing meta description")
	}
	if report.Headings.H1Count != 1 {
		issues = append(issues, fmt.Sprintf("Found %d H1 tags (should be 1)", report.Headings.H1Count))
	}
	if report.Content.WordCount < 300 {
		issues = append(issues, fmt.Sprintf("Low word count (%d)", report.Content.WordCount))
	}
	if report.Content.TotalImages > 0 && report.Content.ImagesWithAlt < report.Content.TotalImages {
		issues = append(issues, fmt.Sprintf("%d of %d images missing alt text",
			report.Content.TotalImages-report.Content.ImagesWithAlt, report.Content.TotalImages))
	}
	if report.Links.BrokenLinks > 0 {
		issues = append(issues, fmt.Sprintf("Found %d broken link(s)", report.Links.BrokenLinks))
	}
	if !report.Performance.MobileOptimized {
		issues = append(issues, "Missing viewport meta tag")
	}

	return issues
}

func (a *Auditor) buildRecommendations(report *Audit) []string {
	var recommendations []string

	if !report.Title.HasTitle {
		recommendations = append(recommendations, "Add a title tag to your page")
	} else if report.Title.Length < 30 {
		recommendations = append(recommendations, "Title tag is too short (should be 30-60 characters)")
	} else if report.Title.Length > 60 {
		recommendations = append(recommendations, "Title tag is too long (should be 30-60 characters)")
	}

	if !report.Meta.HasDescription {
		recommendations = append(recommendations, "Add a meta description")
	} else if report.Meta.DescriptionLen < 120 {
		recommendations = append(recommendations, "Meta description is too short (should be 120-160 characters)")
	} else if report.Meta.DescriptionLen > 160 {
		recommendations = append(recommendations, "Meta description is too long (should be 120-160 characters)")
	}

	if report.Headings.H1Count == 0 {
		recommendations = append(recommendations, "Add an H1 heading")
	} else if report.Headings.H1Count > 1 {
		recommendations = append(recommendations, "Multiple H1 headings found - consider using only one")
	}

	if report.Content.WordCount < 300 {
		recommendations = append(recommendations, "Add more content (aim for at least 300 words)")
	}
	if report.Content.TotalImages > 0 && report.Content.ImagesWithAlt < report.Content.TotalImages {
		recommendations = append(recommendations, "Add alt text to all images")
	}

	pageSizeKB := float64(report.Performance.PageSize) / 1024.0
	if pageSizeKB > 2048 {
		recommendations = append(recommendations,
			"Page size is very large (>2MB). Optimize images and consider lazy loading for non-critical resources")
	} else if pageSizeKB > 500 {
		recommendations = append(recommendations,
			"Page size is above optimal (>500KB). Consider basic optimization techniques")
	}

	if report.Performance.LoadTime > 2000 {
		recommendations = append(recommendations,
			"Page load time is slow (>2s). Optimize server response time and consider resource optimization")
	}

	if !report.Performance.MobileOptimized {
		recommendations = append(recommendations,
			"Add a proper viewport meta tag for mobile optimization (e.g., <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">)")
	}

	if report.Links.BrokenLinks > 0 {
		recommendations = append(recommendations,
			"Fix broken links: Found "+strconv.Itoa(report.Links.BrokenLinks)+" broken link(s)")
	}
	if report.Links.InternalLinks < 3 {
		recommendations = append(recommendations,
			"Add more internal links to improve site navigation and SEO (aim for at least 3-5)")
	}
	if report.Links.ExternalLinks == 0 {
		recommendations = append(recommendations,
			"Add relevant external links to authoritative sources to improve content credibility")
	}

	return recommendations
}
