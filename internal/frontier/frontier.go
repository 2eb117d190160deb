package frontier

import (
	"sync"
	"time"

	"github.com/deidaraiorek/deisearch/internal/parser"
)

// Frontier is the single source of truth for which urls a crawl has visited.
// It also collects the next breadth-first level and spaces out requests to
// the same domain.
type Frontier struct {
	mu            sync.Mutex
	visited       map[string]bool
	queued        map[string]bool
	next          []string
	lastCrawlTime map[string]time.Time
	rateLimit     time.Duration
}

func New(rateLimit time.Duration) *Frontier {
	return &Frontier{
		visited:       make(map[string]bool),
		queued:        make(map[string]bool),
		lastCrawlTime: make(map[string]time.Time),
		rateLimit:     rateLimit,
	}
}

// Claim marks url visited. Only the first caller for a url gets true.
func (f *Frontier) Claim(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[url] {
		return false
	}
	f.visited[url] = true
	return true
}

// Add queues url for the next level unless it was visited or already queued.
func (f *Frontier) Add(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[url] || f.queued[url] {
		return false
	}
	f.queued[url] = true
	f.next = append(f.next, url)
	return true
}

// AddAll adds every url and reports how many were newly queued.
func (f *Frontier) AddAll(urls []string) int {
	added := 0
	for _, url := range urls {
		if f.Add(url) {
			added++
		}
	}
	return added
}

// Advance returns the queued level in discovery order and starts a new one.
// Urls visited after being queued are dropped.
func (f *Frontier) Advance() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	level := make([]string, 0, len(f.next))
	for _, url := range f.next {
		if !f.visited[url] {
			level = append(level, url)
		}
	}
	f.next = nil
	f.queued = make(map[string]bool)
	return level
}

// Size is the number of urls queued for the next level.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.next)
}

// Reserve books the next request slot for url's domain and returns how long
// the caller must wait before fetching.
func (f *Frontier) Reserve(url string) time.Duration {
	if f.rateLimit <= 0 {
		return 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	domain := parser.ExtractDomain(url)
	now := time.Now()

	availableAt := now
	if lastScheduled, exists := f.lastCrawlTime[domain]; exists && lastScheduled.After(now) {
		availableAt = lastScheduled
	}
	f.lastCrawlTime[domain] = availableAt.Add(f.rateLimit)

	return availableAt.Sub(now)
}
