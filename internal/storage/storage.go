package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// MaxAttempts failed scrapes make GetPending skip a link.
const MaxAttempts = 3

var ErrLinkNotFound = errors.New("link not found")

// ProductLink tracks one product URL across CLI runs.
type ProductLink struct {
	URL       string          `json:"url"`
	Status    string          `json:"status"`
	Category  string          `json:"category,omitempty"`
	Product   *models.Product `json:"product,omitempty"`
	AddedAt   time.Time       `json:"added_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Error     string          `json:"error,omitempty"`
	Attempts  int             `json:"attempts,omitempty"`
}

// LinkStorage is a JSON file of product links keyed by URL. Every mutation
// rewrites the file.
type LinkStorage struct {
	mu       sync.RWMutex
	links    map[string]*ProductLink
	filename string
}

func NewLinkStorage(filename string) (*LinkStorage, error) {
	ls := &LinkStorage{
		links:    make(map[string]*ProductLink),
		filename: filename,
	}

	if err := ls.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return ls, nil
}

// AddBatch registers urls as pending. Known URLs keep their status.
func (ls *LinkStorage) AddBatch(urls []string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := time.Now()
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := ls.links[u]; ok {
			continue
		}
		ls.links[u] = &ProductLink{
			URL:       u,
			Status:    StatusPending,
			AddedAt:   now,
			UpdatedAt: now,
		}
	}

	return ls.save()
}

func (ls *LinkStorage) Get(url string) (*ProductLink, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	link, exists := ls.links[url]
	return link, exists
}

// GetPending returns the URLs still to scrape, oldest first. Failed links
// are retried until they reach MaxAttempts.
func (ls *LinkStorage) GetPending() []string {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	var pending []*ProductLink
	for _, link := range ls.links {
		if link.Status == StatusCompleted || link.Attempts >= MaxAttempts {
			continue
		}
		pending = append(pending, link)
	}
	slices.SortFunc(pending, func(a, b *ProductLink) int {
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return strings.Compare(a.URL, b.URL)
	})

	urls := make([]string, len(pending))
	for i, link := range pending {
		urls[i] = link.URL
	}
	return urls
}

func (ls *LinkStorage) UpdateStatus(url, status string, errorMsg string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	link, exists := ls.links[url]
	if !exists {
		return fmt.Errorf("%w: %s", ErrLinkNotFound, url)
	}

	link.Status = status
	link.UpdatedAt = time.Now()
	link.Error = errorMsg
	if status == StatusFailed {
		link.Attempts++
	}

	return ls.save()
}

// Save marks the product's URL completed and keeps the enriched product.
func (ls *LinkStorage) Save(_ context.Context, product *models.Product) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	now := time.Now()
	link, exists := ls.links[product.URL]
	if !exists {
		link = &ProductLink{URL: product.URL, AddedAt: now}
		ls.links[product.URL] = link
	}
	link.Status = StatusCompleted
	link.Category = product.Category
	link.Product = product
	link.Error = ""
	link.UpdatedAt = now

	return ls.save()
}

func (ls *LinkStorage) GetStats() map[string]int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	stats := make(map[string]int)
	for _, link := range ls.links {
		stats[link.Status]++
	}
	stats["total"] = len(ls.links)
	for _, link := range ls.links {
		if link.Status == StatusFailed && link.Attempts >= MaxAttempts {
			stats["abandoned"]++
		}
	}
	return stats
}

func (ls *LinkStorage) save() error {
	data, err := json.MarshalIndent(ls.links, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	// Write to temp file first for atomicity
	tmpFile := ls.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpFile, err)
	}

	return os.Rename(tmpFile, ls.filename)
}

func (ls *LinkStorage) Load() error {
	data, err := os.ReadFile(ls.filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &ls.links); err != nil {
		return fmt.Errorf("failed to decode %s: %w", ls.filename, err)
	}
	return nil
}
