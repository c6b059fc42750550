package scanner

import (
	"context"
	"fmt"
	"time"

	"ResearchDigest/internal/domain"
)

// Category describes a concrete endpoint provided by config (a feed, a listing page).
type Category struct {
	Name string
	URL  string
	Lang domain.Language
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Now        time.Time
	Since      time.Time
	SiteName   string
	Categories []Category
	Options    map[string]string
}

// Scanner captures a single ingestion strategy (rss, arxiv listing, github search).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Item, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds a registry holding the given scanners.
func NewRegistry(scanners ...Scanner) *Registry {
	r := &Registry{scanners: map[string]Scanner{}}
	for _, s := range scanners {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
