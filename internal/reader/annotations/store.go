// Package annotations keeps the client read cache of server annotations and
// mirrors it into the engine's annotation layer.
package annotations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/justyntemme/readium-t/internal/logging"
	"github.com/justyntemme/readium-t/pkg/models"
)

const (
	PageStaleTime        = 10 * time.Second
	BookStaleTime        = 20 * time.Second
	TranslationStaleTime = 20 * time.Second
	WindowRadius         = 1
)

// Backend is the annotation API
type Backend interface {
	ListAnnotations(ctx context.Context, bookID int) ([]models.Annotation, error)
	ListPageAnnotations(ctx context.Context, bookID, page int) ([]models.Annotation, error)
	CreateAnnotation(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error)
	UpdateAnnotation(ctx context.Context, cmd models.UpdateAnnotation) (*models.Annotation, error)
	DeleteAnnotation(ctx context.Context, id int) error
}

// TranslationBackend is the translation API of a book
type TranslationBackend interface {
	ListTranslations(ctx context.Context, bookID int) ([]models.Translation, error)
	CreateTranslation(ctx context.Context, cmd models.CreateTranslation) (*models.Translation, error)
}

// PageWindow returns the sorted pages around current, dropping pages <= 0
func PageWindow(current int) []int {
	if current <= 0 {
		return nil
	}
	var pages []int
	for p := current - WindowRadius; p <= current+WindowRadius; p++ {
		if p > 0 {
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)
	return pages
}

// Merge flattens per-page lists in order, keeping the first row per id
func Merge(pages [][]models.Annotation) []models.Annotation {
	seen := make(map[int]bool)
	var merged []models.Annotation
	for _, list := range pages {
		for _, a := range list {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			merged = append(merged, a)
		}
	}
	return merged
}

// Window is the merged view of the pages around the current page
type Window struct {
	Pages   []int
	Merged  []models.Annotation
	Current []models.Annotation
}

// Store caches annotation and translation queries per book. Mutations
// invalidate every cached entry of the book; rows are never patched locally.
type Store struct {
	backend Backend
	cache   *gocache.Cache
	group   singleflight.Group
	logger  *log.Logger

	pageTTL  time.Duration
	bookTTL  time.Duration
	transTTL time.Duration

	mu          sync.Mutex
	generations map[int]uint64
}

// NewStore returns a store with the default freshness windows
func NewStore(backend Backend) *Store {
	return &Store{
		backend:     backend,
		cache:       gocache.New(BookStaleTime, time.Minute),
		logger:      logging.For("reader-annotations"),
		pageTTL:     PageStaleTime,
		bookTTL:     BookStaleTime,
		transTTL:    TranslationStaleTime,
		generations: make(map[int]uint64),
	}
}

func bookPrefix(bookID int) string {
	return fmt.Sprintf("reader/annotations/%d/", bookID)
}

func bookKey(bookID int) string {
	return bookPrefix(bookID) + "all"
}

func pageKey(bookID, page int) string {
	return fmt.Sprintf("%spage/%d", bookPrefix(bookID), page)
}

func translationsKey(bookID int) string {
	return bookPrefix(bookID) + "translations"
}

// Book returns every annotation of the book
func (s *Store) Book(ctx context.Context, bookID int) ([]models.Annotation, error) {
	return load(ctx, s, bookID, bookKey(bookID), s.bookTTL, func(ctx context.Context) ([]models.Annotation, error) {
		return s.backend.ListAnnotations(ctx, bookID)
	})
}

// Page returns the annotations of one 1-based page
func (s *Store) Page(ctx context.Context, bookID, page int) ([]models.Annotation, error) {
	if page <= 0 {
		return nil, nil
	}
	return load(ctx, s, bookID, pageKey(bookID, page), s.pageTTL, func(ctx context.Context) ([]models.Annotation, error) {
		return s.backend.ListPageAnnotations(ctx, bookID, page)
	})
}

// Translations returns the translations of the book
func (s *Store) Translations(ctx context.Context, backend TranslationBackend, bookID int) ([]models.Translation, error) {
	return load(ctx, s, bookID, translationsKey(bookID), s.transTTL, func(ctx context.Context) ([]models.Translation, error) {
		return backend.ListTranslations(ctx, bookID)
	})
}

// CreateTranslation saves a translation and invalidates the book
func (s *Store) CreateTranslation(ctx context.Context, backend TranslationBackend, cmd models.CreateTranslation) (*models.Translation, error) {
	created, err := backend.CreateTranslation(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.Invalidate(cmd.BookID)
	return created, nil
}

// Window fetches the pages around current concurrently. A failed page
// contributes no rows; the first failure is returned with the partial result.
func (s *Store) Window(ctx context.Context, bookID, current int) (Window, error) {
	pages := PageWindow(current)
	results := make([][]models.Annotation, len(pages))

	var g errgroup.Group
	for i, page := range pages {
		g.Go(func() error {
			list, err := s.Page(ctx, bookID, page)
			if err != nil {
				s.logger.Warn("page annotations failed", "book", bookID, "page", page, "err", err)
				return err
			}
			results[i] = list
			return nil
		})
	}
	err := g.Wait()

	w := Window{Pages: pages, Merged: Merge(results)}
	for i, page := range pages {
		if page == current {
			w.Current = results[i]
		}
	}
	return w, err
}

// Create stores a new annotation and invalidates the book
func (s *Store) Create(ctx context.Context, cmd models.CreateAnnotation) (*models.Annotation, error) {
	created, err := s.backend.CreateAnnotation(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.Invalidate(cmd.BookID)
	return created, nil
}

// Update changes an annotation of bookID and invalidates the book
func (s *Store) Update(ctx context.Context, bookID int, cmd models.UpdateAnnotation) (*models.Annotation, error) {
	updated, err := s.backend.UpdateAnnotation(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.Invalidate(bookID)
	return updated, nil
}

// Delete removes an annotation of bookID and invalidates the book
func (s *Store) Delete(ctx context.Context, bookID, id int) error {
	if err := s.backend.DeleteAnnotation(ctx, id); err != nil {
		return err
	}
	s.Invalidate(bookID)
	return nil
}

// Invalidate drops every cached entry of the book. Fetches already in
// flight will not repopulate the cache.
func (s *Store) Invalidate(bookID int) {
	s.mu.Lock()
	s.generations[bookID]++
	s.mu.Unlock()

	prefix := bookPrefix(bookID)
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
		}
	}
	s.logger.Debug("invalidated annotations", "book", bookID)
}

func (s *Store) generation(bookID int) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[bookID]
}

// load serves key from the cache or fetches it once for all concurrent
// callers. A fetch that started before an invalidation of the book returns
// its result but does not cache it.
func load[T any](ctx context.Context, s *Store, bookID int, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if cached, ok := s.cache.Get(key); ok {
		return cached.(T), nil
	}

	gen := s.generation(bookID)
	v, err, _ := s.group.Do(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
		list, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if s.generation(bookID) == gen {
			s.cache.Set(key, list, ttl)
		}
		return list, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
