// Package content хранит редактируемое в CMS содержимое главной страницы.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/storefront/internal/model"
)

const maxSections = 20

// ErrInvalidContent возвращается при некорректном содержимом главной страницы.
var ErrInvalidContent = errors.New("invalid homepage content")

// Store описывает хранилище содержимого главной страницы.
type Store interface {
	GetHomepage(ctx context.Context) (*model.HomepageContent, error)
	SaveHomepage(ctx context.Context, c model.HomepageContent) (*model.HomepageContent, error)
}

// DefaultHomepage возвращает содержимое, которое показывается до первого сохранения в CMS.
func DefaultHomepage() model.HomepageContent {
	return model.HomepageContent{
		HeroTitle:    "Welcome to our store",
		HeroSubtitle: "Discover our latest products",
		Sections: []model.HomepageSection{
			{Key: "featured", Title: "Featured products", Visible: true},
			{Key: "new", Title: "New arrivals", Visible: true},
		},
	}
}

// Normalize проверяет содержимое и убирает лишние пробелы.
func Normalize(c *model.HomepageContent) error {
	c.HeroTitle = strings.TrimSpace(c.HeroTitle)
	c.HeroSubtitle = strings.TrimSpace(c.HeroSubtitle)
	c.HeroImage = strings.TrimSpace(c.HeroImage)
	c.Announcement = strings.TrimSpace(c.Announcement)

	if c.HeroTitle == "" {
		return fmt.Errorf("%w: hero title is required", ErrInvalidContent)
	}
	if len(c.Sections) > maxSections {
		return fmt.Errorf("%w: at most %d sections", ErrInvalidContent, maxSections)
	}

	seen := make(map[string]bool, len(c.Sections))
	for i := range c.Sections {
		s := &c.Sections[i]
		s.Key = strings.ToLower(strings.TrimSpace(s.Key))
		s.Title = strings.TrimSpace(s.Title)
		if s.Key == "" {
			return fmt.Errorf("%w: section %d has no key", ErrInvalidContent, i)
		}
		if seen[s.Key] {
			return fmt.Errorf("%w: duplicate section %q", ErrInvalidContent, s.Key)
		}
		seen[s.Key] = true
	}
	if c.Sections == nil {
		c.Sections = []model.HomepageSection{}
	}
	return nil
}

// MemoryStore хранит содержимое в памяти процесса. Используется, когда MongoDB не настроена.
type MemoryStore struct {
	mu      sync.RWMutex
	current *model.HomepageContent
	now     func() time.Time
}

// NewMemoryStore создаёт хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// GetHomepage возвращает сохранённое содержимое или содержимое по умолчанию.
func (m *MemoryStore) GetHomepage(context.Context) (*model.HomepageContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		c := DefaultHomepage()
		return &c, nil
	}
	c := clone(*m.current)
	return &c, nil
}

// SaveHomepage заменяет содержимое главной страницы.
func (m *MemoryStore) SaveHomepage(_ context.Context, c model.HomepageContent) (*model.HomepageContent, error) {
	if err := Normalize(&c); err != nil {
		return nil, err
	}
	c.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	stored := clone(c)
	m.current = &stored
	m.mu.Unlock()

	return &c, nil
}

func clone(c model.HomepageContent) model.HomepageContent {
	sections := make([]model.HomepageSection, len(c.Sections))
	for i, s := range c.Sections {
		s.ProductIDs = append([]int64(nil), s.ProductIDs...)
		sections[i] = s
	}
	c.Sections = sections
	return c
}
