package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrPageNotFound      = errors.New("page not found")
	ErrPageAlreadyExists = errors.New("page already exists")
	ErrInvalidPageID     = errors.New("invalid page ID")
)

// View names used in change notifications.
const (
	ViewPrediction = "prediction"
	ViewHistory    = "history"
)

var pageIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ChangeHook observes view changes. snapshot is a PredictionSnapshot or a
// HistorySnapshot depending on view.
type ChangeHook func(pageID, view string, snapshot any)

// Page is one consumer's pair of views.
type Page struct {
	ID         string
	Prediction *PredictionView
	History    *HistoryView
	CreatedAt  time.Time

	lastAccessedAt time.Time
}

// PageInfo summarizes a page for listings.
type PageInfo struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Predicting     bool      `json:"predicting"`
	HistoryOpen    bool      `json:"history_open"`
}

// Manager handles page lifecycle.
type Manager struct {
	deps   Deps
	hook   ChangeHook
	logger *zap.Logger

	pages map[string]*Page
	mu    sync.RWMutex
}

// NewManager creates a page manager whose views share deps.
func NewManager(deps Deps) *Manager {
	deps = deps.withDefaults()
	return &Manager{
		deps:   deps,
		logger: deps.Logger.Named("pages"),
		pages:  make(map[string]*Page),
	}
}

// OnChange installs a hook called after any view of any page changes.
func (m *Manager) OnChange(hook ChangeHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Create creates a page. An empty id is replaced by a random 4-character one.
func (m *Manager) Create(id string) (*Page, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		id = m.generatePageID()
	} else if !pageIDPattern.MatchString(id) {
		return nil, ErrInvalidPageID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.pages[id]; exists {
		return nil, ErrPageAlreadyExists
	}

	now := time.Now()
	page := &Page{ID: id, CreatedAt: now, lastAccessedAt: now}
	page.Prediction = NewPredictionView(m.deps, func() {
		m.notify(id, ViewPrediction, page.Prediction.Snapshot())
	})
	page.History = NewHistoryView(m.deps, func() {
		m.notify(id, ViewHistory, page.History.Snapshot())
	})
	m.pages[id] = page
	m.deps.Metrics.Pages(len(m.pages))

	m.logger.Debug("page created", zap.String("page_id", id))
	return page, nil
}

// Get retrieves a page by ID (case-insensitive) and marks it accessed.
func (m *Manager) Get(id string) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, exists := m.pages[strings.ToLower(id)]
	if !exists {
		return nil, ErrPageNotFound
	}
	page.lastAccessedAt = time.Now()
	return page, nil
}

// GetOrCreate gets an existing page or creates a new one.
func (m *Manager) GetOrCreate(id string) (*Page, error) {
	page, err := m.Get(id)
	if err == nil {
		return page, nil
	}
	if errors.Is(err, ErrPageNotFound) {
		page, err = m.Create(id)
		if errors.Is(err, ErrPageAlreadyExists) {
			return m.Get(id)
		}
		return page, err
	}
	return nil, err
}

// List returns every page ordered by creation time.
func (m *Manager) List() []PageInfo {
	m.mu.RLock()
	pages := make([]*Page, 0, len(m.pages))
	infos := make([]PageInfo, 0, len(m.pages))
	for _, page := range m.pages {
		pages = append(pages, page)
		infos = append(infos, PageInfo{
			ID:             page.ID,
			CreatedAt:      page.CreatedAt,
			LastAccessedAt: page.lastAccessedAt,
		})
	}
	m.mu.RUnlock()

	for i, page := range pages {
		infos[i].Predicting = page.Prediction.Loading()
		infos[i].HistoryOpen = page.History.Snapshot().Open
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Delete removes a page and releases its views.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	page, exists := m.pages[strings.ToLower(id)]
	if exists {
		delete(m.pages, page.ID)
		m.deps.Metrics.Pages(len(m.pages))
	}
	m.mu.Unlock()

	if !exists {
		return ErrPageNotFound
	}
	m.release(page)
	return nil
}

// CleanupExpired removes pages that haven't been accessed within maxAge.
func (m *Manager) CleanupExpired(maxAge time.Duration) int {
	m.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	var expired []*Page
	for id, page := range m.pages {
		if page.lastAccessedAt.Before(cutoff) {
			delete(m.pages, id)
			expired = append(expired, page)
		}
	}
	m.deps.Metrics.Pages(len(m.pages))
	m.mu.Unlock()

	for _, page := range expired {
		m.release(page)
	}
	if len(expired) > 0 {
		m.logger.Info("expired pages removed", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Count returns the number of pages.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}

// Close releases every page.
func (m *Manager) Close() {
	m.mu.Lock()
	pages := m.pages
	m.pages = make(map[string]*Page)
	m.deps.Metrics.Pages(0)
	m.mu.Unlock()

	for _, page := range pages {
		m.release(page)
	}
}

func (m *Manager) release(page *Page) {
	page.Prediction.Release()
	page.History.Close()
	m.logger.Debug("page released", zap.String("page_id", page.ID))
}

func (m *Manager) notify(pageID, view string, snapshot any) {
	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()
	if hook != nil {
		hook(pageID, view, snapshot)
	}
}

// generatePageID generates a random 4-character page ID
func (m *Manager) generatePageID() string {
	for {
		bytes := make([]byte, 2)
		rand.Read(bytes)
		id := hex.EncodeToString(bytes)

		m.mu.RLock()
		_, taken := m.pages[id]
		m.mu.RUnlock()
		if !taken {
			return id
		}
	}
}
