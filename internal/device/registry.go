package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches the soundbar repository in memory.
//
// The cache is loaded by RefreshCache on startup and kept in step by every
// write. Values handed out are deep copies. All methods are safe for
// concurrent use.
type Registry struct {
	repo    Repository
	cache   map[string]*Soundbar
	cacheMu sync.RWMutex
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Soundbar),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all soundbars from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	soundbars, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading soundbars: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Soundbar, len(soundbars))
	for i := range soundbars {
		r.cache[soundbars[i].ID] = soundbars[i].DeepCopy()
	}

	r.logger.Info("soundbar cache refreshed", "count", len(soundbars))
	return nil
}

// RegisterSoundbar persists a soundbar's identity and endpoint after a
// successful setup. An existing record keeps its creation time.
func (r *Registry) RegisterSoundbar(ctx context.Context, s *Soundbar) error {
	if err := s.Validate(); err != nil {
		return err
	}

	r.cacheMu.RLock()
	if existing, ok := r.cache[s.ID]; ok && s.CreatedAt.IsZero() {
		s.CreatedAt = existing.CreatedAt
		if s.HealthStatus == "" {
			s.HealthStatus = existing.HealthStatus
			s.LastSeen = existing.LastSeen
		}
	}
	r.cacheMu.RUnlock()

	if err := r.repo.Upsert(ctx, s); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[s.ID] = s.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("soundbar registered",
		"id", s.ID,
		"model", s.Model,
		"family", s.Family,
		"capabilities", len(s.Capabilities),
	)
	return nil
}

// GetSoundbar returns a soundbar by ID, falling back to the repository on a
// cache miss. Returns ErrSoundbarNotFound if it does not exist.
func (r *Registry) GetSoundbar(ctx context.Context, id string) (*Soundbar, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	s, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = s.DeepCopy()
	r.cacheMu.Unlock()
	return s, nil
}

// ListSoundbars returns all soundbars ordered by name.
func (r *Registry) ListSoundbars(ctx context.Context) ([]Soundbar, error) {
	r.cacheMu.RLock()
	if len(r.cache) == 0 {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}
	soundbars := make([]Soundbar, 0, len(r.cache))
	for _, s := range r.cache {
		soundbars = append(soundbars, *s.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(soundbars, func(i, j int) bool {
		if soundbars[i].Name != soundbars[j].Name {
			return soundbars[i].Name < soundbars[j].Name
		}
		return soundbars[i].ID < soundbars[j].ID
	})
	return soundbars, nil
}

// SetHealth records a soundbar's reachability and moves LastSeen to now.
func (r *Registry) SetHealth(ctx context.Context, id string, status HealthStatus) error {
	now := r.now()
	if err := r.repo.UpdateHealth(ctx, id, status, now); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.HealthStatus = status
		updated.LastSeen = &now
		updated.UpdatedAt = now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("soundbar health updated", "id", id, "status", status)
	return nil
}

// DeleteSoundbar removes a soundbar.
func (r *Registry) DeleteSoundbar(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("soundbar deleted", "id", id)
	return nil
}

// Stats summarises the registry for health reporting.
type Stats struct {
	Total          int                  `json:"total"`
	ByHealthStatus map[HealthStatus]int `json:"by_health_status"`
}

// GetStats returns counts from the cache.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		Total:          len(r.cache),
		ByHealthStatus: make(map[HealthStatus]int),
	}
	for _, s := range r.cache {
		stats.ByHealthStatus[s.HealthStatus]++
	}
	return stats
}
