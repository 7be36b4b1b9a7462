package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/clearline-consulting/clearline/internal/identity"
)

// Registry hands out one Store per provider session token so every request of
// a browser session shares the same resolution state. Entries age out on a
// TTL; a re-created store simply re-resolves.
type Registry struct {
	provider identity.Provider
	profiles identity.ProfileStore
	logger   *slog.Logger

	mu     sync.Mutex
	stores *expirable.LRU[string, *Store]
}

// RegistryConfig collects Registry construction parameters.
type RegistryConfig struct {
	Provider identity.Provider
	Profiles identity.ProfileStore
	Logger   *slog.Logger
	// Size bounds how many browser sessions are tracked at once.
	Size int
	// TTL bounds how long a resolved state is reused before re-resolution.
	TTL time.Duration
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	size := cfg.Size
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Registry{
		provider: cfg.Provider,
		profiles: cfg.Profiles,
		logger:   cfg.Logger,
		stores:   expirable.NewLRU[string, *Store](size, nil, ttl),
	}
}

// StoreFor returns the store tracking the token, creating one and kicking off
// its first resolution if needed.
func (r *Registry) StoreFor(token string) *Store {
	r.mu.Lock()
	if st, ok := r.stores.Get(token); ok {
		r.mu.Unlock()
		return st
	}
	st := NewStore(r.provider, r.profiles, token, r.logger)
	r.stores.Add(token, st)
	r.mu.Unlock()
	// The advisory wait in the guard may give up before this finishes; the
	// result is still applied under version ordering.
	go func() {
		if err := st.CheckSession(context.Background()); err != nil && r.logger != nil {
			r.logger.Warn("background session resolution", slog.Any("error", err))
		}
	}()
	return st
}

// Resolve waits for the session state of a token within the caller's context
// deadline. An empty token resolves immediately to unauthenticated.
func (r *Registry) Resolve(ctx context.Context, token string) Snapshot {
	if token == "" {
		return Snapshot{State: StateUnauthenticated}
	}
	snap, _ := r.StoreFor(token).Wait(ctx)
	return snap
}

// Login authenticates credentials through a fresh store and begins tracking
// the issued token. The typed credential error from the provider passes
// through untouched.
func (r *Registry) Login(ctx context.Context, email, password string) (string, Snapshot, error) {
	st := NewStore(r.provider, r.profiles, "", r.logger)
	if err := st.Login(ctx, email, password); err != nil {
		return "", Snapshot{}, err
	}
	token := st.Token()
	r.stores.Add(token, st)
	return token, st.Snapshot(), nil
}

// Logout signs the token out at the provider and drops the tracked store.
func (r *Registry) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	st, ok := r.stores.Get(token)
	if !ok {
		st = NewStore(r.provider, r.profiles, token, r.logger)
	}
	err := st.Logout(ctx)
	r.stores.Remove(token)
	return err
}

// Run consumes the provider event stream and applies each event to the store
// tracking its token, until the context is cancelled. Events for tokens this
// instance never saw are ignored.
func (r *Registry) Run(ctx context.Context) error {
	events := r.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			st, tracked := r.stores.Get(ev.Token)
			if !tracked {
				continue
			}
			if err := st.Apply(ctx, ev); err != nil && r.logger != nil {
				r.logger.Warn("apply identity event",
					slog.String("kind", string(ev.Kind)), slog.Any("error", err))
			}
		}
	}
}
