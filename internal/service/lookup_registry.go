package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"procureflow.io/procureflow/internal/domain"
	apperrors "procureflow.io/procureflow/internal/pkg/errors"
	"procureflow.io/procureflow/internal/repository"
)

// LookupRegistry resolves coded enumerations by (type_code, code) among
// active rows. Status and purchase-type resolution sits on every request
// path, so reads go through an in-process cache that is flushed on any
// registry write.
type LookupRegistry struct {
	store repository.Store
	ids   domain.IDGenerator
	clock domain.Clock

	mu    sync.RWMutex
	cache map[string]domain.Lookup
}

// NewLookupRegistry creates a LookupRegistry over the store.
func NewLookupRegistry(store repository.Store, ids domain.IDGenerator, clock domain.Clock) *LookupRegistry {
	return &LookupRegistry{
		store: store,
		ids:   ids,
		clock: clock,
		cache: make(map[string]domain.Lookup),
	}
}

func lookupKey(typeCode, code string) string {
	return typeCode + "/" + code
}

// Resolve returns the active lookup for (type_code, code).
func (r *LookupRegistry) Resolve(ctx context.Context, typeCode, code string) (*domain.Lookup, error) {
	r.mu.RLock()
	cached, hit := r.cache[lookupKey(typeCode, code)]
	r.mu.RUnlock()
	if hit {
		return &cached, nil
	}

	l, err := r.store.Lookups().Resolve(ctx, typeCode, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrLookupNotFound(typeCode, code)
		}
		return nil, fmt.Errorf("resolve lookup %s/%s: %w", typeCode, code, err)
	}

	r.mu.Lock()
	r.cache[lookupKey(typeCode, code)] = *l
	r.mu.Unlock()
	return l, nil
}

// ResolveRole returns the active COMPANY_ROLE lookup for the role code.
func (r *LookupRegistry) ResolveRole(ctx context.Context, roleCode string) (*domain.Lookup, error) {
	return r.Resolve(ctx, domain.LookupTypeCompanyRole, roleCode)
}

// GetByID returns the lookup row regardless of its active flag.
func (r *LookupRegistry) GetByID(ctx context.Context, id string) (*domain.Lookup, error) {
	l, err := r.store.Lookups().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrLookupNotFound("", id)
		}
		return nil, fmt.Errorf("get lookup %s: %w", id, err)
	}
	return l, nil
}

// ListByType returns the active lookups of one type, ordered by code.
func (r *LookupRegistry) ListByType(ctx context.Context, typeCode string) ([]*domain.Lookup, error) {
	rows, err := r.store.Lookups().ListByType(ctx, typeCode)
	if err != nil {
		return nil, fmt.Errorf("list lookups of type %s: %w", typeCode, err)
	}
	return rows, nil
}

// Register creates a new lookup row and flushes the cache.
func (r *LookupRegistry) Register(ctx context.Context, typeCode, code, title string) (*domain.Lookup, error) {
	now := r.clock.Now()
	l := &domain.Lookup{
		ID:        r.ids.NewID(),
		TypeCode:  typeCode,
		Code:      code,
		Title:     title,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.store.Lookups().Create(ctx, l); err != nil {
		return nil, fmt.Errorf("register lookup %s/%s: %w", typeCode, code, err)
	}
	r.flush()
	return l, nil
}

// SetActive toggles a lookup's active flag and flushes the cache.
func (r *LookupRegistry) SetActive(ctx context.Context, id string, active bool) error {
	if err := r.store.Lookups().SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrLookupNotFound("", id)
		}
		return fmt.Errorf("set lookup %s active=%t: %w", id, active, err)
	}
	r.flush()
	return nil
}

func (r *LookupRegistry) flush() {
	r.mu.Lock()
	r.cache = make(map[string]domain.Lookup)
	r.mu.Unlock()
}
