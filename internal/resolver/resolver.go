// Package resolver maps free-text labels from imported records onto canonical
// reference-entity IDs, optionally creating missing entities on the fly.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/exam-portal/question-import-service/internal/cache"
	"github.com/exam-portal/question-import-service/internal/models"
)

// Store is the lookup/creation strategy behind the resolver. Implementations
// must give Create upsert semantics: a unique-name collision resolves to the
// existing row instead of failing.
type Store interface {
	FindByID(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, id uint) (*uint, error)
	FindByLabel(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, label string) (*uint, error)
	Create(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, name string) (uint, error)
}

const cacheTTL = 10 * time.Minute

// Resolver resolves labels against a Store, with an optional read-through
// cache for labels that already have a canonical row.
type Resolver struct {
	store  Store
	cache  cache.CacheService
	logger *slog.Logger
}

func New(store Store, cacheService cache.CacheService, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cacheService,
		logger: logger,
	}
}

// Resolve maps a raw label to a reference-entity ID, first match wins:
// blank labels resolve to nil, integer labels are tried as primary keys,
// then a case-insensitive match against the kind's name-like fields, then
// lazy creation when permitted. An unresolvable label is not an error; the
// caller proceeds with a null link.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, rawLabel string, createMissing bool) (*uint, error) {
	label := strings.TrimSpace(rawLabel)
	if label == "" || strings.EqualFold(label, "nan") {
		return nil, nil
	}

	// The cache only ever holds committed rows: lookups inside an open
	// transaction still consult it, but nothing observed under an
	// uncommitted tx is written back (see rememberID).
	if id, ok := r.cachedID(ctx, kind, label); ok {
		return &id, nil
	}

	if pk, err := strconv.Atoi(label); err == nil && pk > 0 {
		id, err := r.store.FindByID(ctx, tx, kind, uint(pk))
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s by id: %w", kind, err)
		}
		if id != nil {
			r.rememberID(ctx, tx, kind, label, *id)
			return id, nil
		}
	}

	id, err := r.store.FindByLabel(ctx, tx, kind, label)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s by label: %w", kind, err)
	}
	if id != nil {
		r.rememberID(ctx, tx, kind, label, *id)
		return id, nil
	}

	if createMissing {
		// Created IDs are deliberately not cached: the surrounding
		// transaction may still roll the insert back.
		created, err := r.store.Create(ctx, tx, kind, label)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s %q: %w", kind, label, err)
		}
		return &created, nil
	}

	return nil, nil
}

func cacheKey(kind models.ReferenceKind, label string) string {
	return fmt.Sprintf("ref:%s:%s", kind, strings.ToLower(label))
}

func (r *Resolver) cachedID(ctx context.Context, kind models.ReferenceKind, label string) (uint, bool) {
	if r.cache == nil {
		return 0, false
	}
	var id uint
	if err := r.cache.Get(ctx, cacheKey(kind, label), &id); err != nil {
		return 0, false
	}
	return id, true
}

func (r *Resolver) rememberID(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, label string, id uint) {
	// Rows observed under an open transaction may not be committed yet;
	// only cache resolutions made against the base connection.
	if r.cache == nil || tx != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(kind, label), id, cacheTTL); err != nil {
		r.logger.Warn("failed to cache reference id", "kind", kind, "label", label, "error", err)
	}
}
