package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/exam-portal/question-import-service/internal/models"
	"github.com/exam-portal/question-import-service/internal/repositories"
)

// refKindSpec is the per-kind lookup strategy: which table to hit and which
// name-like columns to try for a case-insensitive label match, in order.
type refKindSpec struct {
	model      func() any
	table      string
	nameFields []string
}

var refKinds = map[models.ReferenceKind]refKindSpec{
	models.RefTrade: {
		model:      func() any { return &models.Trade{} },
		table:      models.Trade{}.TableName(),
		nameFields: []string{"name", "code"},
	},
	models.RefLevel: {
		model:      func() any { return &models.Level{} },
		table:      models.Level{}.TableName(),
		nameFields: []string{"name"},
	},
	models.RefSkill: {
		model:      func() any { return &models.Skill{} },
		table:      models.Skill{}.TableName(),
		nameFields: []string{"name"},
	},
	models.RefQF: {
		model:      func() any { return &models.QF{} },
		table:      models.QF{}.TableName(),
		nameFields: []string{"name"},
	},
	models.RefCategory: {
		model:      func() any { return &models.Category{} },
		table:      models.Category{}.TableName(),
		nameFields: []string{"name"},
	},
}

type ReferencePostgreSQL struct {
	db *gorm.DB
}

func NewReferencePostgreSQL(db *gorm.DB) repositories.ReferenceRepository {
	return &ReferencePostgreSQL{db: db}
}

func (r *ReferencePostgreSQL) FindByID(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, id uint) (*uint, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return nil, err
	}

	var found uint
	result := or(tx, r.db).WithContext(ctx).
		Table(spec.table).
		Select("id").
		Where("id = ?", id).
		Scan(&found)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to find %s by id: %w", kind, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &found, nil
}

func (r *ReferencePostgreSQL) FindByLabel(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, label string) (*uint, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return nil, err
	}

	for _, field := range spec.nameFields {
		var found uint
		result := or(tx, r.db).WithContext(ctx).
			Table(spec.table).
			Select("id").
			Where(fmt.Sprintf("LOWER(%s) = LOWER(?)", field), label).
			Limit(1).
			Scan(&found)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to find %s by %s: %w", kind, field, result.Error)
		}
		if result.RowsAffected > 0 {
			return &found, nil
		}
	}
	return nil, nil
}

// Create inserts a reference entity by name. Two imports racing to create the
// same label are resolved by the unique name constraint: the losing insert is
// a no-op and the winner's row is re-queried and returned.
func (r *ReferencePostgreSQL) Create(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind, name string) (uint, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return 0, err
	}

	db := or(tx, r.db).WithContext(ctx)
	entity := newReferenceEntity(kind, name)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(entity)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create %s: %w", kind, result.Error)
	}

	if id := referenceEntityID(entity); result.RowsAffected > 0 && id != 0 {
		return id, nil
	}

	// Lost the race (or DoNothing skipped the insert): use the existing row.
	var existing uint
	lookup := db.Table(spec.table).
		Select("id").
		Where("LOWER(name) = LOWER(?)", name).
		Limit(1).
		Scan(&existing)
	if lookup.Error != nil {
		return 0, fmt.Errorf("failed to re-query %s after conflict: %w", kind, lookup.Error)
	}
	if lookup.RowsAffected == 0 {
		return 0, fmt.Errorf("%s %q neither created nor found", kind, name)
	}
	return existing, nil
}

func (r *ReferencePostgreSQL) List(ctx context.Context, tx *gorm.DB, kind models.ReferenceKind) ([]repositories.ReferenceItem, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return nil, err
	}

	columns := "id, name"
	if kind == models.RefTrade {
		columns = "id, name, code"
	}

	var items []repositories.ReferenceItem
	err = or(tx, r.db).WithContext(ctx).
		Table(spec.table).
		Select(columns).
		Order("name ASC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	return items, nil
}

func kindSpec(kind models.ReferenceKind) (refKindSpec, error) {
	spec, ok := refKinds[kind]
	if !ok {
		return refKindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return spec, nil
}

func newReferenceEntity(kind models.ReferenceKind, name string) any {
	switch kind {
	case models.RefTrade:
		return &models.Trade{Name: name}
	case models.RefLevel:
		return &models.Level{Name: name}
	case models.RefSkill:
		return &models.Skill{Name: name}
	case models.RefQF:
		return &models.QF{Name: name}
	case models.RefCategory:
		return &models.Category{Name: name}
	}
	return nil
}

func referenceEntityID(entity any) uint {
	switch e := entity.(type) {
	case *models.Trade:
		return e.ID
	case *models.Level:
		return e.ID
	case *models.Skill:
		return e.ID
	case *models.QF:
		return e.ID
	case *models.Category:
		return e.ID
	}
	return 0
}

// ErrUnknownKind helps callers distinguish a bad kind from a database error.
var ErrUnknownKind = errors.New("unknown reference kind")
