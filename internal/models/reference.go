package models

// Reference entities are the canonical lookup rows question records attach to
// by label. Names are unique; the resolver relies on that constraint to keep
// concurrent lazy creation from minting duplicates.

// ReferenceKind names one of the reference-entity tables.
type ReferenceKind string

const (
	RefTrade    ReferenceKind = "trade"
	RefLevel    ReferenceKind = "level"
	RefSkill    ReferenceKind = "skill"
	RefQF       ReferenceKind = "qf"
	RefCategory ReferenceKind = "category"
)

// ReferenceKinds lists every reference-entity kind.
var ReferenceKinds = []ReferenceKind{RefTrade, RefLevel, RefSkill, RefQF, RefCategory}

type Trade struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:80;uniqueIndex" validate:"required,max=80"`
	Code string `json:"code" gorm:"size:20;uniqueIndex" validate:"omitempty,max=20"`
}

func (Trade) TableName() string {
	return "trades"
}

type Level struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:120;uniqueIndex" validate:"required,max=120"`
}

func (Level) TableName() string {
	return "levels"
}

type Skill struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:120;uniqueIndex" validate:"required,max=120"`
}

func (Skill) TableName() string {
	return "skills"
}

// QF is a qualification-framework entry.
type QF struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:120;uniqueIndex" validate:"required,max=120"`
}

func (QF) TableName() string {
	return "qualification_frameworks"
}

type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null;size:120;uniqueIndex" validate:"required,max=120"`
}

func (Category) TableName() string {
	return "categories"
}
