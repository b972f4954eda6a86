package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionPart identifies the answer-format kind of a question, following the
// paper layout the question banks are authored against.
type QuestionPart string

const (
	PartSingleChoice   QuestionPart = "A" // MCQ, single choice
	PartMultipleChoice QuestionPart = "B" // MCQ, multiple choice
	PartOtherChoice    QuestionPart = "C" // MCQ, other format
	PartFillInBlank    QuestionPart = "D" // fill in the blanks
	PartLongAnswer     QuestionPart = "E" // long answer (100-120 words)
	PartTrueFalse      QuestionPart = "F" // true/false
)

// KnownParts lists the recognized part codes in paper order.
var KnownParts = []QuestionPart{
	PartSingleChoice,
	PartMultipleChoice,
	PartOtherChoice,
	PartFillInBlank,
	PartLongAnswer,
	PartTrueFalse,
}

// IsKnown reports whether the part is one of the recognized codes. Unknown
// codes are still importable; they surface as soft warnings in the report.
func (p QuestionPart) IsKnown() bool {
	for _, known := range KnownParts {
		if p == known {
			return true
		}
	}
	return false
}

// IsChoiceBased reports whether the part expects an options list.
func (p QuestionPart) IsChoiceBased() bool {
	switch p {
	case PartSingleChoice, PartMultipleChoice, PartOtherChoice:
		return true
	}
	return false
}

// DisplayName returns the human-readable label for the part.
func (p QuestionPart) DisplayName() string {
	switch p {
	case PartSingleChoice:
		return "Part A - MCQ (Single Choice)"
	case PartMultipleChoice:
		return "Part B - MCQ (Multiple Choice)"
	case PartOtherChoice:
		return "Part C - MCQ (Other format)"
	case PartFillInBlank:
		return "Part D - Fill in the blanks"
	case PartLongAnswer:
		return "Part E - Long answer (100-120 words)"
	case PartTrueFalse:
		return "Part F - True/False"
	default:
		return string(p)
	}
}

type Question struct {
	ID   uint         `json:"id" gorm:"primaryKey"`
	Text string       `json:"text" gorm:"type:text;not null" validate:"required,min=1"`
	Part QuestionPart `json:"part" gorm:"not null;size:8;index" validate:"required"`

	// Marks defaults to 1 when the source row carries no usable value.
	Marks float64 `json:"marks" gorm:"type:decimal(5,2);default:1" validate:"gt=0"`

	// Options holds the structured choice list for choice-based parts,
	// wrapped as {"choices": [...]} when the source supplied a bare list.
	Options       datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer datatypes.JSON `json:"correct_answer,omitempty" gorm:"type:jsonb"`

	// Reference links are nullable: an unresolvable label leaves the link
	// empty and the question still imports.
	TradeID    *uint `json:"trade_id" gorm:"index"`
	LevelID    *uint `json:"level_id" gorm:"index"`
	SkillID    *uint `json:"skill_id" gorm:"index"`
	QFID       *uint `json:"qf_id" gorm:"index"`
	CategoryID *uint `json:"category_id" gorm:"index"`

	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Trade    *Trade    `json:"trade,omitempty" gorm:"foreignKey:TradeID;constraint:OnDelete:SET NULL"`
	Level    *Level    `json:"level,omitempty" gorm:"foreignKey:LevelID;constraint:OnDelete:SET NULL"`
	Skill    *Skill    `json:"skill,omitempty" gorm:"foreignKey:SkillID;constraint:OnDelete:SET NULL"`
	QF       *QF       `json:"qf,omitempty" gorm:"foreignKey:QFID;constraint:OnDelete:SET NULL"`
	Category *Category `json:"category,omitempty" gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
}

func (Question) TableName() string {
	return "questions"
}
