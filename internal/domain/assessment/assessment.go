package assessment

import (
	"time"

	"gorm.io/datatypes"
)

// Assessment is a generated question set. Rows are written once and never updated.
type Assessment struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint           `gorm:"not null;index;column:user_id" json:"user_id"`
	ChapterName  string         `gorm:"not null;column:chapter_name" json:"chapter_name"`
	BloomFactors datatypes.JSON `gorm:"column:bloom_factors;type:jsonb" json:"bloom_factors"`
	ContentJSON  datatypes.JSON `gorm:"column:content_json;type:jsonb" json:"content_json"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (Assessment) TableName() string { return "assessments" }
