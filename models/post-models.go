package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is one uploaded meal photo. HealthScore and ScoringDetails stay null
// until the scoring function writes them; re-scoring overwrites (last write
// wins, duplicate triggers are not deduplicated).
type Post struct {
	ID             string         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uint           `json:"user_id" gorm:"not null;index"`
	ImageURL       string         `json:"image_url" gorm:"not null"`
	ImagePath      string         `json:"image_path" gorm:"not null"`
	HealthScore    *int           `json:"health_score"`
	ScoringDetails datatypes.JSON `json:"scoring_details"`
	CreatedAt      time.Time      `json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ScoringDetails is the JSON blob persisted next to the health score.
type ScoringDetails struct {
	Reasoning    string `json:"reasoning"`
	Confidence   int    `json:"confidence"`
	Model        string `json:"model"`
	AnalysisTime int64  `json:"analysis_time"`
	ScoredAt     string `json:"scored_at"`
}

// ScoreResult is the transient outcome of one food analysis.
type ScoreResult struct {
	Score        int    `json:"score"`
	Reasoning    string `json:"reasoning"`
	Confidence   int    `json:"confidence"`
	Model        string `json:"model"`
	AnalysisTime int64  `json:"analysis_time"`
}
