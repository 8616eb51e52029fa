package models

import "time"

type TutorialStep struct {
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	ImageURL    string `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
}

type Tutorial struct {
	TutorialID  string         `json:"tutorialid" bson:"tutorialid"`
	UserID      string         `json:"userid" bson:"userid"`
	Title       string         `json:"title" bson:"title"`
	Description string         `json:"description" bson:"description"`
	CraftType   string         `json:"craftType,omitempty" bson:"craftType,omitempty"`
	Materials   []string       `json:"materials,omitempty" bson:"materials,omitempty"`
	Steps       []TutorialStep `json:"steps" bson:"steps"`

	MediaIDs  []string `json:"mediaIds,omitempty" bson:"mediaIds,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty" bson:"imageUrls,omitempty"`
	VideoURL  string   `json:"videoUrl,omitempty" bson:"videoUrl,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// UserProgress tracks which steps of a tutorial a user has completed.
type UserProgress struct {
	UserID         string    `json:"userid" bson:"userid"`
	TutorialID     string    `json:"tutorialid" bson:"tutorialid"`
	CompletedSteps []int     `json:"completedSteps" bson:"completedSteps"`
	Completed      bool      `json:"completed" bson:"completed"`
	UpdatedAt      time.Time `json:"updatedAt" bson:"updatedAt"`
}
