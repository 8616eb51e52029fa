package models

import "time"

// Comment is a structured comment record. Comments are addressed by their own
// id, never by position in the list.
type Comment struct {
	CommentID  string    `json:"commentid" bson:"commentid"`
	AuthorID   string    `json:"authorId" bson:"authorId"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	Content    string    `json:"content" bson:"content"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

type Post struct {
	PostID    string    `json:"postid" bson:"postid"`
	UserID    string    `json:"userid" bson:"userid"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`

	// MediaIDs holds the raw blob ids owned by this post; ImageURLs and
	// VideoURL hold the serveable /api/media/{id} references.
	MediaIDs  []string `json:"mediaIds,omitempty" bson:"mediaIds,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty" bson:"imageUrls,omitempty"`
	VideoURL  string   `json:"videoUrl,omitempty" bson:"videoUrl,omitempty"`

	Comments       []Comment         `json:"comments" bson:"comments"`
	LikedBy        []string          `json:"likedBy,omitempty" bson:"likedBy,omitempty"`
	UserReactions  map[string]string `json:"userReactions,omitempty" bson:"userReactions,omitempty"`
	ReactionCounts map[string]int    `json:"reactionCounts,omitempty" bson:"reactionCounts,omitempty"`
}

// PostResponse decorates a post with author details for feed rendering.
type PostResponse struct {
	Post               `bson:",inline"`
	UserName           string `json:"userName"`
	UserProfilePicture string `json:"userProfilePicture,omitempty"`
	LikeCount          int    `json:"likeCount"`
	IsLiked            bool   `json:"isLiked"`
}
