package models

import "time"

type Message struct {
	MessageID  string `json:"messageid" bson:"messageid"`
	SenderID   string `json:"senderId" bson:"senderId"`
	ReceiverID string `json:"receiverId" bson:"receiverId"`
	// ProductID links a buyer inquiry to the product it is about.
	ProductID string    `json:"productId,omitempty" bson:"productId,omitempty"`
	Content   string    `json:"content" bson:"content"`
	MediaURL  string    `json:"mediaUrl,omitempty" bson:"mediaUrl,omitempty"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Notification struct {
	NotificationID string    `json:"notificationid" bson:"notificationid"`
	UserID         string    `json:"userid" bson:"userid"`
	Type           string    `json:"type" bson:"type"`
	Message        string    `json:"message" bson:"message"`
	RelatedID      string    `json:"relatedId,omitempty" bson:"relatedId,omitempty"`
	Read           bool      `json:"read" bson:"read"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}
