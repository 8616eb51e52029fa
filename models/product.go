package models

import "time"

type Product struct {
	ProductID   string   `json:"productid" bson:"productid"`
	SellerID    string   `json:"sellerId" bson:"sellerId"`
	Name        string   `json:"name" bson:"name"`
	Description string   `json:"description" bson:"description"`
	Price       float64  `json:"price" bson:"price"`
	Stock       int      `json:"stock" bson:"stock"`
	Category    string   `json:"category,omitempty" bson:"category,omitempty"`
	SubCategory string   `json:"subCategory,omitempty" bson:"subCategory,omitempty"`
	Colors      []string `json:"colors,omitempty" bson:"colors,omitempty"`

	MediaIDs  []string `json:"mediaIds,omitempty" bson:"mediaIds,omitempty"`
	ImageURLs []string `json:"imageUrls,omitempty" bson:"imageUrls,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}
