package domain

import "time"

// Product limits.
const (
	MaxPrice = 99_999_999
	MaxStock = 9_999
)

// Product is a catalog entry with its reviews embedded.
type Product struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name" validate:"required,max=200"`
	Slug         string    `json:"slug" bson:"slug"`
	Price        float64   `json:"price" bson:"price" validate:"required,gt=0,lte=99999999"`
	Description  string    `json:"description" bson:"description" validate:"required"`
	Stock        int64     `json:"stock" bson:"stock" validate:"gte=0,lte=9999"`
	Category     string    `json:"category" bson:"category" validate:"required"`
	Images       []Image   `json:"images" bson:"images" validate:"dive"`
	Reviews      []Review  `json:"reviews" bson:"reviews"`
	Ratings      float64   `json:"ratings" bson:"ratings"`
	NumOfReviews int       `json:"num_of_reviews" bson:"num_of_reviews"`
	UserID       string    `json:"user_id" bson:"user_id"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	Version      int64     `json:"version" bson:"version"`
}

// InStock reports whether at least qty units are available.
func (p *Product) InStock(qty int64) bool {
	return p.Stock >= qty
}
