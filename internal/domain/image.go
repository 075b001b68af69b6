package domain

// Image references an uploaded asset.
type Image struct {
	PublicID string `json:"public_id" bson:"public_id" validate:"required"`
	URL      string `json:"url" bson:"url" validate:"required"`
}
