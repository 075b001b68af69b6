package domain

// Review is a rating left by one user on one product.
type Review struct {
	ID      string `json:"id" bson:"id"`
	UserID  string `json:"user_id" bson:"user_id"`
	Name    string `json:"name" bson:"name"`
	Rating  int    `json:"rating" bson:"rating" validate:"gte=0,lte=5"`
	Comment string `json:"comment" bson:"comment" validate:"required"`
}

// ReviewSummary is the derived aggregate stored on a product.
type ReviewSummary struct {
	Ratings      float64 `json:"ratings"`
	NumOfReviews int     `json:"num_of_reviews"`
}

// Summarize computes the mean rating and count of reviews. An empty list
// yields a zero mean.
func Summarize(reviews []Review) ReviewSummary {
	if len(reviews) == 0 {
		return ReviewSummary{}
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return ReviewSummary{
		Ratings:      float64(sum) / float64(len(reviews)),
		NumOfReviews: len(reviews),
	}
}

// UpsertReview replaces the review left by r.UserID in place, keeping its id
// and position, or appends r. It reports whether r was appended.
func (p *Product) UpsertReview(r Review) bool {
	for i := range p.Reviews {
		if p.Reviews[i].UserID == r.UserID {
			p.Reviews[i].Rating = r.Rating
			p.Reviews[i].Comment = r.Comment
			p.Reviews[i].Name = r.Name
			p.recompute()
			return false
		}
	}
	p.Reviews = append(p.Reviews, r)
	p.recompute()
	return true
}

// RemoveReview drops the review with the given id. A missing id leaves the
// list unchanged; the summary is recomputed either way.
func (p *Product) RemoveReview(reviewID string) bool {
	kept := make([]Review, 0, len(p.Reviews))
	removed := false
	for _, r := range p.Reviews {
		if r.ID == reviewID {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	p.Reviews = kept
	p.recompute()
	return removed
}

// ReviewBy returns the review left by userID, if any.
func (p *Product) ReviewBy(userID string) (Review, bool) {
	for _, r := range p.Reviews {
		if r.UserID == userID {
			return r, true
		}
	}
	return Review{}, false
}

func (p *Product) recompute() {
	s := Summarize(p.Reviews)
	p.Ratings = s.Ratings
	p.NumOfReviews = s.NumOfReviews
}
