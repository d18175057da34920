package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/logging"
)

// DefaultCommentLimit is the page size of ListByOffer.
const DefaultCommentLimit = 50

// CreateCommentInput is a new comment as submitted by its author.
type CreateCommentInput struct {
	Text     string `json:"text" validate:"required,min=5,max=1024"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	AuthorID string `json:"-" validate:"required"`
	OfferID  string `json:"-" validate:"required"`
}

// CommentService creates comments and keeps the aggregates of their offer
// up to date.
type CommentService struct {
	comments CommentRepository
	offers   OfferRepository
	users    UserRepository
	now      func() time.Time
}

// NewCommentService returns a CommentService.
func NewCommentService(comments CommentRepository, offers OfferRepository, users UserRepository) *CommentService {
	return &CommentService{comments: comments, offers: offers, users: users, now: time.Now}
}

// Create stores a comment and updates its offer: the comment count is
// incremented by one and the rating is recomputed as the mean of all of the
// offer's comment ratings, rounded to one decimal (0 without comments).
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (domain.Comment, error) {
	if err := validateStruct(in); err != nil {
		return domain.Comment{}, err
	}
	if _, err := s.offers.FindByID(ctx, in.OfferID); err != nil {
		return domain.Comment{}, fmt.Errorf("offer %s: %w", in.OfferID, err)
	}
	author, err := s.users.FindByID(ctx, in.AuthorID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("author %s: %w", in.AuthorID, err)
	}

	c, err := s.comments.Create(ctx, domain.Comment{
		Text:            in.Text,
		PublicationDate: s.now(),
		Rating:          in.Rating,
		AuthorID:        author.ID,
		OfferID:         in.OfferID,
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	c.Author = author

	if err := s.offers.IncrementCommentCount(ctx, in.OfferID); err != nil {
		return c, fmt.Errorf("increment comment count: %w", err)
	}
	if err := s.RecomputeRating(ctx, in.OfferID); err != nil {
		return c, err
	}
	return c, nil
}

// RecomputeRating overwrites the offer's rating with the rounded mean of its
// comment ratings, or 0 when it has none.
func (s *CommentService) RecomputeRating(ctx context.Context, offerID string) error {
	rating, count, err := s.offers.RecomputeRating(ctx, offerID)
	if err != nil {
		return fmt.Errorf("recompute rating: %w", err)
	}

	logging.FromContext(ctx).Debug("offer rating recomputed",
		"offer_id", offerID, "comments", count, "rating", rating)
	return nil
}

// ListByOffer returns up to limit comments of the offer, newest first.
// limit <= 0 selects DefaultCommentLimit.
func (s *CommentService) ListByOffer(ctx context.Context, offerID string, limit int) ([]domain.Comment, error) {
	if limit <= 0 {
		limit = DefaultCommentLimit
	}
	if _, err := s.offers.FindByID(ctx, offerID); err != nil {
		return nil, fmt.Errorf("offer %s: %w", offerID, err)
	}
	return s.comments.FindByOffer(ctx, offerID, limit)
}
