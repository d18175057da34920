package core

import (
	"context"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// UserRepository stores users. Email is unique: Create returns
// domain.ErrDuplicateEmail when it is already taken.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByEmail(ctx context.Context, email string) (domain.User, error)
	Create(ctx context.Context, u domain.User) (domain.User, error)
	// AddFavorite and RemoveFavorite change one entry of the user's
	// favorites atomically and return the resulting list.
	AddFavorite(ctx context.Context, userID, offerID string) ([]string, error)
	RemoveFavorite(ctx context.Context, userID, offerID string) ([]string, error)
}

// OfferRepository stores offers. Returned offers have Host populated.
// FindMany orders by publication date, newest first.
type OfferRepository interface {
	FindByID(ctx context.Context, id string) (domain.Offer, error)
	FindMany(ctx context.Context, filter domain.OfferFilter) ([]domain.Offer, error)
	Create(ctx context.Context, o domain.Offer) (domain.Offer, error)
	Update(ctx context.Context, id string, patch domain.OfferPatch) (domain.Offer, error)
	// Delete removes the offer and its comments.
	Delete(ctx context.Context, id string) error
	IncrementCommentCount(ctx context.Context, id string) error
	// RecomputeRating sets the rating to the mean of the offer's comment
	// ratings rounded to one decimal, or 0 without comments, as one step
	// against concurrent comment creation. It returns the stored rating and
	// the number of comments it was computed from.
	RecomputeRating(ctx context.Context, id string) (rating float64, comments int, err error)
}

// CommentRepository stores comments. FindByOffer orders newest first and
// populates Author.
type CommentRepository interface {
	Create(ctx context.Context, c domain.Comment) (domain.Comment, error)
	FindByOffer(ctx context.Context, offerID string, limit int) ([]domain.Comment, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Users() UserRepository
	Offers() OfferRepository
	Comments() CommentRepository
	Close(ctx context.Context) error
}
