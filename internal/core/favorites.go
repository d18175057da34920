package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// FavoritesService manages users' favorite offer sets.
type FavoritesService struct {
	users  UserRepository
	offers OfferRepository
}

// NewFavoritesService returns a FavoritesService.
func NewFavoritesService(users UserRepository, offers OfferRepository) *FavoritesService {
	return &FavoritesService{users: users, offers: offers}
}

// Add puts offerID into the user's favorites and returns the resulting set.
// Adding an offer twice changes nothing. For an unknown user Add does
// nothing and returns an empty set without error.
func (s *FavoritesService) Add(ctx context.Context, offerID, userID string) (domain.FavoriteSet, error) {
	favorites, err := s.update(userID, func() ([]string, error) {
		return s.users.AddFavorite(ctx, userID, offerID)
	})
	if err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}
	return favorites, nil
}

// Remove takes offerID out of the user's favorites and returns the
// resulting set. Removing an absent offer changes nothing. For an unknown
// user Remove does nothing and returns an empty set without error.
func (s *FavoritesService) Remove(ctx context.Context, offerID, userID string) (domain.FavoriteSet, error) {
	favorites, err := s.update(userID, func() ([]string, error) {
		return s.users.RemoveFavorite(ctx, userID, offerID)
	})
	if err != nil {
		return nil, fmt.Errorf("remove favorite: %w", err)
	}
	return favorites, nil
}

func (s *FavoritesService) update(userID string, op func() ([]string, error)) (domain.FavoriteSet, error) {
	if userID == "" {
		return domain.FavoriteSet{}, nil
	}
	favorites, err := op()
	if errors.Is(err, domain.ErrNotFound) {
		return domain.FavoriteSet{}, nil
	}
	if err != nil {
		return nil, err
	}
	return domain.NewFavoriteSet(favorites), nil
}

// Viewer returns the favorites of userID. Anonymous and unknown viewers
// have an empty set.
func (s *FavoritesService) Viewer(ctx context.Context, userID string) (domain.FavoriteSet, error) {
	u, found, err := s.findUser(ctx, userID)
	if err != nil || !found {
		return domain.FavoriteSet{}, err
	}
	return domain.NewFavoriteSet(u.Favorites), nil
}

// List returns the user's favorite offers, all flagged as favorite.
// Favorites whose offer no longer exists are left out.
func (s *FavoritesService) List(ctx context.Context, userID string) ([]domain.OfferRecord, error) {
	u, found, err := s.findUser(ctx, userID)
	if err != nil || !found || len(u.Favorites) == 0 {
		return []domain.OfferRecord{}, err
	}

	offers, err := s.offers.FindMany(ctx, domain.OfferFilter{IDs: u.Favorites})
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return domain.NewOfferRecords(offers, domain.NewFavoriteSet(u.Favorites)), nil
}

func (s *FavoritesService) findUser(ctx context.Context, userID string) (domain.User, bool, error) {
	if userID == "" {
		return domain.User{}, false, nil
	}
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, fmt.Errorf("find user %s: %w", userID, err)
	}
	return u, true, nil
}
