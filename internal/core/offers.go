package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// Listing limits.
const (
	DefaultOfferLimit = 60
	PremiumOfferLimit = 3
	MaxOfferLimit     = 500
)

// ErrForbidden is returned when a user modifies an offer they do not host.
var ErrForbidden = errors.New("forbidden")

// CreateOfferInput is a new offer as submitted by its host.
type CreateOfferInput struct {
	Title       string             `json:"title" validate:"required,min=10,max=100"`
	Description string             `json:"description" validate:"required,min=20,max=1024"`
	City        domain.City        `json:"city" validate:"required,city"`
	Preview     string             `json:"preview" validate:"required"`
	Images      []string           `json:"images" validate:"required,min=1,dive,required"`
	IsPremium   bool               `json:"isPremium"`
	Type        domain.HousingType `json:"type" validate:"required,housing"`
	Bedrooms    int                `json:"bedrooms" validate:"required,min=1,max=8"`
	Guests      int                `json:"guests" validate:"required,min=1,max=10"`
	Price       int                `json:"price" validate:"required,min=100,max=100000"`
	Amenities   []domain.Amenity   `json:"amenities" validate:"required,min=1,dive,amenity"`
	Location    *domain.Location   `json:"location"`
}

// RegisterUserInput is a new account.
type RegisterUserInput struct {
	Name     string `json:"name" validate:"required,min=1,max=15"`
	Email    string `json:"email" validate:"required,email"`
	Avatar   string `json:"avatar"`
	Password string `json:"password" validate:"required,min=6,max=12"`
	IsPro    bool   `json:"isPro"`
}

// OfferService reads and edits offers on behalf of a viewer.
type OfferService struct {
	offers    OfferRepository
	users     UserRepository
	favorites *FavoritesService
	now       func() time.Time
}

// NewOfferService returns an OfferService.
func NewOfferService(offers OfferRepository, users UserRepository, favorites *FavoritesService) *OfferService {
	return &OfferService{offers: offers, users: users, favorites: favorites, now: time.Now}
}

// List returns up to limit offers, newest first, optionally in one city,
// with isFavorite derived for viewerID. limit <= 0 selects DefaultOfferLimit.
func (s *OfferService) List(ctx context.Context, viewerID string, city domain.City, limit int) ([]domain.OfferRecord, error) {
	if limit <= 0 {
		limit = DefaultOfferLimit
	}
	limit = min(limit, MaxOfferLimit)
	if city != "" && !city.Valid() {
		return nil, fmt.Errorf("%w: city: invalid enum value %q", ErrValidation, city)
	}
	return s.find(ctx, viewerID, domain.OfferFilter{Limit: limit, City: city})
}

// Premium returns the newest premium offers of a city.
func (s *OfferService) Premium(ctx context.Context, viewerID string, city domain.City) ([]domain.OfferRecord, error) {
	if !city.Valid() {
		return nil, fmt.Errorf("%w: city: invalid enum value %q", ErrValidation, city)
	}
	return s.find(ctx, viewerID, domain.OfferFilter{Limit: PremiumOfferLimit, City: city, PremiumOnly: true})
}

func (s *OfferService) find(ctx context.Context, viewerID string, filter domain.OfferFilter) ([]domain.OfferRecord, error) {
	offers, err := s.offers.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	favorites, err := s.favorites.Viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return domain.NewOfferRecords(offers, favorites), nil
}

// Get returns one offer as seen by viewerID.
func (s *OfferService) Get(ctx context.Context, viewerID, offerID string) (domain.OfferRecord, error) {
	o, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return domain.OfferRecord{}, fmt.Errorf("offer %s: %w", offerID, err)
	}
	favorites, err := s.favorites.Viewer(ctx, viewerID)
	if err != nil {
		return domain.OfferRecord{}, err
	}
	return domain.NewOfferRecord(o, favorites), nil
}

// Create stores a new offer hosted by hostID. It starts without comments,
// with rating 0 and published now. Without a location the city's reference
// point is used.
func (s *OfferService) Create(ctx context.Context, hostID string, in CreateOfferInput) (domain.OfferRecord, error) {
	if err := validateStruct(in); err != nil {
		return domain.OfferRecord{}, err
	}
	host, err := s.users.FindByID(ctx, hostID)
	if err != nil {
		return domain.OfferRecord{}, fmt.Errorf("host %s: %w", hostID, err)
	}

	loc, _ := domain.CityLocation(in.City)
	if in.Location != nil {
		loc = *in.Location
	}

	o, err := s.offers.Create(ctx, domain.Offer{
		Title:           in.Title,
		Description:     in.Description,
		PublicationDate: s.now(),
		City:            in.City,
		Preview:         in.Preview,
		Images:          in.Images,
		IsPremium:       in.IsPremium,
		Rating:          0,
		Type:            in.Type,
		Bedrooms:        in.Bedrooms,
		Guests:          in.Guests,
		Price:           in.Price,
		Amenities:       in.Amenities,
		Host:            host,
		HostID:          host.ID,
		CommentCount:    0,
		Location:        loc,
	})
	if err != nil {
		return domain.OfferRecord{}, fmt.Errorf("create offer: %w", err)
	}
	return domain.NewOfferRecord(o, domain.NewFavoriteSet(host.Favorites)), nil
}

// Update applies patch to an offer hosted by userID.
func (s *OfferService) Update(ctx context.Context, userID, offerID string, patch domain.OfferPatch) (domain.OfferRecord, error) {
	if err := validateStruct(patch); err != nil {
		return domain.OfferRecord{}, err
	}
	if err := s.authorize(ctx, userID, offerID); err != nil {
		return domain.OfferRecord{}, err
	}

	o, err := s.offers.Update(ctx, offerID, patch)
	if err != nil {
		return domain.OfferRecord{}, fmt.Errorf("update offer %s: %w", offerID, err)
	}
	favorites, err := s.favorites.Viewer(ctx, userID)
	if err != nil {
		return domain.OfferRecord{}, err
	}
	return domain.NewOfferRecord(o, favorites), nil
}

// Delete removes an offer hosted by userID together with its comments.
func (s *OfferService) Delete(ctx context.Context, userID, offerID string) error {
	if err := s.authorize(ctx, userID, offerID); err != nil {
		return err
	}
	if err := s.offers.Delete(ctx, offerID); err != nil {
		return fmt.Errorf("delete offer %s: %w", offerID, err)
	}
	return nil
}

func (s *OfferService) authorize(ctx context.Context, userID, offerID string) error {
	o, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return fmt.Errorf("offer %s: %w", offerID, err)
	}
	if userID == "" || o.HostID != userID {
		return ErrForbidden
	}
	return nil
}

// UserService registers and looks up users.
type UserService struct {
	users UserRepository
}

// NewUserService returns a UserService.
func NewUserService(users UserRepository) *UserService {
	return &UserService{users: users}
}

// Register creates an account. It returns domain.ErrDuplicateEmail when the
// email is taken.
func (s *UserService) Register(ctx context.Context, in RegisterUserInput) (domain.User, error) {
	if err := validateStruct(in); err != nil {
		return domain.User{}, err
	}
	u, err := s.users.Create(ctx, domain.User{
		Name:     in.Name,
		Email:    in.Email,
		Avatar:   in.Avatar,
		Password: in.Password,
		IsPro:    in.IsPro,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("register %s: %w", in.Email, err)
	}
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}
