// Package domain defines the offer, user and comment records shared by the
// codec, the generator, the import pipeline and every storage backend.
package domain

import (
	"errors"
	"math"
	"time"
)

var (
	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// Location is a point on the map.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// User is a registered account. Offer hosts are users.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Avatar    string   `json:"avatar,omitempty"`
	Password  string   `json:"-"`
	IsPro     bool     `json:"isPro"`
	Favorites []string `json:"-"`
}

// Offer is the stored rental listing. It carries no viewer-dependent state.
type Offer struct {
	ID              string      `json:"id"`
	Title           string      `json:"title" validate:"required"`
	Description     string      `json:"description"`
	PublicationDate time.Time   `json:"publicationDate"`
	City            City        `json:"city" validate:"city"`
	Preview         string      `json:"preview"`
	Images          []string    `json:"images"`
	IsPremium       bool        `json:"isPremium"`
	Rating          float64     `json:"rating"`
	Type            HousingType `json:"type" validate:"housing"`
	Bedrooms        int         `json:"bedrooms" validate:"min=1"`
	Guests          int         `json:"guests" validate:"min=1"`
	Price           int         `json:"price" validate:"min=0"`
	Amenities       []Amenity   `json:"amenities" validate:"dive,amenity"`
	Host            User        `json:"host"`
	HostID          string      `json:"-"`
	CommentCount    int         `json:"commentCount"`
	Location        Location    `json:"location"`
}

// OfferRecord is an offer as seen by one viewer: the stored offer plus the
// derived favorite flag. It is the shape exchanged with TSV files, the
// generator and API clients.
type OfferRecord struct {
	Offer
	IsFavorite bool `json:"isFavorite"`

	// NotNumeric names the numeric columns of a decoded TSV row that held
	// no number. Such a record must not be stored.
	NotNumeric []string `json:"-"`
}

// NewOfferRecord derives the viewer-specific flag for o from favorites.
func NewOfferRecord(o Offer, favorites FavoriteSet) OfferRecord {
	return OfferRecord{Offer: o, IsFavorite: favorites.Has(o.ID)}
}

// NewOfferRecords applies NewOfferRecord to every offer in offers.
func NewOfferRecords(offers []Offer, favorites FavoriteSet) []OfferRecord {
	out := make([]OfferRecord, len(offers))
	for i, o := range offers {
		out[i] = NewOfferRecord(o, favorites)
	}
	return out
}

// Comment is a review attached to an offer.
type Comment struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	PublicationDate time.Time `json:"publicationDate"`
	Rating          int       `json:"rating"`
	AuthorID        string    `json:"-"`
	Author          User      `json:"author"`
	OfferID         string    `json:"offerId"`
}

// OfferFilter narrows FindMany queries. Zero values mean "no constraint".
type OfferFilter struct {
	Limit       int
	City        City
	PremiumOnly bool
	IDs         []string
}

// OfferPatch holds the editable fields of an offer. Nil fields are left unchanged.
type OfferPatch struct {
	Title       *string      `json:"title" validate:"omitempty,min=10,max=100"`
	Description *string      `json:"description" validate:"omitempty,min=20,max=1024"`
	City        *City        `json:"city" validate:"omitempty,city"`
	Preview     *string      `json:"preview"`
	Images      []string     `json:"images"`
	IsPremium   *bool        `json:"isPremium"`
	Type        *HousingType `json:"type" validate:"omitempty,housing"`
	Bedrooms    *int         `json:"bedrooms" validate:"omitempty,min=1,max=8"`
	Guests      *int         `json:"guests" validate:"omitempty,min=1,max=10"`
	Price       *int         `json:"price" validate:"omitempty,min=100,max=100000"`
	Amenities   []Amenity    `json:"amenities" validate:"omitempty,min=1,dive,amenity"`
	Location    *Location    `json:"location"`
}

// Apply copies every set field of p onto o.
func (p OfferPatch) Apply(o *Offer) {
	if p.Title != nil {
		o.Title = *p.Title
	}
	if p.Description != nil {
		o.Description = *p.Description
	}
	if p.City != nil {
		o.City = *p.City
	}
	if p.Preview != nil {
		o.Preview = *p.Preview
	}
	if p.Images != nil {
		o.Images = append([]string(nil), p.Images...)
	}
	if p.IsPremium != nil {
		o.IsPremium = *p.IsPremium
	}
	if p.Type != nil {
		o.Type = *p.Type
	}
	if p.Bedrooms != nil {
		o.Bedrooms = *p.Bedrooms
	}
	if p.Guests != nil {
		o.Guests = *p.Guests
	}
	if p.Price != nil {
		o.Price = *p.Price
	}
	if p.Amenities != nil {
		o.Amenities = append([]Amenity(nil), p.Amenities...)
	}
	if p.Location != nil {
		o.Location = *p.Location
	}
}

// FavoriteSet is a user's set of favorite offer ids.
type FavoriteSet map[string]struct{}

// NewFavoriteSet builds a set from ids.
func NewFavoriteSet(ids []string) FavoriteSet {
	s := make(FavoriteSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s FavoriteSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// RoundRating rounds x to one decimal place, halves away from zero.
func RoundRating(x float64) float64 {
	return math.Round(x*10) / 10
}
