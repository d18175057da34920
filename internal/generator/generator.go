// Package generator produces synthetic offers for fixture files by
// randomizing the fields of template offers taken from a running service.
package generator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// ImagesPerOffer is the number of gallery images of a generated offer.
const ImagesPerOffer = 6

// Ranges of the randomized numeric fields, inclusive.
const (
	MinBedrooms = 1
	MaxBedrooms = 8
	MinGuests   = 1
	MaxGuests   = 10
	MinPrice    = 100
	MaxPrice    = 100000
	MinRating   = 1.0
	MaxRating   = 5.0
)

// ErrEmptyPool is returned when there is no template offer to sample from.
var ErrEmptyPool = errors.New("generator: template pool is empty")

// Generator is not safe for concurrent use.
type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

// New returns a Generator drawing from src. A nil src selects a time-seeded
// PCG source and a nil now selects time.Now; tests pass both for
// reproducible output.
func New(src rand.Source, now func() time.Time) *Generator {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{rnd: rand.New(src), now: now}
}

// Pick returns one template uniformly at random from pool.
func (g *Generator) Pick(pool []domain.OfferRecord) (domain.OfferRecord, error) {
	if len(pool) == 0 {
		return domain.OfferRecord{}, ErrEmptyPool
	}
	return pool[g.rnd.IntN(len(pool))], nil
}

// Generate builds offer number index (1-based) from template.
//
// Title, description and the host's name, email, avatar and password are
// copied from the template. Everything else is drawn independently: city and
// housing type uniformly from their vocabularies, the three flags from fair
// coins, counts and price uniformly from their ranges, the rating uniformly
// from [1, 5] rounded to one decimal, and a non-empty amenity subset. Image
// references are derived from baseURL and index; the location is the city's
// reference point.
func (g *Generator) Generate(template domain.OfferRecord, baseURL string, index int) domain.OfferRecord {
	base := strings.TrimSuffix(baseURL, "/")
	city := pick(g.rnd, domain.Cities())
	loc, _ := domain.CityLocation(city)

	images := make([]string, ImagesPerOffer)
	for k := range images {
		images[k] = fmt.Sprintf("%s/img%d-%d.jpg", base, index, k+1)
	}

	return domain.OfferRecord{
		Offer: domain.Offer{
			Title:           template.Title,
			Description:     template.Description,
			PublicationDate: g.now(),
			City:            city,
			Preview:         fmt.Sprintf("%s/preview%d.jpg", base, index),
			Images:          images,
			IsPremium:       g.coin(),
			Rating:          domain.RoundRating(MinRating + g.rnd.Float64()*(MaxRating-MinRating)),
			Type:            pick(g.rnd, domain.HousingTypes()),
			Bedrooms:        g.between(MinBedrooms, MaxBedrooms),
			Guests:          g.between(MinGuests, MaxGuests),
			Price:           g.between(MinPrice, MaxPrice),
			Amenities:       g.amenities(),
			Host: domain.User{
				Name:     template.Host.Name,
				Email:    template.Host.Email,
				Avatar:   template.Host.Avatar,
				Password: template.Host.Password,
				IsPro:    g.coin(),
			},
			CommentCount: 0,
			Location:     loc,
		},
		IsFavorite: g.coin(),
	}
}

// Next picks a template from pool and generates offer number index from it.
func (g *Generator) Next(pool []domain.OfferRecord, baseURL string, index int) (domain.OfferRecord, error) {
	template, err := g.Pick(pool)
	if err != nil {
		return domain.OfferRecord{}, err
	}
	return g.Generate(template, baseURL, index), nil
}

// amenities returns a random non-empty subset of the vocabulary: the
// vocabulary is fully shuffled and then cut at a uniformly drawn size.
func (g *Generator) amenities() []domain.Amenity {
	vocab := domain.Amenities()
	size := g.between(1, len(vocab))
	out := make([]domain.Amenity, size)
	for i, j := range g.rnd.Perm(len(vocab))[:size] {
		out[i] = vocab[j]
	}
	return out
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rnd.IntN(hi-lo+1)
}

func (g *Generator) coin() bool {
	return g.rnd.IntN(2) == 1
}

func pick[T any](rnd *rand.Rand, values []T) T {
	return values[rnd.IntN(len(values))]
}
