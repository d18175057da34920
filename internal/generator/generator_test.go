package generator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestGenerator(seed uint64) *Generator {
	return New(rand.NewPCG(seed, seed+1), func() time.Time { return fixedNow })
}

func template() domain.OfferRecord {
	return domain.OfferRecord{
		Offer: domain.Offer{
			ID:          "tpl-1",
			Title:       "Beautiful studio in the old town",
			Description: "A quiet studio a few minutes away from the main square.",
			City:        domain.CityParis,
			Rating:      2.2,
			Host: domain.User{
				Name:     "Oliver",
				Email:    "oliver@example.com",
				Avatar:   "https://example.com/avatar.jpg",
				Password: "hunter22",
			},
			CommentCount: 12,
		},
	}
}

func TestPickEmptyPool(t *testing.T) {
	g := newTestGenerator(1)
	if _, err := g.Pick(nil); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("Pick(nil) error = %v, want ErrEmptyPool", err)
	}
	if _, err := g.Next(nil, "http://x", 1); !errors.Is(err, ErrEmptyPool) {
		t.Errorf("Next(nil) error = %v, want ErrEmptyPool", err)
	}
}

func TestPickUniform(t *testing.T) {
	g := newTestGenerator(7)
	pool := []domain.OfferRecord{
		{Offer: domain.Offer{ID: "a"}},
		{Offer: domain.Offer{ID: "b"}},
		{Offer: domain.Offer{ID: "c"}},
	}

	counts := map[string]int{}
	for i := 0; i < 3000; i++ {
		rec, err := g.Pick(pool)
		if err != nil {
			t.Fatalf("Pick: %v", err)
		}
		counts[rec.ID]++
	}
	for id, n := range counts {
		if n < 800 || n > 1200 {
			t.Errorf("template %s picked %d times out of 3000", id, n)
		}
	}
}

func TestGenerateFields(t *testing.T) {
	g := newTestGenerator(42)
	tpl := template()

	for i := 1; i <= 500; i++ {
		rec := g.Generate(tpl, "http://localhost:4000/static/", i)

		if rec.Title != tpl.Title || rec.Description != tpl.Description {
			t.Fatalf("offer %d: title/description not copied", i)
		}
		if rec.Host.Name != tpl.Host.Name || rec.Host.Email != tpl.Host.Email ||
			rec.Host.Avatar != tpl.Host.Avatar || rec.Host.Password != tpl.Host.Password {
			t.Fatalf("offer %d: host identity not copied: %+v", i, rec.Host)
		}
		if !rec.PublicationDate.Equal(fixedNow) {
			t.Fatalf("offer %d: PublicationDate = %v", i, rec.PublicationDate)
		}
		if !rec.City.Valid() || !rec.Type.Valid() {
			t.Fatalf("offer %d: invalid city %q or type %q", i, rec.City, rec.Type)
		}
		if want, _ := domain.CityLocation(rec.City); rec.Location != want {
			t.Fatalf("offer %d: location %+v does not match %s", i, rec.Location, rec.City)
		}
		if rec.Bedrooms < MinBedrooms || rec.Bedrooms > MaxBedrooms {
			t.Fatalf("offer %d: bedrooms %d out of range", i, rec.Bedrooms)
		}
		if rec.Guests < MinGuests || rec.Guests > MaxGuests {
			t.Fatalf("offer %d: guests %d out of range", i, rec.Guests)
		}
		if rec.Price < MinPrice || rec.Price > MaxPrice {
			t.Fatalf("offer %d: price %d out of range", i, rec.Price)
		}
		if rec.Rating < MinRating || rec.Rating > MaxRating || rec.Rating != domain.RoundRating(rec.Rating) {
			t.Fatalf("offer %d: rating %v not in [1,5] with one decimal", i, rec.Rating)
		}
		if rec.CommentCount != 0 {
			t.Fatalf("offer %d: CommentCount = %d", i, rec.CommentCount)
		}

		if len(rec.Amenities) == 0 {
			t.Fatalf("offer %d: empty amenities", i)
		}
		seen := map[domain.Amenity]bool{}
		for _, a := range rec.Amenities {
			if !a.Valid() || seen[a] {
				t.Fatalf("offer %d: bad amenity list %v", i, rec.Amenities)
			}
			seen[a] = true
		}

		if want := fmt.Sprintf("http://localhost:4000/static/preview%d.jpg", i); rec.Preview != want {
			t.Fatalf("Preview = %q, want %q", rec.Preview, want)
		}
		if len(rec.Images) != ImagesPerOffer {
			t.Fatalf("offer %d: %d images", i, len(rec.Images))
		}
		for k, img := range rec.Images {
			if want := fmt.Sprintf("http://localhost:4000/static/img%d-%d.jpg", i, k+1); img != want {
				t.Fatalf("image %d = %q, want %q", k, img, want)
			}
		}
	}
}

func TestGenerateDistributions(t *testing.T) {
	g := newTestGenerator(3)
	tpl := template()

	const n = 4000
	cities := map[domain.City]int{}
	sizes := map[int]int{}
	premium := 0
	var ratingSum float64
	for i := 1; i <= n; i++ {
		rec := g.Generate(tpl, "http://x", i)
		cities[rec.City]++
		sizes[len(rec.Amenities)]++
		ratingSum += rec.Rating
		if rec.IsPremium {
			premium++
		}
	}

	if len(cities) != len(domain.Cities()) {
		t.Errorf("only %d of %d cities generated", len(cities), len(domain.Cities()))
	}
	if len(sizes) != len(domain.Amenities()) {
		t.Errorf("amenity subset sizes seen: %v, want every size 1..%d", sizes, len(domain.Amenities()))
	}
	if premium < n*4/10 || premium > n*6/10 {
		t.Errorf("premium coin came up %d times out of %d", premium, n)
	}
	if mean := ratingSum / n; math.Abs(mean-3) > 0.15 {
		t.Errorf("mean rating = %.3f, want about 3", mean)
	}
}

func TestGenerateReproducible(t *testing.T) {
	pool := []domain.OfferRecord{template()}

	a, err := newTestGenerator(99).Next(pool, "http://x", 1)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	b, err := newTestGenerator(99).Next(pool, "http://x", 1)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same seed produced different offers:\n%+v\n%+v", a, b)
	}
}
