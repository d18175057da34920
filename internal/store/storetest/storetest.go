// Package storetest runs the same behavioral checks against every
// core.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
)

// Run exercises s. Each subtest uses fresh emails so a shared database can
// be reused between runs.
func Run(t *testing.T, s core.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("offers", func(t *testing.T) { testOffers(t, s) })
	t.Run("comments", func(t *testing.T) { testComments(t, s) })
	t.Run("concurrent host creation", func(t *testing.T) { testConcurrentCreate(t, s) })
	t.Run("unknown ids", func(t *testing.T) { testUnknownIDs(t, s) })
}

func email(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}

func newOffer(hostID string, city domain.City, premium bool, published time.Time) domain.Offer {
	return domain.Offer{
		Title:           "Room with a view of the river",
		Description:     "Simple room in a quiet street close to the station.",
		PublicationDate: published,
		City:            city,
		Preview:         "https://img.example.com/p.jpg",
		Images:          []string{"https://img.example.com/1.jpg"},
		IsPremium:       premium,
		Type:            domain.HousingRoom,
		Bedrooms:        1,
		Guests:          2,
		Price:           300,
		Amenities:       []domain.Amenity{domain.AmenityFridge, domain.AmenityWasher},
		HostID:          hostID,
		Location:        domain.Location{Latitude: 50.938361, Longitude: 6.959974},
	}
}

func testUsers(t *testing.T, s core.Store) {
	ctx := context.Background()
	addr := email("user")

	u, err := s.Users().Create(ctx, domain.User{Name: "Ann", Email: addr, Password: "secret1", IsPro: true})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if u.ID == "" || u.Email != addr || !u.IsPro {
		t.Errorf("Create() = %+v", u)
	}
	if _, err := s.Users().Create(ctx, domain.User{Name: "Bob", Email: addr}); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Errorf("Create(duplicate) error = %v, want ErrDuplicateEmail", err)
	}

	byEmail, err := s.Users().FindByEmail(ctx, addr)
	if err != nil || byEmail.ID != u.ID {
		t.Errorf("FindByEmail() = %+v, %v", byEmail, err)
	}
	if _, err := s.Users().FindByEmail(ctx, email("missing")); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("FindByEmail(missing) error = %v, want ErrNotFound", err)
	}

	favs := []string{uuid.NewString(), uuid.NewString()}
	for _, f := range append(favs, favs[0]) {
		if _, err := s.Users().AddFavorite(ctx, u.ID, f); err != nil {
			t.Fatalf("AddFavorite() error = %v", err)
		}
	}
	byID, err := s.Users().FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if len(byID.Favorites) != 2 || byID.Favorites[0] != favs[0] {
		t.Errorf("Favorites = %v, want %v", byID.Favorites, favs)
	}
	left, err := s.Users().RemoveFavorite(ctx, u.ID, favs[0])
	if err != nil || len(left) != 1 || left[0] != favs[1] {
		t.Errorf("RemoveFavorite() = %v, %v; want [%s]", left, err, favs[1])
	}

	// Concurrent adds for one user must all land.
	more := make([]string, 8)
	var wg sync.WaitGroup
	for i := range more {
		more[i] = uuid.NewString()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Users().AddFavorite(ctx, u.ID, more[i]); err != nil {
				t.Errorf("AddFavorite() error = %v", err)
			}
		}()
	}
	wg.Wait()
	byID, _ = s.Users().FindByID(ctx, u.ID)
	if len(byID.Favorites) != 1+len(more) {
		t.Errorf("after concurrent adds Favorites has %d entries, want %d", len(byID.Favorites), 1+len(more))
	}
}

func testOffers(t *testing.T, s core.Store) {
	ctx := context.Background()
	host, err := s.Users().Create(ctx, domain.User{Name: "Host", Email: email("host")})
	if err != nil {
		t.Fatal(err)
	}

	// Far-future dates keep these offers ahead of rows left by other runs.
	base := time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(time.Now().UnixNano() % int64(time.Hour)))
	older, err := s.Offers().Create(ctx, newOffer(host.ID, domain.CityCologne, true, base))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	newer, err := s.Offers().Create(ctx, newOffer(host.ID, domain.CityCologne, false, base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if older.Host.ID != host.ID || older.Host.Name != "Host" {
		t.Errorf("Create() host = %+v, want populated host", older.Host)
	}
	if len(older.Amenities) != 2 || older.Amenities[1] != domain.AmenityWasher {
		t.Errorf("Amenities = %v", older.Amenities)
	}

	got, err := s.Offers().FindMany(ctx, domain.OfferFilter{IDs: []string{older.ID, newer.ID, "not-a-uuid"}})
	if err != nil {
		t.Fatalf("FindMany(ids) error = %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("FindMany(ids) = %v, want [newer older]", ids(got))
	}

	got, err = s.Offers().FindMany(ctx, domain.OfferFilter{City: domain.CityCologne, PremiumOnly: true, IDs: []string{older.ID, newer.ID}})
	if err != nil || len(got) != 1 || got[0].ID != older.ID {
		t.Errorf("FindMany(premium) = %v, %v; want [older]", ids(got), err)
	}

	got, err = s.Offers().FindMany(ctx, domain.OfferFilter{Limit: 1})
	if err != nil || len(got) != 1 {
		t.Errorf("FindMany(limit 1) = %v, %v", ids(got), err)
	}

	price := 4242
	updated, err := s.Offers().Update(ctx, older.ID, domain.OfferPatch{Price: &price, Images: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Price != 4242 || len(updated.Images) != 2 || updated.Title != older.Title {
		t.Errorf("Update() = %+v", updated)
	}

	if err := s.Offers().IncrementCommentCount(ctx, older.ID); err != nil {
		t.Fatal(err)
	}
	reloaded, err := s.Offers().FindByID(ctx, older.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.CommentCount != 1 || reloaded.Price != 4242 {
		t.Errorf("FindByID() = %+v", reloaded)
	}

	if err := s.Offers().Delete(ctx, older.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Offers().FindByID(ctx, older.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("FindByID(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.Offers().Delete(ctx, older.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}
}

func testComments(t *testing.T, s core.Store) {
	ctx := context.Background()
	host, err := s.Users().Create(ctx, domain.User{Name: "Host", Email: email("chost")})
	if err != nil {
		t.Fatal(err)
	}
	author, err := s.Users().Create(ctx, domain.User{Name: "Guest", Email: email("guest")})
	if err != nil {
		t.Fatal(err)
	}
	offer, err := s.Offers().Create(ctx, newOffer(host.ID, domain.CityParis, false, time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	rating, n, err := s.Offers().RecomputeRating(ctx, offer.ID)
	if err != nil || rating != 0 || n != 0 {
		t.Errorf("RecomputeRating(empty) = %v, %d, %v", rating, n, err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, r := range []int{3, 5, 4, 4} {
		c, err := s.Comments().Create(ctx, domain.Comment{
			Text:            "A pleasant stay overall.",
			PublicationDate: base.Add(time.Duration(i) * time.Second),
			Rating:          r,
			AuthorID:        author.ID,
			OfferID:         offer.ID,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if c.ID == "" || c.Author.ID != author.ID {
			t.Errorf("Create() = %+v", c)
		}
	}

	rating, n, err = s.Offers().RecomputeRating(ctx, offer.ID)
	if err != nil || n != 4 || rating != 4 {
		t.Errorf("RecomputeRating() = %v, %d, %v; want 4, 4", rating, n, err)
	}
	if o, _ := s.Offers().FindByID(ctx, offer.ID); o.Rating != 4 {
		t.Errorf("stored rating = %v, want 4", o.Rating)
	}

	list, err := s.Comments().FindByOffer(ctx, offer.ID, 2)
	if err != nil || len(list) != 2 {
		t.Fatalf("FindByOffer() = %d comments, %v", len(list), err)
	}
	if list[0].Rating != 4 || list[1].Rating != 4 || list[0].Author.Name != "Guest" {
		t.Errorf("FindByOffer() = %+v, want newest first with authors", list)
	}

	if _, err := s.Comments().Create(ctx, domain.Comment{
		Text: "Orphan", PublicationDate: base, Rating: 1, AuthorID: author.ID, OfferID: uuid.NewString(),
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Create(unknown offer) error = %v, want ErrNotFound", err)
	}

	if err := s.Offers().Delete(ctx, offer.ID); err != nil {
		t.Fatal(err)
	}
	if list, _ := s.Comments().FindByOffer(ctx, offer.ID, 0); len(list) != 0 {
		t.Errorf("%d comments survived their offer", len(list))
	}
}

func testConcurrentCreate(t *testing.T, s core.Store) {
	ctx := context.Background()
	addr := email("race")

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		created    int
		duplicates int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Users().Create(ctx, domain.User{Name: "Racer", Email: addr})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrDuplicateEmail):
				duplicates++
			default:
				t.Errorf("Create() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 || duplicates != 9 {
		t.Errorf("created %d, duplicates %d; want 1 and 9", created, duplicates)
	}
}

func testUnknownIDs(t *testing.T, s core.Store) {
	ctx := context.Background()
	for _, id := range []string{"", "not-a-uuid", uuid.NewString()} {
		if _, err := s.Users().FindByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Users().FindByID(%q) error = %v, want ErrNotFound", id, err)
		}
		if _, err := s.Offers().FindByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Offers().FindByID(%q) error = %v, want ErrNotFound", id, err)
		}
		if _, _, err := s.Offers().RecomputeRating(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Offers().RecomputeRating(%q) error = %v, want ErrNotFound", id, err)
		}
		if _, err := s.Users().AddFavorite(ctx, id, "x"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Users().AddFavorite(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func ids(offers []domain.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.ID
	}
	return out
}
