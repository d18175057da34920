package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/store/memory"
)

// racyUsers hides existing users from the first FindByEmail, as if another
// process created the user between lookup and insert.
type racyUsers struct {
	core.UserRepository
	mu     sync.Mutex
	missed bool
}

func (r *racyUsers) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.Lock()
	first := !r.missed
	r.missed = true
	r.mu.Unlock()
	if first {
		return domain.User{}, domain.ErrNotFound
	}
	return r.UserRepository.FindByEmail(ctx, email)
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	held int
}

func (l *recordingLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.held++
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.held--
		l.mu.Unlock()
	}, nil
}

func TestHostResolverSameEmailSameUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := core.NewHostResolver(store.Users(), nil)

	first, err := r.Resolve(ctx, domain.User{Name: "Max", Email: "max@example.com", IsPro: true})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	again, err := r.Resolve(ctx, domain.User{Name: "Maximilian", Email: "max@example.com"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("second Resolve() id = %s, want %s", again.ID, first.ID)
	}
	if again.Name != "Max" || !again.IsPro {
		t.Errorf("existing host changed to %+v, want it returned unchanged", again)
	}

	other, err := r.Resolve(ctx, domain.User{Name: "Max", Email: "MAX@example.com"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("emails differing in case resolved to the same host, want them kept verbatim")
	}
}

func TestHostResolverConcurrent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := core.NewHostResolver(store.Users(), nil)

	const n = 32
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := r.Resolve(ctx, domain.User{Name: "Ann", Email: "ann@example.com"})
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
				return
			}
			ids[i] = u.ID
		}()
	}
	wg.Wait()

	for i, id := range ids {
		if id != ids[0] {
			t.Fatalf("goroutine %d resolved %s, want %s", i, id, ids[0])
		}
	}
}

func TestHostResolverDuplicateConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	existing, err := store.Users().Create(ctx, domain.User{Name: "Bo", Email: "bo@example.com"})
	if err != nil {
		t.Fatal(err)
	}

	r := core.NewHostResolver(&racyUsers{UserRepository: store.Users()}, nil)
	got, err := r.Resolve(ctx, domain.User{Name: "Bo", Email: "bo@example.com"})
	if err != nil {
		t.Fatalf("Resolve() error = %v, want conflict resolved by re-reading", err)
	}
	if got.ID != existing.ID {
		t.Errorf("Resolve() id = %s, want winner %s", got.ID, existing.ID)
	}
}

func TestHostResolverLocks(t *testing.T) {
	locker := &recordingLocker{}
	r := core.NewHostResolver(memory.New().Users(), locker)

	if _, err := r.Resolve(context.Background(), domain.User{Name: "Cy", Email: "cy@example.com"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(locker.keys) != 1 || locker.keys[0] != "host:cy@example.com" {
		t.Errorf("locked keys = %v, want [host:cy@example.com]", locker.keys)
	}
	if locker.held != 0 {
		t.Errorf("%d locks still held", locker.held)
	}
}

func TestHostResolverRequiresEmail(t *testing.T) {
	r := core.NewHostResolver(memory.New().Users(), nil)
	if _, err := r.Resolve(context.Background(), domain.User{Name: "Nobody"}); !errors.Is(err, core.ErrHostEmailRequired) {
		t.Errorf("Resolve() error = %v, want ErrHostEmailRequired", err)
	}
}

func TestOfferSinkConsume(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	sink := core.NewOfferSink(core.NewHostResolver(store.Users(), nil), store.Offers())

	rec := fixtureRecord(1)
	rec.PublicationDate = time.Time{}
	rec.IsFavorite = true
	before := time.Now()
	if err := sink.Consume(ctx, rec); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	offers, _ := store.Offers().FindMany(ctx, domain.OfferFilter{})
	if len(offers) != 1 {
		t.Fatalf("stored %d offers, want 1", len(offers))
	}
	got := offers[0]
	if got.Rating != 0 || got.CommentCount != 0 {
		t.Errorf("aggregates = (%v, %d), want (0, 0)", got.Rating, got.CommentCount)
	}
	if got.PublicationDate.Before(before) {
		t.Errorf("PublicationDate = %v, want it defaulted to now", got.PublicationDate)
	}
	if got.Host.Email != "max@example.com" || got.HostID != got.Host.ID {
		t.Errorf("host = %+v (HostID %s), want the resolved host", got.Host, got.HostID)
	}
}

func TestOfferSinkRejectsInvalid(t *testing.T) {
	store := memory.New()
	sink := core.NewOfferSink(core.NewHostResolver(store.Users(), nil), store.Offers())

	tests := []struct {
		name   string
		mutate func(*domain.OfferRecord)
	}{
		{"unknown city", func(r *domain.OfferRecord) { r.City = "Atlantis" }},
		{"unknown type", func(r *domain.OfferRecord) { r.Type = "castle" }},
		{"unknown amenity", func(r *domain.OfferRecord) { r.Amenities = []domain.Amenity{"Sauna"} }},
		{"no bedrooms", func(r *domain.OfferRecord) { r.Bedrooms = 0 }},
		{"no host email", func(r *domain.OfferRecord) { r.Host.Email = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fixtureRecord(1)
			tt.mutate(&rec)
			if err := sink.Consume(context.Background(), rec); !errors.Is(err, core.ErrValidation) {
				t.Errorf("Consume() error = %v, want ErrValidation", err)
			}
		})
	}

	offers, _ := store.Offers().FindMany(context.Background(), domain.OfferFilter{})
	if len(offers) != 0 {
		t.Errorf("stored %d invalid offers", len(offers))
	}
}
