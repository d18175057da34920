package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/store/memory"
)

func seedOffers(t *testing.T, store *memory.Store, n int) (hostID string, offerIDs []string) {
	t.Helper()
	ctx := context.Background()
	host, err := store.Users().Create(ctx, domain.User{Name: "Host", Email: "host@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	for i := range n {
		o := fixtureRecord(i + 1).Offer
		o.HostID = host.ID
		created, err := store.Offers().Create(ctx, o)
		if err != nil {
			t.Fatal(err)
		}
		offerIDs = append(offerIDs, created.ID)
	}
	return host.ID, offerIDs
}

func TestFavoritesAddRemove(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, offerIDs := seedOffers(t, store, 2)
	user, _ := store.Users().Create(ctx, domain.User{Name: "Fan", Email: "fan@example.com"})
	fav := core.NewFavoritesService(store.Users(), store.Offers())

	set, err := fav.Add(ctx, offerIDs[0], user.ID)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !set.Has(offerIDs[0]) || len(set) != 1 {
		t.Fatalf("Add() = %v, want {%s}", set, offerIDs[0])
	}

	set, err = fav.Add(ctx, offerIDs[0], user.ID)
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if len(set) != 1 {
		t.Errorf("second Add() = %v, want the set unchanged", set)
	}
	stored, _ := store.Users().FindByID(ctx, user.ID)
	if len(stored.Favorites) != 1 {
		t.Errorf("stored favorites = %v, want one entry", stored.Favorites)
	}

	set, err = fav.Remove(ctx, offerIDs[0], user.ID)
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(set) != 0 {
		t.Errorf("Remove() = %v, want empty", set)
	}

	set, err = fav.Remove(ctx, offerIDs[1], user.ID)
	if err != nil || len(set) != 0 {
		t.Errorf("Remove(absent) = %v, %v; want empty set and no error", set, err)
	}
}

// slowUsers delays user lookups so read-modify-write races would show.
type slowUsers struct {
	core.UserRepository
}

func (u slowUsers) FindByID(ctx context.Context, id string) (domain.User, error) {
	time.Sleep(5 * time.Millisecond)
	return u.UserRepository.FindByID(ctx, id)
}

func TestFavoritesConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, offerIDs := seedOffers(t, store, 8)
	user, _ := store.Users().Create(ctx, domain.User{Name: "Fan", Email: "fan@example.com"})
	fav := core.NewFavoritesService(slowUsers{store.Users()}, store.Offers())

	var wg sync.WaitGroup
	for _, id := range offerIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fav.Add(ctx, id, user.ID); err != nil {
				t.Errorf("Add(%s) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	set, err := fav.Viewer(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range offerIDs {
		if !set.Has(id) {
			t.Errorf("favorites = %v, missing %s", set, id)
		}
	}

	for _, id := range offerIDs[:4] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fav.Remove(ctx, id, user.ID); err != nil {
				t.Errorf("Remove(%s) error = %v", id, err)
			}
		}()
	}
	wg.Wait()

	set, _ = fav.Viewer(ctx, user.ID)
	if len(set) != 4 {
		t.Errorf("favorites after removing 4 = %v, want 4 left", set)
	}
}

func TestFavoritesUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, offerIDs := seedOffers(t, store, 1)
	fav := core.NewFavoritesService(store.Users(), store.Offers())

	for _, userID := range []string{"", "no-such-user"} {
		set, err := fav.Add(ctx, offerIDs[0], userID)
		if err != nil || len(set) != 0 {
			t.Errorf("Add(user %q) = %v, %v; want empty set and no error", userID, set, err)
		}
		set, err = fav.Remove(ctx, offerIDs[0], userID)
		if err != nil || len(set) != 0 {
			t.Errorf("Remove(user %q) = %v, %v; want empty set and no error", userID, set, err)
		}
		list, err := fav.List(ctx, userID)
		if err != nil || len(list) != 0 {
			t.Errorf("List(user %q) = %v, %v; want empty", userID, list, err)
		}
	}
}

func TestFavoritesList(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, offerIDs := seedOffers(t, store, 3)
	user, _ := store.Users().Create(ctx, domain.User{Name: "Fan", Email: "fan@example.com"})
	fav := core.NewFavoritesService(store.Users(), store.Offers())

	for _, id := range offerIDs[:2] {
		if _, err := fav.Add(ctx, id, user.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Offers().Delete(ctx, offerIDs[0]); err != nil {
		t.Fatal(err)
	}

	list, err := fav.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != offerIDs[1] {
		t.Fatalf("List() = %v, want only %s", list, offerIDs[1])
	}
	if !list[0].IsFavorite {
		t.Error("listed favorite has IsFavorite = false")
	}
}
