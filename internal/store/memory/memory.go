// Package memory is a map-backed store. It serves STORE_DRIVER=memory and
// doubles as the repository fake in tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
)

var _ core.Store = (*Store)(nil)

// Store holds all records in memory. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	emails   map[string]string // email -> user id
	offers   map[string]domain.Offer
	comments map[string]domain.Comment
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
		offers:   make(map[string]domain.Offer),
		comments: make(map[string]domain.Comment),
	}
}

func (s *Store) Users() core.UserRepository       { return userRepo{s} }
func (s *Store) Offers() core.OfferRepository     { return offerRepo{s} }
func (s *Store) Comments() core.CommentRepository { return commentRepo{s} }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return cloneUser(r.s.users[id]), nil
}

func (r userRepo) Create(_ context.Context, u domain.User) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.emails[u.Email]; taken {
		return domain.User{}, domain.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	u.Favorites = slices.Clone(u.Favorites)
	r.s.users[u.ID] = u
	r.s.emails[u.Email] = u.ID
	return cloneUser(u), nil
}

func (r userRepo) AddFavorite(_ context.Context, userID, offerID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !slices.Contains(u.Favorites, offerID) {
		u.Favorites = append(slices.Clone(u.Favorites), offerID)
		r.s.users[userID] = u
	}
	return slices.Clone(u.Favorites), nil
}

func (r userRepo) RemoveFavorite(_ context.Context, userID, offerID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if slices.Contains(u.Favorites, offerID) {
		u.Favorites = slices.DeleteFunc(slices.Clone(u.Favorites), func(id string) bool { return id == offerID })
		r.s.users[userID] = u
	}
	return slices.Clone(u.Favorites), nil
}

type offerRepo struct{ s *Store }

func (r offerRepo) FindByID(_ context.Context, id string) (domain.Offer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.offers[id]
	if !ok {
		return domain.Offer{}, domain.ErrNotFound
	}
	return r.s.populate(o), nil
}

func (r offerRepo) FindMany(_ context.Context, f domain.OfferFilter) ([]domain.Offer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids map[string]bool
	if f.IDs != nil {
		ids = make(map[string]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}

	out := []domain.Offer{}
	for _, o := range r.s.offers {
		if f.City != "" && o.City != f.City {
			continue
		}
		if f.PremiumOnly && !o.IsPremium {
			continue
		}
		if ids != nil && !ids[o.ID] {
			continue
		}
		out = append(out, r.s.populate(o))
	}

	slices.SortFunc(out, func(a, b domain.Offer) int {
		if c := b.PublicationDate.Compare(a.PublicationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r offerRepo) Create(_ context.Context, o domain.Offer) (domain.Offer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[o.HostID]; !ok {
		return domain.Offer{}, domain.ErrNotFound
	}
	o.ID = uuid.NewString()
	o.Images = slices.Clone(o.Images)
	o.Amenities = slices.Clone(o.Amenities)
	o.Host = domain.User{}
	r.s.offers[o.ID] = o
	return r.s.populate(o), nil
}

func (r offerRepo) Update(_ context.Context, id string, patch domain.OfferPatch) (domain.Offer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.offers[id]
	if !ok {
		return domain.Offer{}, domain.ErrNotFound
	}
	patch.Apply(&o)
	r.s.offers[id] = o
	return r.s.populate(o), nil
}

func (r offerRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.offers[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.offers, id)
	for cid, c := range r.s.comments {
		if c.OfferID == id {
			delete(r.s.comments, cid)
		}
	}
	return nil
}

func (r offerRepo) IncrementCommentCount(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.offers[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.CommentCount++
	r.s.offers[id] = o
	return nil
}

func (r offerRepo) RecomputeRating(_ context.Context, id string) (float64, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.offers[id]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}

	sum, n := 0, 0
	for _, c := range r.s.comments {
		if c.OfferID == id {
			sum += c.Rating
			n++
		}
	}
	o.Rating = 0
	if n > 0 {
		o.Rating = domain.RoundRating(float64(sum) / float64(n))
	}
	r.s.offers[id] = o
	return o.Rating, n, nil
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, c domain.Comment) (domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.offers[c.OfferID]; !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	if _, ok := r.s.users[c.AuthorID]; !ok {
		return domain.Comment{}, domain.ErrNotFound
	}
	c.ID = uuid.NewString()
	c.Author = domain.User{}
	r.s.comments[c.ID] = c
	c.Author = cloneUser(r.s.users[c.AuthorID])
	return c, nil
}

func (r commentRepo) FindByOffer(_ context.Context, offerID string, limit int) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Comment{}
	for _, c := range r.s.comments {
		if c.OfferID == offerID {
			c.Author = cloneUser(r.s.users[c.AuthorID])
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Comment) int {
		if c := b.PublicationDate.Compare(a.PublicationDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// populate attaches the host. The caller holds s.mu.
func (s *Store) populate(o domain.Offer) domain.Offer {
	o.Host = cloneUser(s.users[o.HostID])
	o.Images = slices.Clone(o.Images)
	o.Amenities = slices.Clone(o.Amenities)
	return o
}

func cloneUser(u domain.User) domain.User {
	u.Favorites = slices.Clone(u.Favorites)
	return u
}
