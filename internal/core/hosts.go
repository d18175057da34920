package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// ErrHostEmailRequired is returned for hosts without an email, which is the
// only key hosts are deduplicated by.
var ErrHostEmailRequired = errors.New("host email is required")

// Locker serializes work on a key across processes. Lock blocks until the
// lock is held or ctx ends; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// HostResolver maps a host identity to exactly one stored user per email.
//
// Concurrent calls for the same email within the process share a single
// lookup. Across processes an optional Locker serializes them, and the
// store's unique email index is the last line: a create that loses the race
// gets domain.ErrDuplicateEmail and the winner's record is read back.
type HostResolver struct {
	users  UserRepository
	locker Locker
	group  singleflight.Group
}

// NewHostResolver returns a resolver over users. locker may be nil.
func NewHostResolver(users UserRepository, locker Locker) *HostResolver {
	return &HostResolver{users: users, locker: locker}
}

// Resolve returns the stored user with host's email, creating it from host's
// name, email, avatar, password and pro flag when none exists. The email is
// used verbatim. An existing user is returned unchanged.
func (r *HostResolver) Resolve(ctx context.Context, host domain.User) (domain.User, error) {
	if host.Email == "" {
		return domain.User{}, ErrHostEmailRequired
	}

	v, err, _ := r.group.Do(host.Email, func() (any, error) {
		return r.resolve(ctx, host)
	})
	if err != nil {
		return domain.User{}, err
	}
	return v.(domain.User), nil
}

func (r *HostResolver) resolve(ctx context.Context, host domain.User) (domain.User, error) {
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, "host:"+host.Email)
		if err != nil {
			return domain.User{}, fmt.Errorf("lock host %s: %w", host.Email, err)
		}
		defer unlock()
	}

	u, err := r.users.FindByEmail(ctx, host.Email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("find host %s: %w", host.Email, err)
	}

	created, err := r.users.Create(ctx, domain.User{
		Name:     host.Name,
		Email:    host.Email,
		Avatar:   host.Avatar,
		Password: host.Password,
		IsPro:    host.IsPro,
	})
	if errors.Is(err, domain.ErrDuplicateEmail) {
		u, err = r.users.FindByEmail(ctx, host.Email)
		if err != nil {
			return domain.User{}, fmt.Errorf("find host %s after conflict: %w", host.Email, err)
		}
		return u, nil
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create host %s: %w", host.Email, err)
	}
	return created, nil
}

// OfferSink persists imported offers.
type OfferSink struct {
	hosts  *HostResolver
	offers OfferRepository
	now    func() time.Time
}

// NewOfferSink returns a sink storing offers in offers with hosts from hosts.
func NewOfferSink(hosts *HostResolver, offers OfferRepository) *OfferSink {
	return &OfferSink{hosts: hosts, offers: offers, now: time.Now}
}

// Consume validates rec, resolves its host and stores it. Rows with a
// numeric column that held no number are rejected. Imported offers
// start with no comments: rating and comment count are zeroed whatever the
// row said. A missing publication date is set to now. The viewer-specific
// favorite flag is dropped.
func (s *OfferSink) Consume(ctx context.Context, rec domain.OfferRecord) error {
	if len(rec.NotNumeric) > 0 {
		return fmt.Errorf("%w: not a number: %s", ErrValidation, strings.Join(rec.NotNumeric, ", "))
	}
	offer := rec.Offer
	if err := validateStruct(offer); err != nil {
		return err
	}

	host, err := s.hosts.Resolve(ctx, offer.Host)
	if err != nil {
		return err
	}

	offer.ID = ""
	offer.HostID = host.ID
	offer.Host = host
	offer.Rating = 0
	offer.CommentCount = 0
	if offer.PublicationDate.IsZero() {
		offer.PublicationDate = s.now()
	}

	if _, err := s.offers.Create(ctx, offer); err != nil {
		return fmt.Errorf("create offer %q: %w", offer.Title, err)
	}
	return nil
}
