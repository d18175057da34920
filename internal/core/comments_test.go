package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/store/memory"
)

type commentEnv struct {
	store    *memory.Store
	comments *core.CommentService
	offerID  string
	authorID string
}

func newCommentEnv(t *testing.T) commentEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	host, err := store.Users().Create(ctx, domain.User{Name: "Host", Email: "host@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	author, err := store.Users().Create(ctx, domain.User{Name: "Guest", Email: "guest@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	offer := fixtureRecord(1).Offer
	offer.HostID = host.ID
	offer.Rating = 0
	offer.CommentCount = 0
	created, err := store.Offers().Create(ctx, offer)
	if err != nil {
		t.Fatal(err)
	}

	return commentEnv{
		store:    store,
		comments: core.NewCommentService(store.Comments(), store.Offers(), store.Users()),
		offerID:  created.ID,
		authorID: author.ID,
	}
}

func (e commentEnv) add(t *testing.T, rating int) {
	t.Helper()
	_, err := e.comments.Create(context.Background(), core.CreateCommentInput{
		Text:     "Lovely stay, would book again.",
		Rating:   rating,
		AuthorID: e.authorID,
		OfferID:  e.offerID,
	})
	if err != nil {
		t.Fatalf("Create(rating %d) error = %v", rating, err)
	}
}

func (e commentEnv) offer(t *testing.T) domain.Offer {
	t.Helper()
	o, err := e.store.Offers().FindByID(context.Background(), e.offerID)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestCommentAggregates(t *testing.T) {
	tests := []struct {
		name       string
		ratings    []int
		wantRating float64
	}{
		{"single comment", []int{4}, 4},
		{"two comments", []int{4, 5}, 4.5},
		{"rounded to one decimal", []int{5, 4, 4}, 4.3},
		{"rounds half up", []int{4, 4, 4, 5}, 4.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCommentEnv(t)
			for i, r := range tt.ratings {
				env.add(t, r)
				if got := env.offer(t).CommentCount; got != i+1 {
					t.Fatalf("after %d comments CommentCount = %d", i+1, got)
				}
			}
			if got := env.offer(t).Rating; got != tt.wantRating {
				t.Errorf("Rating = %v, want %v", got, tt.wantRating)
			}
		})
	}
}

func TestCommentCreateAuthorPopulated(t *testing.T) {
	env := newCommentEnv(t)
	c, err := env.comments.Create(context.Background(), core.CreateCommentInput{
		Text:     "Great location.",
		Rating:   5,
		AuthorID: env.authorID,
		OfferID:  env.offerID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.ID == "" || c.Author.Email != "guest@example.com" || c.PublicationDate.IsZero() {
		t.Errorf("Create() = %+v, want id, author and date set", c)
	}
}

func TestCommentCreateErrors(t *testing.T) {
	env := newCommentEnv(t)

	tests := []struct {
		name string
		in   core.CreateCommentInput
		want error
	}{
		{"text too short", core.CreateCommentInput{Text: "ok", Rating: 3, AuthorID: env.authorID, OfferID: env.offerID}, core.ErrValidation},
		{"rating too high", core.CreateCommentInput{Text: "Fine place.", Rating: 6, AuthorID: env.authorID, OfferID: env.offerID}, core.ErrValidation},
		{"rating missing", core.CreateCommentInput{Text: "Fine place.", AuthorID: env.authorID, OfferID: env.offerID}, core.ErrValidation},
		{"unknown offer", core.CreateCommentInput{Text: "Fine place.", Rating: 3, AuthorID: env.authorID, OfferID: "missing"}, domain.ErrNotFound},
		{"unknown author", core.CreateCommentInput{Text: "Fine place.", Rating: 3, AuthorID: "missing", OfferID: env.offerID}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.comments.Create(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}

	if o := env.offer(t); o.CommentCount != 0 || o.Rating != 0 {
		t.Errorf("rejected comments changed aggregates to (%d, %v)", o.CommentCount, o.Rating)
	}
}

func TestCommentListByOffer(t *testing.T) {
	env := newCommentEnv(t)
	for _, r := range []int{1, 2, 3} {
		env.add(t, r)
	}

	got, err := env.comments.ListByOffer(context.Background(), env.offerID, 2)
	if err != nil {
		t.Fatalf("ListByOffer() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListByOffer() returned %d comments, want 2", len(got))
	}
	if got[0].PublicationDate.Before(got[1].PublicationDate) {
		t.Error("comments not ordered newest first")
	}

	if _, err := env.comments.ListByOffer(context.Background(), "missing", 0); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ListByOffer(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRecomputeRatingWithoutComments(t *testing.T) {
	env := newCommentEnv(t)
	ctx := context.Background()

	stale := fixtureRecord(2).Offer
	stale.HostID = env.offer(t).HostID
	stale.Rating = 3.7
	created, err := env.store.Offers().Create(ctx, stale)
	if err != nil {
		t.Fatal(err)
	}

	if err := env.comments.RecomputeRating(ctx, created.ID); err != nil {
		t.Fatalf("RecomputeRating() error = %v", err)
	}
	o, _ := env.store.Offers().FindByID(ctx, created.ID)
	if o.Rating != 0 {
		t.Errorf("Rating = %v, want 0 without comments", o.Rating)
	}

	if err := env.comments.RecomputeRating(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("RecomputeRating(missing) error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentCommentsKeepAggregates(t *testing.T) {
	env := newCommentEnv(t)
	ratings := []int{5, 4, 4, 3, 5, 2, 4, 5, 1, 4}

	var wg sync.WaitGroup
	for _, r := range ratings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.comments.Create(context.Background(), core.CreateCommentInput{
				Text:     "Lovely stay, would book again.",
				Rating:   r,
				AuthorID: env.authorID,
				OfferID:  env.offerID,
			})
			if err != nil {
				t.Errorf("Create(rating %d) error = %v", r, err)
			}
		}()
	}
	wg.Wait()

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	o := env.offer(t)
	if o.CommentCount != len(ratings) {
		t.Errorf("CommentCount = %d, want %d", o.CommentCount, len(ratings))
	}
	if want := domain.RoundRating(float64(sum) / float64(len(ratings))); o.Rating != want {
		t.Errorf("Rating = %v, want %v", o.Rating, want)
	}
}
