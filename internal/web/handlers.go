package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/domain"
)

// handleListOffers returns the newest offers, optionally in one city. The
// response is also the upstream source the generator samples from.
func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	city := domain.City(r.URL.Query().Get("city"))

	offers, err := s.svc.Offers.List(r.Context(), viewer(r), city, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, offers)
}

// handlePremiumOffers returns the newest premium offers of ?city=.
func (s *Server) handlePremiumOffers(w http.ResponseWriter, r *http.Request) {
	city := domain.City(r.URL.Query().Get("city"))

	offers, err := s.svc.Offers.Premium(r.Context(), viewer(r), city)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, offers)
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := s.svc.Offers.Get(r.Context(), viewer(r), chi.URLParam(r, "offerID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, offer)
}

// handleCreateOffer stores an offer hosted by the acting user.
func (s *Server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var in core.CreateOfferInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	offer, err := s.svc.Offers.Create(r.Context(), viewer(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, offer)
}

func (s *Server) handleUpdateOffer(w http.ResponseWriter, r *http.Request) {
	var patch domain.OfferPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, r, err)
		return
	}

	offer, err := s.svc.Offers.Update(r.Context(), viewer(r), chi.URLParam(r, "offerID"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, offer)
}

func (s *Server) handleDeleteOffer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Offers.Delete(r.Context(), viewer(r), chi.URLParam(r, "offerID")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListComments returns an offer's comments, newest first.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	comments, err := s.svc.Comments.ListByOffer(r.Context(), chi.URLParam(r, "offerID"), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, comments)
}

// handleCreateComment adds a comment by the acting user. The offer's comment
// count and rating are updated before the response is sent.
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var in core.CreateCommentInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	in.AuthorID = viewer(r)
	in.OfferID = chi.URLParam(r, "offerID")

	comment, err := s.svc.Comments.Create(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, comment)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	s.toggleFavorite(w, r, s.svc.Favorites.Add)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.toggleFavorite(w, r, s.svc.Favorites.Remove)
}

// toggleFavorite applies op to the offer in the path and returns the offer
// with its updated isFavorite flag.
func (s *Server) toggleFavorite(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, offerID, userID string) (domain.FavoriteSet, error)) {
	ctx := r.Context()
	offerID := chi.URLParam(r, "offerID")

	offer, err := s.svc.Offers.Get(ctx, viewer(r), offerID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	favorites, err := op(ctx, offerID, viewer(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	offer.IsFavorite = favorites.Has(offerID)
	writeJSON(w, r, http.StatusOK, offer)
}

// handleListFavorites returns the acting user's favorite offers.
func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	offers, err := s.svc.Favorites.List(r.Context(), viewer(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, offers)
}

// handleRegisterUser creates an account. A taken email is a 409.
func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var in core.RegisterUserInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := s.svc.Users.Register(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, user)
}
