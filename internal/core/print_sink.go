package core

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// PrintSink writes every consumed offer to W as an indented block. It is
// used when an import has no store to persist into.
type PrintSink struct {
	W io.Writer

	mu sync.Mutex
}

// NewPrintSink returns a PrintSink writing to w.
func NewPrintSink(w io.Writer) *PrintSink {
	return &PrintSink{W: w}
}

// Consume prints rec. Blocks of concurrent calls never interleave.
func (p *PrintSink) Consume(_ context.Context, rec domain.OfferRecord) error {
	var b strings.Builder
	line := func(indent, key, value string) {
		fmt.Fprintf(&b, "%s%s: %s\n", indent, key, value)
	}

	b.WriteString("\nOffer:\n")
	line("  ", "title", rec.Title)
	line("  ", "description", rec.Description)
	line("  ", "publicationDate", formatDate(rec))
	line("  ", "city", string(rec.City))
	line("  ", "preview", rec.Preview)
	line("  ", "images", strings.Join(rec.Images, ", "))
	line("  ", "isPremium", strconv.FormatBool(rec.IsPremium))
	line("  ", "isFavorite", strconv.FormatBool(rec.IsFavorite))
	line("  ", "rating", strconv.FormatFloat(rec.Rating, 'f', -1, 64))
	line("  ", "type", string(rec.Type))
	line("  ", "bedrooms", strconv.Itoa(rec.Bedrooms))
	line("  ", "guests", strconv.Itoa(rec.Guests))
	line("  ", "price", strconv.Itoa(rec.Price))
	line("  ", "amenities", joinAmenities(rec.Amenities))
	b.WriteString("  host:\n")
	line("    ", "name", rec.Host.Name)
	line("    ", "email", rec.Host.Email)
	line("    ", "avatar", rec.Host.Avatar)
	line("    ", "isPro", strconv.FormatBool(rec.Host.IsPro))
	b.WriteString("  location:\n")
	line("    ", "latitude", strconv.FormatFloat(rec.Location.Latitude, 'f', -1, 64))
	line("    ", "longitude", strconv.FormatFloat(rec.Location.Longitude, 'f', -1, 64))

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := io.WriteString(p.W, b.String())
	return err
}

func formatDate(rec domain.OfferRecord) string {
	if rec.PublicationDate.IsZero() {
		return ""
	}
	return rec.PublicationDate.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func joinAmenities(as []domain.Amenity) string {
	s := make([]string, len(as))
	for i, a := range as {
		s[i] = string(a)
	}
	return strings.Join(s, ", ")
}
