package core_test

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/offerloader/internal/domain"
	"github.com/JonMunkholm/offerloader/internal/tsv"
)

func fixtureRecord(i int) domain.OfferRecord {
	return domain.OfferRecord{
		Offer: domain.Offer{
			Title:           fmt.Sprintf("Canal house number %d", i),
			Description:     "Quiet rooms above the canal with morning light.",
			PublicationDate: time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
			City:            domain.CityAmsterdam,
			Preview:         "https://img.example.com/preview.jpg",
			Images:          []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"},
			IsPremium:       i%2 == 0,
			Rating:          4.8,
			Type:            domain.HousingHouse,
			Bedrooms:        3,
			Guests:          5,
			Price:           2500,
			Amenities:       []domain.Amenity{domain.AmenityFridge, domain.AmenityTowels},
			Host: domain.User{
				Name:     "Max",
				Email:    "max@example.com",
				Password: "hunter22",
				IsPro:    true,
			},
			CommentCount: 12,
			Location:     domain.Location{Latitude: 52.37, Longitude: 4.89},
		},
	}
}

// tsvInput renders the canonical header followed by rows.
func tsvInput(rows ...string) string {
	return tsv.HeaderLine() + "\n" + strings.Join(rows, "\n") + "\n"
}

func encodedRows(n int) []string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = tsv.EncodeRow(fixtureRecord(i + 1))
	}
	return rows
}
