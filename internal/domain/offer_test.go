package domain

import (
	"testing"
)

func TestRoundRating(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{4, 4},
		{3.5, 3.5},
		{4.25, 4.3},
		{4.24, 4.2},
		{(4 + 5 + 5) / 3.0, 4.7},
		{(1 + 2) / 2.0, 1.5},
	}

	for _, tt := range tests {
		if got := RoundRating(tt.in); got != tt.want {
			t.Errorf("RoundRating(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewOfferRecord(t *testing.T) {
	favorites := NewFavoriteSet([]string{"a", "c"})

	tests := []struct {
		id   string
		want bool
	}{
		{"a", true},
		{"b", false},
		{"c", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec := NewOfferRecord(Offer{ID: tt.id}, favorites)
			if rec.IsFavorite != tt.want {
				t.Errorf("IsFavorite = %v, want %v", rec.IsFavorite, tt.want)
			}
		})
	}

	t.Run("nil set", func(t *testing.T) {
		if NewOfferRecord(Offer{ID: "a"}, nil).IsFavorite {
			t.Error("anonymous viewer should never see a favorite")
		}
	})
}

func TestOfferPatchApply(t *testing.T) {
	o := Offer{Title: "old title", City: CityParis, Price: 100, Bedrooms: 2}

	title := "new title here"
	city := CityHamburg
	price := 500
	OfferPatch{Title: &title, City: &city, Price: &price}.Apply(&o)

	if o.Title != title {
		t.Errorf("Title = %q, want %q", o.Title, title)
	}
	if o.City != CityHamburg {
		t.Errorf("City = %q, want Hamburg", o.City)
	}
	if o.Price != 500 {
		t.Errorf("Price = %d, want 500", o.Price)
	}
	if o.Bedrooms != 2 {
		t.Errorf("Bedrooms changed to %d", o.Bedrooms)
	}
}

func TestVocabularies(t *testing.T) {
	if len(Cities()) != 6 {
		t.Errorf("Cities() has %d entries, want 6", len(Cities()))
	}
	for _, c := range Cities() {
		if !c.Valid() {
			t.Errorf("%q should be valid", c)
		}
		if _, ok := CityLocation(c); !ok {
			t.Errorf("no location for %q", c)
		}
	}
	if City("Berlin").Valid() {
		t.Error("Berlin should not be valid")
	}
	if !HousingHotel.Valid() || HousingType("castle").Valid() {
		t.Error("housing type validation is wrong")
	}
	if !AmenityFridge.Valid() || Amenity("fridge").Valid() {
		t.Error("amenity validation must be case-sensitive")
	}

	got := Amenities()
	got[0] = "mutated"
	if Amenities()[0] != AmenityBreakfast {
		t.Error("Amenities() must return a copy")
	}
}
