// Package tsv converts between tab-separated offer rows and domain records,
// and provides the streaming reader and writer used by import and export.
//
// Row format: one record per line, fields separated by a tab, multi-valued
// fields (images, amenities) joined with a comma. There is no quoting or
// escaping, so a tab or comma inside a value corrupts the row.
package tsv

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// Column names, in canonical order.
const (
	ColTitle           = "title"
	ColDescription     = "description"
	ColPublicationDate = "publicationDate"
	ColCity            = "city"
	ColPreview         = "preview"
	ColImages          = "images"
	ColIsPremium       = "isPremium"
	ColIsFavorite      = "isFavorite"
	ColRating          = "rating"
	ColType            = "type"
	ColBedrooms        = "bedrooms"
	ColGuests          = "guests"
	ColPrice           = "price"
	ColAmenities       = "amenities"
	ColHostName        = "hostName"
	ColHostEmail       = "hostEmail"
	ColHostAvatar      = "hostAvatar"
	ColHostPassword    = "hostPassword"
	ColIsPro           = "isPro"
	ColLatitude        = "latitude"
	ColLongitude       = "longitude"
)

var headers = []string{
	ColTitle, ColDescription, ColPublicationDate, ColCity, ColPreview, ColImages,
	ColIsPremium, ColIsFavorite, ColRating, ColType, ColBedrooms, ColGuests,
	ColPrice, ColAmenities, ColHostName, ColHostEmail, ColHostAvatar,
	ColHostPassword, ColIsPro, ColLatitude, ColLongitude,
}

const (
	fieldSep = "\t"
	listSep  = ","

	// timeLayout matches the ISO 8601 form with millisecond precision.
	timeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ErrFieldCount is matched by every *DecodeError.
var ErrFieldCount = errors.New("field count does not match header")

// DecodeError reports a row whose field count differs from the header's.
type DecodeError struct {
	Got  int
	Want int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tsv: row has %d fields, header has %d", e.Got, e.Want)
}

func (e *DecodeError) Unwrap() error { return ErrFieldCount }

// HeaderIndex maps lowercased column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a decoded header.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

// Headers returns the canonical column names.
func Headers() []string {
	return append([]string(nil), headers...)
}

// HeaderLine returns the canonical header row without a line terminator.
func HeaderLine() string {
	return strings.Join(headers, fieldSep)
}

// MissingColumns returns the canonical columns absent from header.
func MissingColumns(header []string) []string {
	idx := MakeHeaderIndex(header)
	var missing []string
	for _, h := range headers {
		if _, ok := idx[strings.ToLower(h)]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}

// trimLine strips surrounding spaces and line terminators. Tabs are kept so
// that empty leading or trailing fields survive.
func trimLine(line string) string {
	return strings.Trim(line, " \r\n")
}

// DecodeHeader splits a header line into column names. It performs no validation.
func DecodeHeader(line string) []string {
	return strings.Split(trimLine(line), fieldSep)
}

// DecodeRow decodes one data line using the column names from DecodeHeader.
//
// Conversions are lenient: booleans are true only for the literal "true",
// floats that do not parse become NaN and integers are read from the
// leading digits of the field. Numeric columns that yield no number are
// listed in NotNumeric for the consumer to reject. Only a field count
// mismatch is an error.
func DecodeRow(line string, header []string) (domain.OfferRecord, error) {
	fields := strings.Split(trimLine(line), fieldSep)
	if len(fields) != len(header) {
		return domain.OfferRecord{}, &DecodeError{Got: len(fields), Want: len(header)}
	}

	idx := MakeHeaderIndex(header)
	get := func(name string) string {
		if i, ok := idx[strings.ToLower(name)]; ok {
			return fields[i]
		}
		return ""
	}

	var notNumeric []string
	intField := func(col string) int {
		v, ok := parseInt(get(col))
		if !ok {
			notNumeric = append(notNumeric, col)
		}
		return v
	}
	floatField := func(col string) float64 {
		v := parseFloat(get(col))
		if math.IsNaN(v) {
			notNumeric = append(notNumeric, col)
		}
		return v
	}

	rec := domain.OfferRecord{
		Offer: domain.Offer{
			Title:           get(ColTitle),
			Description:     get(ColDescription),
			PublicationDate: parseTime(get(ColPublicationDate)),
			City:            domain.City(get(ColCity)),
			Preview:         get(ColPreview),
			Images:          splitList(get(ColImages)),
			IsPremium:       parseBool(get(ColIsPremium)),
			Rating:          floatField(ColRating),
			Type:            domain.HousingType(get(ColType)),
			Bedrooms:        intField(ColBedrooms),
			Guests:          intField(ColGuests),
			Price:           intField(ColPrice),
			Host: domain.User{
				Name:     get(ColHostName),
				Email:    get(ColHostEmail),
				Avatar:   get(ColHostAvatar),
				Password: get(ColHostPassword),
				IsPro:    parseBool(get(ColIsPro)),
			},
			Location: domain.Location{
				Latitude:  floatField(ColLatitude),
				Longitude: floatField(ColLongitude),
			},
		},
		IsFavorite: parseBool(get(ColIsFavorite)),
	}
	rec.NotNumeric = notNumeric

	if amenities := splitList(get(ColAmenities)); amenities != nil {
		rec.Amenities = make([]domain.Amenity, len(amenities))
		for i, a := range amenities {
			rec.Amenities[i] = domain.Amenity(a)
		}
	}

	return rec, nil
}

// EncodeRow encodes rec as one line in canonical column order, without a
// line terminator.
func EncodeRow(rec domain.OfferRecord) string {
	amenities := make([]string, len(rec.Amenities))
	for i, a := range rec.Amenities {
		amenities[i] = string(a)
	}

	row := []string{
		rec.Title,
		rec.Description,
		formatTime(rec.PublicationDate),
		string(rec.City),
		rec.Preview,
		strings.Join(rec.Images, listSep),
		strconv.FormatBool(rec.IsPremium),
		strconv.FormatBool(rec.IsFavorite),
		formatFloat(rec.Rating),
		string(rec.Type),
		strconv.Itoa(rec.Bedrooms),
		strconv.Itoa(rec.Guests),
		strconv.Itoa(rec.Price),
		strings.Join(amenities, listSep),
		rec.Host.Name,
		rec.Host.Email,
		rec.Host.Avatar,
		rec.Host.Password,
		strconv.FormatBool(rec.Host.IsPro),
		formatFloat(rec.Location.Latitude),
		formatFloat(rec.Location.Longitude),
	}
	return strings.Join(row, fieldSep)
}

func parseBool(s string) bool {
	return s == "true"
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// parseInt reads the optionally signed integer at the start of s, after
// leading white space, so "3.5" is 3 and "12 nights" is 12. ok is false
// when s does not start with a number or it overflows int.
func parseInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSep)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
