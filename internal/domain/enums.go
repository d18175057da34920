package domain

// City is one of the fixed set of cities offers can be listed in.
type City string

const (
	CityParis      City = "Paris"
	CityCologne    City = "Cologne"
	CityBrussels   City = "Brussels"
	CityAmsterdam  City = "Amsterdam"
	CityHamburg    City = "Hamburg"
	CityDusseldorf City = "Dusseldorf"
)

// HousingType is the kind of accommodation being offered.
type HousingType string

const (
	HousingApartment HousingType = "apartment"
	HousingHouse     HousingType = "house"
	HousingRoom      HousingType = "room"
	HousingHotel     HousingType = "hotel"
)

// Amenity is a single entry of the amenity vocabulary.
type Amenity string

const (
	AmenityBreakfast       Amenity = "Breakfast"
	AmenityAirConditioning Amenity = "Air conditioning"
	AmenityLaptopWorkspace Amenity = "Laptop friendly workspace"
	AmenityBabySeat        Amenity = "Baby seat"
	AmenityWasher          Amenity = "Washer"
	AmenityTowels          Amenity = "Towels"
	AmenityFridge          Amenity = "Fridge"
)

// The vocabularies below are the single definition shared by the TSV codec,
// the generator, request validation and the storage schemas. They are
// unexported so callers can only obtain copies.
var (
	cities = []City{
		CityParis, CityCologne, CityBrussels, CityAmsterdam, CityHamburg, CityDusseldorf,
	}
	housingTypes = []HousingType{
		HousingApartment, HousingHouse, HousingRoom, HousingHotel,
	}
	amenities = []Amenity{
		AmenityBreakfast, AmenityAirConditioning, AmenityLaptopWorkspace,
		AmenityBabySeat, AmenityWasher, AmenityTowels, AmenityFridge,
	}
)

// cityLocations holds the reference coordinates of every city.
var cityLocations = map[City]Location{
	CityParis:      {Latitude: 48.85661, Longitude: 2.351499},
	CityCologne:    {Latitude: 50.938361, Longitude: 6.959974},
	CityBrussels:   {Latitude: 50.846557, Longitude: 4.351697},
	CityAmsterdam:  {Latitude: 52.370216, Longitude: 4.895168},
	CityHamburg:    {Latitude: 53.550341, Longitude: 10.000654},
	CityDusseldorf: {Latitude: 51.225402, Longitude: 6.776314},
}

// Cities returns the city vocabulary in canonical order.
func Cities() []City {
	return append([]City(nil), cities...)
}

// HousingTypes returns the housing type vocabulary in canonical order.
func HousingTypes() []HousingType {
	return append([]HousingType(nil), housingTypes...)
}

// Amenities returns the amenity vocabulary in canonical order.
func Amenities() []Amenity {
	return append([]Amenity(nil), amenities...)
}

// CityLocation returns the reference coordinates for c.
func CityLocation(c City) (Location, bool) {
	loc, ok := cityLocations[c]
	return loc, ok
}

// Valid reports whether c is part of the city vocabulary.
func (c City) Valid() bool {
	_, ok := cityLocations[c]
	return ok
}

// Valid reports whether t is part of the housing type vocabulary.
func (t HousingType) Valid() bool {
	for _, v := range housingTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Valid reports whether a is part of the amenity vocabulary.
func (a Amenity) Valid() bool {
	for _, v := range amenities {
		if v == a {
			return true
		}
	}
	return false
}

// CityNames returns the vocabulary as plain strings, for schema definitions.
func CityNames() []string {
	out := make([]string, len(cities))
	for i, c := range cities {
		out[i] = string(c)
	}
	return out
}

// HousingTypeNames returns the vocabulary as plain strings.
func HousingTypeNames() []string {
	out := make([]string, len(housingTypes))
	for i, t := range housingTypes {
		out[i] = string(t)
	}
	return out
}

// AmenityNames returns the vocabulary as plain strings.
func AmenityNames() []string {
	out := make([]string, len(amenities))
	for i, a := range amenities {
		out[i] = string(a)
	}
	return out
}
