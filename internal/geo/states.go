package geo

// States lists the 36 Nigerian states plus the FCT, used to validate
// reverse-geocoder responses.
var States = []string{
	"Abia", "Adamawa", "Akwa Ibom", "Anambra", "Bauchi", "Bayelsa",
	"Benue", "Borno", "Cross River", "Delta", "Ebonyi", "Edo",
	"Ekiti", "Enugu", "Gombe", "Imo", "Jigawa", "Kaduna",
	"Kano", "Katsina", "Kebbi", "Kogi", "Kwara", "Lagos",
	"Nasarawa", "Niger", "Ogun", "Ondo", "Osun", "Oyo",
	"Plateau", "Rivers", "Sokoto", "Taraba", "Yobe", "Zamfara",
	"Federal Capital Territory",
}

type stateBounds struct {
	name   string
	bounds Bounds
}

// Approximate bounding boxes for the states the system most often sees
// reports from. Fallback only; overlapping boxes resolve to the first match.
var stateBoxes = []stateBounds{
	{"Lagos", Bounds{MinLat: 6.4, MaxLat: 6.7, MinLon: 2.8, MaxLon: 4.0}},
	{"Kano", Bounds{MinLat: 10.5, MaxLat: 13.0, MinLon: 7.5, MaxLon: 9.5}},
	{"Kaduna", Bounds{MinLat: 9.0, MaxLat: 11.3, MinLon: 6.5, MaxLon: 8.5}},
	{"Federal Capital Territory", Bounds{MinLat: 8.7, MaxLat: 9.3, MinLon: 6.9, MaxLon: 7.7}},
	{"Rivers", Bounds{MinLat: 4.5, MaxLat: 5.2, MinLon: 6.5, MaxLon: 7.5}},
	{"Borno", Bounds{MinLat: 10.5, MaxLat: 13.9, MinLon: 11.5, MaxLon: 14.5}},
	{"Yobe", Bounds{MinLat: 11.0, MaxLat: 13.2, MinLon: 10.5, MaxLon: 12.5}},
	{"Adamawa", Bounds{MinLat: 7.5, MaxLat: 10.5, MinLon: 11.0, MaxLon: 13.5}},
	{"Zamfara", Bounds{MinLat: 11.0, MaxLat: 13.0, MinLon: 5.0, MaxLon: 7.0}},
	{"Katsina", Bounds{MinLat: 11.5, MaxLat: 13.5, MinLon: 7.0, MaxLon: 9.0}},
	{"Sokoto", Bounds{MinLat: 12.0, MaxLat: 14.0, MinLon: 4.0, MaxLon: 6.5}},
	{"Plateau", Bounds{MinLat: 8.5, MaxLat: 10.0, MinLon: 8.5, MaxLon: 10.0}},
	{"Benue", Bounds{MinLat: 6.5, MaxLat: 8.5, MinLon: 7.5, MaxLon: 10.0}},
	{"Nasarawa", Bounds{MinLat: 7.5, MaxLat: 9.5, MinLon: 7.0, MaxLon: 9.0}},
}

// StateAt returns the approximate state containing the coordinates, used
// when reverse geocoding is unavailable.
func StateAt(lon, lat float64) (string, bool) {
	for _, s := range stateBoxes {
		if s.bounds.Contains(lon, lat) {
			return s.name, true
		}
	}
	return "", false
}

// KnownState reports whether name matches one of the Nigerian states.
func KnownState(name string) bool {
	for _, s := range States {
		if s == name {
			return true
		}
	}
	return false
}
