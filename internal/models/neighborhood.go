package models

// MarkerKind distinguishes the user's own neighborhood from the others on the map.
type MarkerKind string

const (
	// MarkerOwn is the focal person's own neighborhood.
	MarkerOwn MarkerKind = "own"
	// MarkerOther is any other registered neighborhood.
	MarkerOther MarkerKind = "other"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Marker is a neighborhood positioned on the map.
type Marker struct {
	ID              string      `json:"id"`
	NeighborhoodID  string      `json:"neighborhoodID"`
	TerminalID      string      `json:"terminalID"`
	Coordinates     Coordinates `json:"coordinates"`
	Geohash         string      `json:"geohash"`
	Address         string      `json:"address"`
	DateRegistered  string      `json:"dateRegistered"`
	Kind            MarkerKind  `json:"type"`
	FocalPersonName string      `json:"focalPersonName"`
	Hazards         []string    `json:"hazards"`
}

// FocalContact is a person reachable for a neighborhood.
type FocalContact struct {
	Name      string `json:"name"`
	ContactNo string `json:"contactNo"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar,omitempty"`
}

// NeighborhoodDetails is the detail view of the focal person's neighborhood.
type NeighborhoodDetails struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	RegisteredAt           string       `json:"registeredAt"`
	LastUpdatedAt          string       `json:"lastUpdatedAt"`
	TerminalID             string       `json:"terminalID"`
	TerminalAddress        string       `json:"terminalAddress"`
	Coordinates            Coordinates  `json:"coordinates"`
	ApproxHouseholds       int          `json:"approxHouseholds"`
	ApproxResidents        int          `json:"approxResidents"`
	AvgHouseholdSize       float64      `json:"avgHouseholdSize"`
	FloodwaterSubsidence   string       `json:"floodwaterSubsidence"`
	FloodRelatedHazards    []string     `json:"floodRelatedHazards"`
	NotableInfo            []string     `json:"notableInfo"`
	FocalPerson            FocalContact `json:"focalPerson"`
	AlternativeFocalPerson FocalContact `json:"alternativeFocalPerson"`
}

// NeighborhoodUpdate is the editable subset of a neighborhood.
type NeighborhoodUpdate struct {
	NeighborhoodID       string
	ApproxHouseholds     int
	ApproxResidents      int
	FloodwaterSubsidence string
	FloodRelatedHazards  []string
	NotableInfo          []string
}
