// Package neighborhood reads and edits the focal person's neighborhood through
// the authenticated request gateway.
package neighborhood

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/atinyakov/ResQWave/internal/client/gateway"
	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/models"
	"go.uber.org/zap"
)

// Backend endpoints.
const (
	PathMapOwn    = "/neighborhood/map/own"
	PathMapOthers = "/neighborhood/map/others"
	PathOwn       = "/neighborhood/own"
	pathPrefix    = "/neighborhood/"
)

// Requester performs backend calls. *gateway.Gateway implements it.
type Requester interface {
	Request(ctx context.Context, path string, opts gateway.RequestOptions, out any) error
}

type focalSummary struct {
	Name                   string `json:"name"`
	Number                 string `json:"number"`
	Email                  string `json:"email"`
	Photo                  avatar `json:"photo"`
	AlternativeFPFirstName string `json:"alternativeFPFirstName"`
	AlternativeFPLastName  string `json:"alternativeFPLastName"`
	AlternativeFPEmail     string `json:"alternativeFPEmail"`
	AlternativeFPNumber    string `json:"alternativeFPNumber"`
	AlternativeFPImage     avatar `json:"alternativeFPImage"`
}

type ownResponse struct {
	NeighborhoodID string       `json:"neighborhoodID"`
	TerminalID     string       `json:"terminalID"`
	FocalPerson    focalSummary `json:"focalPerson"`
	Address        *string      `json:"address"`
	Hazards        []string     `json:"hazards"`
	CreatedDate    string       `json:"createdDate"`
}

type otherResponse struct {
	NeighborhoodID string   `json:"neighborhoodID"`
	Hazards        []string `json:"hazards"`
	CreatedDate    string   `json:"createdDate"`
	Address        *string  `json:"address"`
	FocalPerson    string   `json:"focalPerson"`
}

type detailsResponse struct {
	NeighborhoodID   string       `json:"neighborhoodID"`
	TerminalID       string       `json:"terminalID"`
	NoOfHouseholds   count        `json:"noOfHouseholds"`
	NoOfResidents    count        `json:"noOfResidents"`
	FloodSubsidence  string       `json:"floodwaterSubsidenceDuration"`
	Hazards          []string     `json:"hazards"`
	OtherInformation string       `json:"otherInformation"`
	FocalPerson      focalSummary `json:"focalPerson"`
	Address          *string      `json:"address"`
	CreatedDate      string       `json:"createdDate"`
	UpdatedDate      string       `json:"updatedDate"`
}

type updateRequest struct {
	NoOfHouseholds    int      `json:"noOfHouseholds"`
	NoOfResidents     int      `json:"noOfResidents"`
	FloodSubsideHours string   `json:"floodSubsideHours"`
	Hazards           []string `json:"hazards"`
	OtherInformation  string   `json:"otherInformation"`
}

// Client fetches and updates neighborhood data.
type Client struct {
	gw  Requester
	log *zap.Logger
}

// New returns a Client.
func New(gw Requester, log *zap.Logger) *Client {
	return &Client{gw: gw, log: logger.OrNop(log)}
}

// FetchOwn returns the map marker of the caller's neighborhood, or nil when
// its address cannot be placed on the map.
func (c *Client) FetchOwn(ctx context.Context) (*models.Marker, error) {
	var resp ownResponse
	if err := c.gw.Request(ctx, PathMapOwn, gateway.RequestOptions{}, &resp); err != nil {
		return nil, err
	}
	addr, ok := ParseAddress(resp.Address)
	if !ok {
		c.log.Warn("own neighborhood has no usable address", zap.String("neighborhood", resp.NeighborhoodID))
		return nil, nil
	}
	m := marker(resp.NeighborhoodID, addr, resp.CreatedDate, models.MarkerOwn, resp.FocalPerson.Name, resp.Hazards)
	m.TerminalID = resp.TerminalID
	return &m, nil
}

// FetchOthers returns the markers of all other neighborhoods. Entries whose
// address cannot be placed are skipped.
func (c *Client) FetchOthers(ctx context.Context) ([]models.Marker, error) {
	var resp []otherResponse
	if err := c.gw.Request(ctx, PathMapOthers, gateway.RequestOptions{}, &resp); err != nil {
		return nil, err
	}
	markers := make([]models.Marker, 0, len(resp))
	for _, nb := range resp {
		addr, ok := ParseAddress(nb.Address)
		if !ok {
			continue
		}
		markers = append(markers, marker(nb.NeighborhoodID, addr, nb.CreatedDate, models.MarkerOther, nb.FocalPerson, nb.Hazards))
	}
	c.log.Debug("fetched neighborhoods", zap.Int("received", len(resp)), zap.Int("placed", len(markers)))
	return markers, nil
}

// FetchDetails returns the detail view of the caller's neighborhood.
func (c *Client) FetchDetails(ctx context.Context) (*models.NeighborhoodDetails, error) {
	var resp detailsResponse
	if err := c.gw.Request(ctx, PathOwn, gateway.RequestOptions{}, &resp); err != nil {
		return nil, err
	}

	addr, _ := ParseAddress(resp.Address)
	households, residents := int(resp.NoOfHouseholds), int(resp.NoOfResidents)

	d := &models.NeighborhoodDetails{
		ID:                   resp.NeighborhoodID,
		Name:                 resp.NeighborhoodID,
		RegisteredAt:         resp.CreatedDate,
		LastUpdatedAt:        resp.UpdatedDate,
		TerminalID:           resp.TerminalID,
		TerminalAddress:      addr.Text,
		Coordinates:          addr.Coordinates,
		ApproxHouseholds:     households,
		ApproxResidents:      residents,
		AvgHouseholdSize:     averageSize(households, residents),
		FloodwaterSubsidence: resp.FloodSubsidence,
		FloodRelatedHazards:  nonNil(resp.Hazards),
		NotableInfo:          []string{},
		FocalPerson: models.FocalContact{
			Name:      resp.FocalPerson.Name,
			ContactNo: resp.FocalPerson.Number,
			Email:     resp.FocalPerson.Email,
			Avatar:    string(resp.FocalPerson.Photo),
		},
		AlternativeFocalPerson: models.FocalContact{
			Name:      joinName(resp.FocalPerson.AlternativeFPFirstName, resp.FocalPerson.AlternativeFPLastName),
			ContactNo: resp.FocalPerson.AlternativeFPNumber,
			Email:     resp.FocalPerson.AlternativeFPEmail,
			Avatar:    string(resp.FocalPerson.AlternativeFPImage),
		},
	}
	if resp.OtherInformation != "" {
		d.NotableInfo = []string{resp.OtherInformation}
	}
	return d, nil
}

// Update saves the editable neighborhood fields.
func (c *Client) Update(ctx context.Context, u models.NeighborhoodUpdate) error {
	if strings.TrimSpace(u.NeighborhoodID) == "" {
		return models.NewValidationError("Neighborhood ID is required")
	}
	if u.ApproxHouseholds < 0 || u.ApproxResidents < 0 {
		return models.NewValidationError("Household and resident counts cannot be negative")
	}

	err := c.gw.Request(ctx, pathPrefix+url.PathEscape(u.NeighborhoodID), gateway.RequestOptions{
		Method: http.MethodPut,
		Body: updateRequest{
			NoOfHouseholds:    u.ApproxHouseholds,
			NoOfResidents:     u.ApproxResidents,
			FloodSubsideHours: u.FloodwaterSubsidence,
			Hazards:           nonNil(u.FloodRelatedHazards),
			OtherInformation:  strings.Join(u.NotableInfo, "; "),
		},
	}, nil)
	if err != nil {
		c.log.Error("failed to update neighborhood", zap.String("neighborhood", u.NeighborhoodID), zap.Error(err))
		return err
	}
	return nil
}

func marker(id string, addr Address, created string, kind models.MarkerKind, focal string, hazards []string) models.Marker {
	return models.Marker{
		ID:              id,
		NeighborhoodID:  id,
		Coordinates:     addr.Coordinates,
		Geohash:         Cell(addr.Coordinates, CellPrecision),
		Address:         addr.Text,
		DateRegistered:  created,
		Kind:            kind,
		FocalPersonName: focal,
		Hazards:         nonNil(hazards),
	}
}

// averageSize is residents per household rounded to one decimal.
func averageSize(households, residents int) float64 {
	if households <= 0 {
		return 0
	}
	return math.Round(float64(residents)/float64(households)*10) / 10
}

func joinName(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
