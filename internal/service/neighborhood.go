package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/atinyakov/ResQWave/internal/repository"
)

// ErrNeighborhoodNotFound is returned when the caller has no such neighborhood.
var ErrNeighborhoodNotFound = errors.New("neighborhood not found")

// NeighborhoodRepository defines the persistence operations
// required by the neighborhood service.
type NeighborhoodRepository interface {
	Own(ctx context.Context, userID string) (*models.NeighborhoodRecord, error)
	Others(ctx context.Context, userID string) ([]models.NeighborhoodRecord, error)
	Update(ctx context.Context, userID string, u models.NeighborhoodUpdate) error
}

// FocalSummary is the focal person block of neighborhood responses.
type FocalSummary struct {
	Name                   string `json:"name"`
	Number                 string `json:"number"`
	Email                  string `json:"email"`
	AlternativeFPFirstName string `json:"alternativeFPFirstName,omitempty"`
	AlternativeFPLastName  string `json:"alternativeFPLastName,omitempty"`
	AlternativeFPEmail     string `json:"alternativeFPEmail,omitempty"`
	AlternativeFPNumber    string `json:"alternativeFPNumber,omitempty"`
}

// OwnMarker is the map entry of the caller's neighborhood.
type OwnMarker struct {
	NeighborhoodID string       `json:"neighborhoodID"`
	TerminalID     string       `json:"terminalID"`
	FocalPerson    FocalSummary `json:"focalPerson"`
	Address        *string      `json:"address"`
	Hazards        []string     `json:"hazards"`
	CreatedDate    string       `json:"createdDate"`
}

// OtherMarker is the map entry of another neighborhood.
type OtherMarker struct {
	NeighborhoodID string   `json:"neighborhoodID"`
	Hazards        []string `json:"hazards"`
	CreatedDate    string   `json:"createdDate"`
	Address        *string  `json:"address"`
	FocalPerson    string   `json:"focalPerson"`
}

// Details is the detail view of the caller's neighborhood.
type Details struct {
	NeighborhoodID   string       `json:"neighborhoodID"`
	TerminalID       string       `json:"terminalID"`
	NoOfHouseholds   int          `json:"noOfHouseholds"`
	NoOfResidents    int          `json:"noOfResidents"`
	FloodSubsidence  string       `json:"floodwaterSubsidenceDuration"`
	Hazards          []string     `json:"hazards"`
	OtherInformation string       `json:"otherInformation"`
	FocalPerson      FocalSummary `json:"focalPerson"`
	Address          *string      `json:"address"`
	CreatedDate      string       `json:"createdDate"`
	UpdatedDate      string       `json:"updatedDate"`
}

// NeighborhoodService serves neighborhood data to focal persons.
type NeighborhoodService struct {
	repo NeighborhoodRepository
}

// NewNeighborhoodService constructs a NeighborhoodService.
func NewNeighborhoodService(repo NeighborhoodRepository) *NeighborhoodService {
	return &NeighborhoodService{repo: repo}
}

// MapOwn returns the map entry of userID's neighborhood.
func (s *NeighborhoodService) MapOwn(ctx context.Context, userID string) (*OwnMarker, error) {
	n, err := s.own(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &OwnMarker{
		NeighborhoodID: n.ID,
		TerminalID:     n.TerminalID,
		FocalPerson:    FocalSummary{Name: n.FocalName, Number: n.FocalPhone, Email: n.FocalEmail},
		Address:        n.Address,
		Hazards:        nonNil(n.Hazards),
		CreatedDate:    date(n.CreatedAt),
	}, nil
}

// MapOthers returns the map entries of every other neighborhood.
func (s *NeighborhoodService) MapOthers(ctx context.Context, userID string) ([]OtherMarker, error) {
	rows, err := s.repo.Others(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]OtherMarker, 0, len(rows))
	for _, n := range rows {
		out = append(out, OtherMarker{
			NeighborhoodID: n.ID,
			Hazards:        nonNil(n.Hazards),
			CreatedDate:    date(n.CreatedAt),
			Address:        n.Address,
			FocalPerson:    n.FocalName,
		})
	}
	return out, nil
}

// Details returns the detail view of userID's neighborhood.
func (s *NeighborhoodService) Details(ctx context.Context, userID string) (*Details, error) {
	n, err := s.own(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Details{
		NeighborhoodID:   n.ID,
		TerminalID:       n.TerminalID,
		NoOfHouseholds:   n.Households,
		NoOfResidents:    n.Residents,
		FloodSubsidence:  n.FloodSubsidence,
		Hazards:          nonNil(n.Hazards),
		OtherInformation: n.OtherInformation,
		FocalPerson: FocalSummary{
			Name:                   n.FocalName,
			Number:                 n.FocalPhone,
			Email:                  n.FocalEmail,
			AlternativeFPFirstName: n.AltFirstName,
			AlternativeFPLastName:  n.AltLastName,
			AlternativeFPEmail:     n.AltEmail,
			AlternativeFPNumber:    n.AltNumber,
		},
		Address:     n.Address,
		CreatedDate: date(n.CreatedAt),
		UpdatedDate: date(n.UpdatedAt),
	}, nil
}

// Update saves the editable fields of a neighborhood managed by userID.
func (s *NeighborhoodService) Update(ctx context.Context, userID string, u models.NeighborhoodUpdate) error {
	if strings.TrimSpace(u.NeighborhoodID) == "" || u.ApproxHouseholds < 0 || u.ApproxResidents < 0 {
		return ErrInvalidInput
	}
	err := s.repo.Update(ctx, userID, u)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNeighborhoodNotFound
	}
	return err
}

func (s *NeighborhoodService) own(ctx context.Context, userID string) (*models.NeighborhoodRecord, error) {
	n, err := s.repo.Own(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNeighborhoodNotFound
	}
	return n, err
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
