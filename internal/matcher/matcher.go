package matcher

import (
	"sort"

	"github.com/codeBaron-dev/Rider/internal/eta"
	"github.com/codeBaron-dev/Rider/internal/geo"
	"github.com/codeBaron-dev/Rider/internal/models"
	"github.com/codeBaron-dev/Rider/internal/pricing"
)

// Service ranks roster drivers against a rider location.
type Service struct {
	Pricer   *pricing.Engine
	SpeedKmh float64
	TopN     int
}

// Rank returns candidates ordered by distance, nearest first; ties go to the
// lower plate number. TopN <= 0 returns every driver.
func (s *Service) Rank(origin models.Coord, drivers []models.Driver) []models.Candidate {
	pricer := s.Pricer
	if pricer == nil {
		pricer = pricing.NewEngine(pricing.WallClock{})
	}

	cands := make([]models.Candidate, 0, len(drivers))
	for _, d := range drivers {
		if d.Loc.Validate() != nil {
			continue
		}
		dist := geo.Distance(d.Loc, origin)
		cands = append(cands, models.Candidate{
			Driver:         d,
			DistanceMeters: dist,
			Bearing:        geo.Bearing(d.Loc, origin),
			ETAMinutes:     eta.Minutes(dist, s.SpeedKmh),
			Fare:           pricer.Quote(dist).Fare,
		})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].DistanceMeters != cands[j].DistanceMeters {
			return cands[i].DistanceMeters < cands[j].DistanceMeters
		}
		return cands[i].Driver.CarPlateNumber < cands[j].Driver.CarPlateNumber
	})
	if s.TopN > 0 && len(cands) > s.TopN {
		cands = cands[:s.TopN]
	}
	return cands
}

// Best returns the nearest candidate.
func (s *Service) Best(origin models.Coord, drivers []models.Driver) (models.Candidate, bool) {
	cands := s.Rank(origin, drivers)
	if len(cands) == 0 {
		return models.Candidate{}, false
	}
	return cands[0], true
}
