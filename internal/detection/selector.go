package detection

import (
	"math"
	"sort"

	"github.com/saturnino-fabrica-de-software/idphoto/internal/domain"
)

// SelectPrimary classifies the candidates of a width x height image. The
// primary face is the largest box; ties go to the higher confidence, then
// to the box whose center is closest to the image center.
func SelectPrimary(candidates []domain.FaceCandidate, width, height int) domain.FaceSelection {
	if len(candidates) == 0 {
		return domain.FaceSelection{Status: domain.SelectionNoFace, Candidates: []domain.FaceCandidate{}}
	}

	ranked := make([]domain.FaceCandidate, len(candidates))
	copy(ranked, candidates)

	cx := float64(width) / 2
	cy := float64(height) / 2
	dist := func(c domain.FaceCandidate) float64 {
		return math.Hypot(c.Box.CenterX()-cx, c.Box.CenterY()-cy)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Box.Area() != b.Box.Area() {
			return a.Box.Area() > b.Box.Area()
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return dist(a) < dist(b)
	})

	primary := ranked[0]
	status := domain.SelectionSingleFace
	if len(ranked) > 1 {
		status = domain.SelectionMultipleFaces
	}

	return domain.FaceSelection{
		Status:     status,
		Primary:    &primary,
		Candidates: ranked,
	}
}
