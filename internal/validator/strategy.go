package validator

import (
	"context"
	"errors"
	"fmt"

	"verifid/pkg/platform/sentinel"
)

// Strategy names recorded on each result.
const (
	StrategyDirect = "direct"
	StrategyHybrid = "hybrid"
)

// comparison is the outcome of either strategy: the best similarity found and
// where it came from. MatchedPerson is known only when the winning candidate
// already has a metadata record.
type comparison struct {
	Similarity    float64
	Strategy      string
	Candidates    int
	MatchedKey    string
	MatchedPerson string
}

// compareDirect runs one pairwise comparison against the companion document
// image.
func (s *Service) compareDirect(ctx context.Context, subjectImage []byte, documentKey string) (comparison, error) {
	documentImage, err := s.objects.Get(ctx, s.documentsBucket, documentKey)
	if err != nil {
		return comparison{}, fmt.Errorf("fetch document image %s: %w", documentKey, err)
	}

	result, err := s.recognizer.CompareFaces(ctx, subjectImage, documentImage, s.thresholds.LowBar)
	if err != nil {
		return comparison{}, err
	}
	return comparison{
		Similarity: result.Similarity,
		Strategy:   StrategyDirect,
		Candidates: 1,
		MatchedKey: documentKey,
	}, nil
}

// compareHybrid searches the collection for candidate faces above the search
// floor, then runs a detailed pairwise comparison against each candidate's
// source document image, keeping the highest similarity. Candidates whose
// metadata record has gone missing are skipped; they are reconciliation work,
// not validation failures. Zero usable candidates falls back to the direct
// strategy so an index gap never blocks a user with a valid document.
func (s *Service) compareHybrid(ctx context.Context, subjectImage []byte, documentKey string) (comparison, error) {
	matches, err := s.recognizer.SearchFacesByImage(ctx, subjectImage, s.thresholds.SearchFloor, s.thresholds.MaxCandidates)
	if err != nil {
		return comparison{}, err
	}

	best := comparison{Strategy: StrategyHybrid, Candidates: len(matches)}
	usable := 0
	for _, match := range matches {
		record, err := s.documents.GetByFaceID(ctx, match.FaceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.logger.Warn("search returned face with no metadata record, skipping",
					"face_id", match.FaceID)
				continue
			}
			return comparison{}, fmt.Errorf("resolve candidate %s: %w", match.FaceID, err)
		}

		candidateImage, err := s.objects.Get(ctx, s.documentsBucket, record.StorageKey)
		if err != nil {
			s.logger.Warn("candidate document image unavailable, skipping",
				"storage_key", record.StorageKey, "error", err)
			continue
		}

		result, err := s.recognizer.CompareFaces(ctx, subjectImage, candidateImage, s.thresholds.LowBar)
		if err != nil {
			return comparison{}, err
		}
		usable++
		if result.Similarity > best.Similarity {
			best.Similarity = result.Similarity
			best.MatchedKey = record.StorageKey
			best.MatchedPerson = record.PersonName
		}
	}

	if usable == 0 {
		return s.compareDirect(ctx, subjectImage, documentKey)
	}
	return best, nil
}
