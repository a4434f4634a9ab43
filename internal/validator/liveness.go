package validator

import (
	"context"
	"fmt"

	"verifid/internal/recognition"
	"verifid/internal/results"
	id "verifid/pkg/domain"
	dErrors "verifid/pkg/domain-errors"
	"verifid/pkg/requestcontext"
)

// LivenessSession is the handle returned to the client starting a liveness
// flow. The token binds the session to one document so the completion call
// cannot be replayed for another identity.
type LivenessSession struct {
	SessionID id.LivenessSessionID `json:"session_id"`
	Token     string               `json:"token"`
}

// CreateLivenessSession starts a recognition-service-managed liveness flow
// for the given document.
func (s *Service) CreateLivenessSession(ctx context.Context, documentType, documentNumber string) (LivenessSession, error) {
	subject, err := id.NewSubjectRef(documentType, documentNumber, 0)
	if err != nil {
		return LivenessSession{}, err
	}

	sessionID, err := s.recognizer.CreateLivenessSession(ctx)
	if err != nil {
		return LivenessSession{}, fmt.Errorf("create liveness session: %w", err)
	}

	token, err := s.tokens.GenerateSessionToken(sessionID, subject.DocumentType, subject.DocumentNumber, s.sessionExpiry)
	if err != nil {
		return LivenessSession{}, fmt.Errorf("issue session token: %w", err)
	}

	s.logger.Info("liveness session created",
		"session_id", sessionID, "document_type", subject.DocumentType)
	return LivenessSession{SessionID: sessionID, Token: token}, nil
}

// CompleteLivenessSession resolves a finished liveness session and feeds its
// reference image through the shared validation pipeline.
//
// The session must be terminal-successful; callers polling too early get
// CodeConflict and should retry after the session finishes. A session whose
// liveness confidence is below the dedicated floor produces a persisted
// LOW_LIVENESS_CONFIDENCE result rather than an error: it was a real,
// auditable attempt.
func (s *Service) CompleteLivenessSession(ctx context.Context, token string) (results.ComparisonResult, error) {
	sessionID, subject, err := s.tokens.ExtractSession(token)
	if err != nil {
		return results.ComparisonResult{}, err
	}
	// The attempt number comes from the counter, not from session metadata.
	subject.Attempt = 0

	session, err := s.recognizer.GetLivenessResult(ctx, sessionID)
	if err != nil {
		return results.ComparisonResult{}, fmt.Errorf("fetch liveness result: %w", err)
	}

	switch session.Status {
	case recognition.LivenessSucceeded:
		// proceed
	case recognition.LivenessCreated, recognition.LivenessInProgress:
		return results.ComparisonResult{}, dErrors.New(dErrors.CodeConflict, "liveness session has not finished")
	default:
		return results.ComparisonResult{}, dErrors.New(dErrors.CodeBadRequest,
			fmt.Sprintf("liveness session ended with status %s", session.Status))
	}

	now := requestcontext.Now(ctx)
	attempt := s.nextAttempt(ctx, subject)
	subjectKey := fmt.Sprintf("%s-%s-user-%s-attempt-%d.jpg",
		subject.DocumentType, subject.DocumentNumber, now.UTC().Format("20060102150405"), attempt)

	if session.Confidence < s.thresholds.LivenessFloor {
		result := s.skeleton(subjectKey, now)
		result.DocumentType = subject.DocumentType
		result.DocumentNumber = subject.DocumentNumber
		result.ConfidenceScore = session.Confidence
		result = s.fail(ctx, result, results.StatusLowLivenessConfidence, results.ErrorLowLivenessConfidence,
			fmt.Sprintf("liveness confidence %.1f below floor %.1f", session.Confidence, s.thresholds.LivenessFloor),
			subject, attempt)
		return s.persist(ctx, result)
	}

	image := session.ReferenceImage
	if len(image) == 0 && session.ReferenceKey != "" {
		image, err = s.objects.Get(ctx, s.subjectsBucket, session.ReferenceKey)
		if err != nil {
			return results.ComparisonResult{}, fmt.Errorf("fetch liveness reference image: %w", err)
		}
	}
	if len(image) == 0 {
		return results.ComparisonResult{}, dErrors.New(dErrors.CodeUnavailable, "liveness session produced no reference image")
	}

	return s.ValidateImage(ctx, subjectKey, image)
}

// nextAttempt advances the attempt counter once, here. The number is encoded
// into the synthetic subject key, so the pipeline's own RecordAttempt treats
// it as authoritative instead of advancing the counter a second time.
func (s *Service) nextAttempt(ctx context.Context, subject id.SubjectRef) int {
	n, err := s.retries.RecordAttempt(ctx, subject)
	if err != nil {
		return 1
	}
	return n
}
