// Package recognition defines the face recognition capability consumed by the
// indexing and validation pipelines. The capability itself (detection,
// comparison, liveness) is an external black box; this package carries its
// interface, wire types, and a thin HTTP adapter.
package recognition

//go:generate mockgen -source=recognition.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"

	id "verifid/pkg/domain"
)

// BoundingBox locates a face within an image, in relative coordinates.
type BoundingBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Face is one detected face.
type Face struct {
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Detection is the result of a DetectFaces call.
type Detection struct {
	FaceCount int    `json:"face_count"`
	Faces     []Face `json:"faces"`
}

// IndexedFace is the registration receipt for a face added to the collection.
type IndexedFace struct {
	FaceID      id.FaceID   `json:"face_id"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// Match is one candidate from an index search.
type Match struct {
	FaceID     id.FaceID `json:"face_id"`
	ExternalID string    `json:"external_id"`
	Similarity float64   `json:"similarity"`
}

// Comparison is the result of a pairwise face comparison. Similarity is
// always the real measured value, regardless of whether it cleared the
// caller's threshold.
type Comparison struct {
	MatchFound  bool    `json:"match_found"`
	Similarity  float64 `json:"similarity"`
	TargetFaces int     `json:"target_faces"`
}

// CollectionFace is an entry in the collection listing, used by orphan
// reconciliation.
type CollectionFace struct {
	FaceID     id.FaceID `json:"face_id"`
	ExternalID string    `json:"external_id"`
}

// LivenessStatus is the lifecycle state of a liveness session.
type LivenessStatus string

const (
	LivenessCreated    LivenessStatus = "CREATED"
	LivenessInProgress LivenessStatus = "IN_PROGRESS"
	LivenessSucceeded  LivenessStatus = "SUCCEEDED"
	LivenessFailed     LivenessStatus = "FAILED"
	LivenessExpired    LivenessStatus = "EXPIRED"
)

// LivenessResult is the terminal output of a liveness session. ReferenceImage
// is populated by value; ReferenceKey points at a stored copy when the
// service wrote one instead.
type LivenessResult struct {
	Status         LivenessStatus `json:"status"`
	Confidence     float64        `json:"confidence"`
	ReferenceImage []byte         `json:"reference_image,omitempty"`
	ReferenceKey   string         `json:"reference_key,omitempty"`
}

// Service is the face recognition capability.
//
// Errors: implementations return sentinel.ErrNoFace when an operation
// requires a face and the image has none, and sentinel.ErrNotFound for
// unknown faces/sessions; everything else is a transport fault.
type Service interface {
	// DetectFaces reports how many faces an image contains.
	DetectFaces(ctx context.Context, image []byte) (Detection, error)

	// IndexFace registers the primary face of an image into the collection
	// under the given external identifier.
	IndexFace(ctx context.Context, image []byte, externalID string) (IndexedFace, error)

	// SearchFacesByImage returns collection candidates whose similarity to
	// the probe image clears the threshold, best first.
	SearchFacesByImage(ctx context.Context, image []byte, threshold float64, maxResults int) ([]Match, error)

	// CompareFaces measures the similarity between the best face pair of the
	// two images and applies the threshold to MatchFound.
	CompareFaces(ctx context.Context, source, target []byte, threshold float64) (Comparison, error)

	// DeleteFaces removes faces from the collection. Used for the indexing
	// rollback compensation and administrative cleanup.
	DeleteFaces(ctx context.Context, faceIDs []id.FaceID) error

	// ListFaces enumerates the collection for reconciliation.
	ListFaces(ctx context.Context) ([]CollectionFace, error)

	// CreateLivenessSession starts a managed liveness flow.
	CreateLivenessSession(ctx context.Context) (id.LivenessSessionID, error)

	// GetLivenessResult fetches the session outcome. The reference image is
	// only meaningful when Status is LivenessSucceeded.
	GetLivenessResult(ctx context.Context, sessionID id.LivenessSessionID) (LivenessResult, error)
}
