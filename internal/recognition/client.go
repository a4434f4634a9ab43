package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"verifid/internal/platform/config"
	id "verifid/pkg/domain"
	"verifid/pkg/platform/circuit"
	"verifid/pkg/platform/sentinel"
)

// Client is the HTTP adapter for the recognition gateway. Images travel as
// base64 in JSON bodies; the collection identifier is part of the path.
//
// A circuit breaker guards the gateway: after repeated transport or 5xx
// failures every call fails fast with sentinel.ErrUnavailable until the
// gateway proves healthy again. 4xx responses are the caller's problem and do
// not count against the breaker.
type Client struct {
	baseURL    string
	collection string
	apiKey     string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// NewClient builds a recognition client from configuration.
func NewClient(cfg config.RecognitionConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		collection: cfg.CollectionID,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    circuit.New("recognition"),
		logger:     slog.Default(),
	}
}

func (c *Client) DetectFaces(ctx context.Context, image []byte) (Detection, error) {
	var out Detection
	err := c.post(ctx, "/v1/faces/detect", map[string]any{"image": image}, &out)
	return out, err
}

func (c *Client) IndexFace(ctx context.Context, image []byte, externalID string) (IndexedFace, error) {
	var out IndexedFace
	err := c.post(ctx, c.collectionPath("/faces"), map[string]any{
		"image":       image,
		"external_id": externalID,
		"max_faces":   1,
	}, &out)
	if err != nil {
		return IndexedFace{}, err
	}
	if out.FaceID.IsNil() {
		return IndexedFace{}, sentinel.ErrNoFace
	}
	return out, nil
}

func (c *Client) SearchFacesByImage(ctx context.Context, image []byte, threshold float64, maxResults int) ([]Match, error) {
	var out struct {
		Matches []Match `json:"matches"`
	}
	err := c.post(ctx, c.collectionPath("/search"), map[string]any{
		"image":       image,
		"threshold":   threshold,
		"max_results": maxResults,
	}, &out)
	return out.Matches, err
}

// CompareFaces requests the comparison with threshold zero so the gateway
// always reports the real similarity, then applies the caller's threshold
// locally. Without this, sub-threshold attempts would record similarity 0 and
// the audit trail would lose the actual score.
func (c *Client) CompareFaces(ctx context.Context, source, target []byte, threshold float64) (Comparison, error) {
	if threshold < 0 || threshold > 100 {
		return Comparison{}, fmt.Errorf("invalid threshold %v: must be between 0 and 100", threshold)
	}
	var out Comparison
	err := c.post(ctx, "/v1/faces/compare", map[string]any{
		"source":    source,
		"target":    target,
		"threshold": 0,
	}, &out)
	if err != nil {
		return Comparison{}, err
	}
	out.MatchFound = out.Similarity >= threshold
	return out, nil
}

func (c *Client) DeleteFaces(ctx context.Context, faceIDs []id.FaceID) error {
	return c.post(ctx, c.collectionPath("/faces/delete"), map[string]any{"face_ids": faceIDs}, nil)
}

func (c *Client) ListFaces(ctx context.Context) ([]CollectionFace, error) {
	var out struct {
		Faces []CollectionFace `json:"faces"`
	}
	err := c.get(ctx, c.collectionPath("/faces"), &out)
	return out.Faces, err
}

func (c *Client) CreateLivenessSession(ctx context.Context) (id.LivenessSessionID, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/v1/liveness/sessions", map[string]any{}, &out); err != nil {
		return "", err
	}
	return id.LivenessSessionID(out.SessionID), nil
}

func (c *Client) GetLivenessResult(ctx context.Context, sessionID id.LivenessSessionID) (LivenessResult, error) {
	var out LivenessResult
	err := c.get(ctx, "/v1/liveness/sessions/"+url.PathEscape(sessionID.String()), &out)
	return out, err
}

func (c *Client) collectionPath(suffix string) string {
	return "/v1/collections/" + url.PathEscape(c.collection) + suffix
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode recognition request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("recognition circuit open: %w", sentinel.ErrUnavailable)
	}

	err := c.doOnce(req, out)
	if err != nil && errors.Is(err, sentinel.ErrUnavailable) {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Error("recognition circuit opened", "url", req.URL.String())
		}
		return err
	}

	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("recognition circuit closed")
	}
	return err
}

func (c *Client) doOnce(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recognition service: %s: %w", err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return sentinel.ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return sentinel.ErrNoFace
	case resp.StatusCode >= 500:
		return fmt.Errorf("recognition service returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recognition service returned %d: %s", resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode recognition response: %w", err)
	}
	return nil
}
