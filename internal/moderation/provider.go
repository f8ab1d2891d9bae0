package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	endpointImage = "moderate-image"
	endpointDeep  = "moderate-deep"

	maxProviderBody = 1 << 20
)

// Verdict is a validated classifier provider response.
type Verdict struct {
	Risk       float64
	Tags       []string
	Confidence float64
}

// Classifier is a remote content classifier.
type Classifier interface {
	// ClassifyImage runs the fast image check on a thumbnail URL.
	ClassifyImage(ctx context.Context, imageURL string) (*Verdict, error)
	// AnalyzeDeep runs the slow, full-payload analysis.
	AnalyzeDeep(ctx context.Context, in Input) (*Verdict, error)
}

// ProviderError is returned for any failed provider call: transport error,
// non-2xx status or a response that does not match the expected schema.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("moderation provider %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("moderation provider %s: %v", e.Endpoint, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPClassifier talks to the moderation provider over JSON/HTTP with a bearer
// credential. Every call is attempted exactly once.
type HTTPClassifier struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func NewHTTPClassifier(baseURL, apiKey string) *HTTPClassifier {
	return &HTTPClassifier{
		Client:  &http.Client{Timeout: 3 * time.Minute},
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
	}
}

type imageRequest struct {
	ImageURL string `json:"image_url"`
	FastMode bool   `json:"fast_mode"`
}

type deepRequest struct {
	Type     ContentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	MediaURL string      `json:"media_url,omitempty"`
	Metadata *Metadata   `json:"metadata,omitempty"`
}

// providerResponse uses pointers so that missing fields can be told apart
// from zero values.
type providerResponse struct {
	Risk       *float64  `json:"risk"`
	Tags       *[]string `json:"tags"`
	Confidence *float64  `json:"confidence"`
}

func (hc *HTTPClassifier) ClassifyImage(ctx context.Context, imageURL string) (*Verdict, error) {
	return hc.post(ctx, endpointImage, imageRequest{ImageURL: imageURL, FastMode: true})
}

func (hc *HTTPClassifier) AnalyzeDeep(ctx context.Context, in Input) (*Verdict, error) {
	return hc.post(ctx, endpointDeep, deepRequest{
		Type:     in.Type,
		Text:     in.Text,
		MediaURL: in.MediaRef,
		Metadata: in.Metadata,
	})
}

func (hc *HTTPClassifier) post(ctx context.Context, endpoint string, body any) (*Verdict, error) {
	fail := func(status int, err error) (*Verdict, error) {
		providerErrors.WithLabelValues(endpoint).Inc()
		return nil, &ProviderError{Endpoint: endpoint, StatusCode: status, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fail(0, fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.BaseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Authorization", "Bearer "+hc.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	client := hc.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, errors.New("unexpected response status"))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		return fail(resp.StatusCode, err)
	}
	return verdict, nil
}

// parseVerdict decodes and validates a provider body. Missing or out of range
// risk and confidence are rejected rather than defaulted.
func parseVerdict(raw []byte) (*Verdict, error) {
	var out providerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if out.Risk == nil {
		return nil, errors.New("malformed response: missing risk")
	}
	if *out.Risk < 0 || *out.Risk > 1 {
		return nil, fmt.Errorf("malformed response: risk %v out of range", *out.Risk)
	}
	if out.Confidence == nil {
		return nil, errors.New("malformed response: missing confidence")
	}
	if *out.Confidence < 0 || *out.Confidence > 1 {
		return nil, fmt.Errorf("malformed response: confidence %v out of range", *out.Confidence)
	}

	var tags []string
	if out.Tags != nil {
		tags = *out.Tags
	}
	return &Verdict{
		Risk:       *out.Risk,
		Tags:       dedupeTags(tags),
		Confidence: *out.Confidence,
	}, nil
}
