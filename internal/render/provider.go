package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

// SceneRequest asks the generation provider for one rendered scene.
type SceneRequest struct {
	ProjectID       string   `json:"project_id,omitempty"`
	SceneIndex      int      `json:"scene_index"`
	Prompt          string   `json:"prompt"`
	DurationSeconds float64  `json:"duration_seconds,omitempty"`
	Style           string   `json:"style,omitempty"`
	QualityTier     string   `json:"quality_tier,omitempty"`
	StockQueryHints []string `json:"stock_query_hints,omitempty"`
}

// SceneResult is the provider's answer for one scene. Exactly one of
// ClipPath or PendingID is set: a local clip ready for stitching, or the
// identifier of a render still running on the provider's side.
type SceneResult struct {
	ClipPath  string
	PendingID string
}

// Provider generates scene clips from instructions.
type Provider interface {
	GenerateScene(ctx context.Context, req SceneRequest) (SceneResult, error)
}

// HTTPProvider talks to the generation service over its JSON API and
// downloads finished clips into the staging directory.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	stagingDir string
	client     *http.Client
}

// NewHTTPProvider constructs a provider client from configuration.
func NewHTTPProvider(cfg *config.Config) *HTTPProvider {
	timeout := time.Duration(cfg.Provider.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(cfg.Provider.BaseURL, "/"),
		apiKey:     cfg.Provider.APIKey,
		stagingDir: cfg.Paths.StagingDir,
		client:     &http.Client{Timeout: timeout},
	}
}

type sceneResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	URL    string `json:"url"`
}

// GenerateScene submits one scene instruction and waits for the provider's
// answer. A "ready" response is downloaded to staging; a "pending" response
// is surfaced as a deferred render the caller must re-poll.
func (p *HTTPProvider) GenerateScene(ctx context.Context, req SceneRequest) (SceneResult, error) {
	if p.baseURL == "" {
		return SceneResult{}, services.Wrap(services.ErrProvider, "provider", "generate",
			"generation provider is not configured", nil)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SceneResult{}, fmt.Errorf("marshal scene request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/scenes", bytes.NewReader(body))
	if err != nil {
		return SceneResult{}, fmt.Errorf("build scene request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(httpReq)
	if err != nil {
		return SceneResult{}, services.Wrap(services.ErrProvider, "provider", "generate",
			"scene generation request failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return SceneResult{}, services.Wrap(services.ErrProvider, "provider", "generate",
			fmt.Sprintf("scene generation failed with status %d", res.StatusCode), nil)
	}

	var decoded sceneResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return SceneResult{}, services.Wrap(services.ErrProvider, "provider", "generate",
			"scene generation returned an unreadable response", err)
	}

	switch strings.ToLower(decoded.Status) {
	case "pending":
		if decoded.ID == "" {
			return SceneResult{}, services.Wrap(services.ErrProvider, "provider", "generate",
				"provider deferred the render without an identifier", nil)
		}
		return SceneResult{PendingID: decoded.ID}, nil
	case "ready":
		path, err := p.download(ctx, req.SceneIndex, decoded.URL)
		if err != nil {
			return SceneResult{}, err
		}
		return SceneResult{ClipPath: path}, nil
	default:
		return SceneResult{}, services.Wrap(services.ErrProvider, "provider", "generate",
			fmt.Sprintf("provider returned unknown status %q", decoded.Status), nil)
	}
}

func (p *HTTPProvider) download(ctx context.Context, sceneIndex int, url string) (string, error) {
	if url == "" {
		return "", services.Wrap(services.ErrProvider, "provider", "download",
			"provider marked the scene ready without a clip URL", nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build clip request: %w", err)
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	res, err := p.client.Do(httpReq)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "provider", "download",
			"downloading the generated clip failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", services.Wrap(services.ErrProvider, "provider", "download",
			fmt.Sprintf("clip download failed with status %d", res.StatusCode), nil)
	}

	path := filepath.Join(p.stagingDir, fmt.Sprintf("scene-%d-%s.mp4", sceneIndex, uuid.NewString()))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create staged clip: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, res.Body); err != nil {
		_ = os.Remove(path)
		return "", services.Wrap(services.ErrProvider, "provider", "download",
			"downloading the generated clip failed", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close staged clip: %w", err)
	}
	return path, nil
}

var _ Provider = (*HTTPProvider)(nil)
