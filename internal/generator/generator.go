// Package generator provides pluggable sprite generators for the pipeline.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rcliao/sprite-memory/internal/model"
	"github.com/rcliao/sprite-memory/internal/pipeline"
)

// Provider names accepted by New.
const (
	ProviderNone     = ""
	ProviderTemplate = "template"
	ProviderHTTP     = "http"
)

// --- Template Provider ---

// TemplateGenerator stands in for an image provider when sprites are
// rendered elsewhere and served from predictable paths. It expands
// {character}, {pose}, and {emotion} in Template into the sprite URL.
type TemplateGenerator struct {
	Template string
}

// GenerateSprite implements pipeline.Generator.
func (g TemplateGenerator) GenerateSprite(ctx context.Context, req pipeline.SpriteRequest) (model.Sprite, error) {
	if err := ctx.Err(); err != nil {
		return model.Sprite{}, err
	}
	if g.Template == "" {
		return model.Sprite{}, errors.New("empty url template")
	}

	r := strings.NewReplacer(
		"{character}", url.PathEscape(req.CharacterID),
		"{pose}", url.PathEscape(req.Pose),
		"{emotion}", url.PathEscape(req.Emotion),
	)
	return model.Sprite{
		CharacterID: req.CharacterID,
		Pose:        req.Pose,
		Emotion:     req.Emotion,
		URL:         r.Replace(g.Template),
		Metadata:    sceneMetadata(req),
	}, nil
}

// --- HTTP Provider ---

// HTTPGenerator posts each sprite request as JSON to an image service and
// reads back the stored image's URLs.
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type httpResponse struct {
	URL          string         `json:"url"`
	ThumbnailURL string         `json:"thumbnail_url"`
	SpriteType   string         `json:"sprite_type"`
	Metadata     map[string]any `json:"metadata"`
}

// NewHTTPGenerator creates a generator that posts to endpoint. apiKey, when
// set, is sent as a bearer token.
func NewHTTPGenerator(endpoint, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// GenerateSprite implements pipeline.Generator.
func (g *HTTPGenerator) GenerateSprite(ctx context.Context, sr pipeline.SpriteRequest) (model.Sprite, error) {
	body, _ := json.Marshal(sr)
	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.Sprite{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return model.Sprite{}, fmt.Errorf("generator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return model.Sprite{}, fmt.Errorf("generator error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var result httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return model.Sprite{}, fmt.Errorf("decode generator response: %w", err)
	}
	if result.URL == "" {
		return model.Sprite{}, fmt.Errorf("no image url returned")
	}

	meta := sceneMetadata(sr)
	for k, v := range result.Metadata {
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[k] = v
	}
	return model.Sprite{
		CharacterID:  sr.CharacterID,
		Type:         result.SpriteType,
		Pose:         sr.Pose,
		Emotion:      sr.Emotion,
		URL:          result.URL,
		ThumbnailURL: result.ThumbnailURL,
		Metadata:     meta,
	}, nil
}

// sceneMetadata records the scene a sprite was generated for.
func sceneMetadata(req pipeline.SpriteRequest) map[string]any {
	if req.Setting == "" && req.TimeOfDay == "" {
		return nil
	}
	meta := make(map[string]any)
	if req.Setting != "" {
		meta["setting"] = req.Setting
	}
	if req.TimeOfDay != "" {
		meta["time_of_day"] = req.TimeOfDay
	}
	return meta
}

// --- Factory ---

// New creates a generator. target is the URL template for the template
// provider and the endpoint for the http provider. The empty provider
// disables generation and returns nil.
func New(provider, target, apiKey string) (pipeline.Generator, error) {
	switch provider {
	case ProviderNone:
		return nil, nil
	case ProviderTemplate:
		if target == "" {
			return nil, errors.New("template generator needs a url template")
		}
		return TemplateGenerator{Template: target}, nil
	case ProviderHTTP:
		u, err := url.Parse(target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("http generator needs an http(s) endpoint, got %q", target)
		}
		return NewHTTPGenerator(target, apiKey), nil
	}
	return nil, fmt.Errorf("unknown generator %q (use template or http)", provider)
}
