package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joinarr/joinarr/internal/config"
)

// AudiobookshelfProvisioner creates an account on a remote AudiobookShelf
// server with the registrant's own credentials.
type AudiobookshelfProvisioner struct {
	cfg    config.ProvisionerConfig
	client *http.Client
}

// NewAudiobookshelfProvisioner constructs an AudiobookshelfProvisioner with a
// bounded-timeout client.
func NewAudiobookshelfProvisioner(cfg config.ProvisionerConfig) *AudiobookshelfProvisioner {
	return &AudiobookshelfProvisioner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Provision creates the remote user account. Nothing extra is returned on
// success.
func (p *AudiobookshelfProvisioner) Provision(ctx context.Context, email, username, password string) error {
	baseURL := strings.TrimRight(strings.TrimSpace(p.cfg.URL), "/")
	if baseURL == "" {
		return fmt.Errorf("audiobookshelf: missing server url")
	}

	payload := map[string]any{
		"username": username,
		"password": password,
		"email":    email,
		"type":     "user",
		"isActive": true,
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("audiobookshelf: marshal user: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/users", bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("audiobookshelf: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("audiobookshelf: create %s: %w", username, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("audiobookshelf: create %s: status %d: %s", username, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
