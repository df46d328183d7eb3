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

// defaultPlexURL is the Plex API host used when config omits one.
const defaultPlexURL = "https://plex.tv"

// PlexProvisioner emails an invitation to join a shared Plex library.
type PlexProvisioner struct {
	cfg    config.PlexConfig
	client *http.Client
}

// NewPlexProvisioner constructs a PlexProvisioner with a bounded-timeout client.
func NewPlexProvisioner(cfg config.PlexConfig) *PlexProvisioner {
	return &PlexProvisioner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Provision invites the email address to the configured shared server.
// The password is not needed for Plex invites and is ignored.
func (p *PlexProvisioner) Provision(ctx context.Context, email, _, _ string) error {
	baseURL := strings.TrimRight(strings.TrimSpace(p.cfg.URL), "/")
	if baseURL == "" {
		baseURL = defaultPlexURL
	}

	payload := map[string]any{
		"machineIdentifier": p.cfg.ServerID,
		"invitedEmail":      email,
		"librarySectionIds": p.cfg.LibraryIDs,
	}
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return fmt.Errorf("plex: marshal invite: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v2/shared_servers", bytes.NewReader(body))
	if errReq != nil {
		return fmt.Errorf("plex: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", p.cfg.Token)

	resp, errDo := p.client.Do(req)
	if errDo != nil {
		return fmt.Errorf("plex: invite %s: %w", email, errDo)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("plex: invite %s: status %d: %s", email, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
