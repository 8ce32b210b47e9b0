package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maxepunk/aln-orchestrator/internal/game"
)

// VideoController emits play/stop intents to the external AV controller over
// its HTTP control interface and tracks the last acknowledged status. The
// device itself is outside the core's contract; all we require is a
// success/failure acknowledgment.
type VideoController struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string

	mu      sync.Mutex
	status  game.VideoStatus
	current string
}

func NewVideoController(baseURL string, logger *slog.Logger) *VideoController {
	return &VideoController{
		logger:  logger,
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: baseURL,
		status:  game.VideoIdle,
	}
}

// Play asks the AV controller to begin playback of an asset. Status only
// changes on a successful acknowledgment.
func (v *VideoController) Play(ctx context.Context, asset string) error {
	if err := v.post(ctx, "/play", map[string]string{"video": asset}); err != nil {
		return err
	}
	v.mu.Lock()
	v.status = game.VideoPlaying
	v.current = asset
	v.mu.Unlock()
	v.logger.Info("video playback started", "asset", asset)
	return nil
}

// Stop asks the AV controller to stop playback.
func (v *VideoController) Stop(ctx context.Context) error {
	if err := v.post(ctx, "/stop", nil); err != nil {
		return err
	}
	v.mu.Lock()
	v.status = game.VideoIdle
	v.current = ""
	v.mu.Unlock()
	v.logger.Info("video playback stopped")
	return nil
}

// Status returns the last acknowledged playback state and asset.
func (v *VideoController) Status() (game.VideoStatus, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status, v.current
}

func (v *VideoController) post(ctx context.Context, path string, payload any) error {
	if v.baseURL == "" {
		// No controller configured; the intent is logged and dropped.
		v.logger.Debug("no AV controller configured, dropping intent", "path", path)
		return nil
	}
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("AV controller unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("AV controller returned %s", resp.Status)
	}
	return nil
}
