package server

import (
	"context"

	"github.com/maxepunk/aln-orchestrator/internal/game"
	"github.com/maxepunk/aln-orchestrator/internal/session"
)

// StateSnapshot is the full-consistency view sent to a station on
// (re)identify and served at GET /api/state.
type StateSnapshot struct {
	Session      *game.Session    `json:"session"`
	Devices      []game.Device    `json:"devices"`
	VideoStatus  game.VideoStatus `json:"videoStatus"`
	CurrentVideo string           `json:"currentVideo,omitempty"`
}

func (d Deps) snapshot() StateSnapshot {
	status, current := d.Video.Status()
	return StateSnapshot{
		Session:      d.Manager.Snapshot(),
		Devices:      d.Registry.List(),
		VideoStatus:  status,
		CurrentVideo: current,
	}
}

// wireCommitFanout makes every durably committed transaction broadcast in
// commit order, for both the WebSocket and HTTP submission paths.
func (d Deps) wireCommitFanout() {
	d.Processor.SetCommitHook(func(res session.ScanResult) {
		d.Broker.Publish(roomStations, "transaction:new", res)
		if res.TeamScore != nil {
			d.Broker.Publish(roomStations, "score:updated", res.TeamScore)
		}
	})
}

// submitScan runs a scan event through the processor and performs the
// post-commit side effects that are allowed to lag the broadcast: the
// game-state snapshot write and the video playback intent.
func (d Deps) submitScan(ctx context.Context, req session.ScanRequest) (session.ScanResult, error) {
	res, err := d.Processor.Process(ctx, req)
	if !res.Committed {
		return res, err
	}

	status, _ := d.Video.Status()
	if serr := d.Manager.PersistGameState(ctx, status); serr != nil {
		d.Logger.Error("game-state snapshot failed", "error", serr)
	}

	if res.VideoAsset != "" {
		if perr := d.Video.Play(ctx, res.VideoAsset); perr != nil {
			d.Logger.Error("video playback intent failed", "asset", res.VideoAsset, "error", perr)
		} else {
			d.broadcastVideoStatus()
		}
	}
	return res, err
}

func (d Deps) broadcastVideoStatus() {
	status, current := d.Video.Status()
	d.Broker.Publish(roomStations, "video:status", map[string]any{
		"status": status,
		"video":  current,
	})
}
