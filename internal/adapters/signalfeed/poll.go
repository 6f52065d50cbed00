package signalfeed

import (
	"context"
	"strings"
	"time"
)

// pollLoop fetches the snapshot baseline every cfg.PollInterval and
// upserts all entries into the shared map (spec.md §4.2).
func (f *Feed) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	f.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.pollOnce(ctx)
		}
	}
}

func (f *Feed) pollOnce(ctx context.Context) {
	url := strings.TrimRight(f.cfg.BrainAPIURL, "/") + "/snapshot"

	var snap snapshotResponse
	resp, err := f.http.R().
		SetContext(ctx).
		SetResult(&snap).
		Get(url)
	if err != nil {
		f.log.Warn("snapshot_failed", "err", err)
		return
	}
	if resp.IsError() {
		f.log.Warn("snapshot_failed", "status", resp.StatusCode())
		return
	}

	ts := snap.T
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	f.scores.Upsert(snap.M.toMap(), snap.E, ts)

	if !f.scores.PushOK() {
		f.log.Info("snapshot_ok", "symbols", len(snap.M), "epoch", snap.E)
	}
}
