package bot

import (
	"bytes"
	"context"

	"passbot/internal/render"
	"passbot/internal/status"
	kit "passbot/internal/transport"
	"passbot/pkg/logx"
)

// NotifyStatus sends the photo+caption notification for one snapshot.
// Send failures are logged and dropped; the core never retries.
func (r *Router) NotifyStatus(ctx context.Context, chatID int64, snap *status.Snapshot) {
	label, _ := r.eng.Label(chatID, snap.ID)
	caption := render.Caption(snap, label)
	img := r.rend.ProgressImage(snap)

	_, err := r.sender.SendPhoto(ctx, kit.ChatTarget{ChatID: chatID}, bytes.NewReader(img), caption, nil)
	if err != nil {
		r.log.Warn("status notification failed",
			logx.Int64("chat_id", chatID), logx.String("id", snap.ID), logx.Err(err))
	}
}

// NotifyUnavailable sends the one shared fetch-failure message.
func (r *Router) NotifyUnavailable(ctx context.Context, chatID int64, id string) {
	r.reply(ctx, chatID, render.Unavailable(id))
}
