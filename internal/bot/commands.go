package bot

import (
	"context"
	"strings"

	"passbot/internal/status"
	"passbot/internal/storage"
	kit "passbot/internal/transport"
	"passbot/pkg/logx"
)

const helpText = `Hi!

Send me an application number (as shown on the status site) and I'll reply
with its current status and check it again every day.

By default you only get a message when the completion percent changes.
Use /mode_daily if you want a status every day regardless.

Commands:
/list - which numbers are tracked right now
/remove <number> - stop tracking a number
/clear - remove all numbers and labels
/check - check all numbers right now
/label <number> <text> - name a number (e.g. "spouse passport")
/mode - show or change the notification mode
/mode_daily - send statuses every day
/mode_on_change - notify only when the percent changes
/erase_data - delete everything stored for this chat`

func (r *Router) cmdStart(ctx context.Context, msg *kit.Message, _ []string) {
	r.reply(ctx, msg.ChatID, helpText)
}

func (r *Router) cmdList(ctx context.Context, msg *kit.Message, _ []string) {
	subs := r.eng.List(msg.ChatID)
	if len(subs) == 0 {
		r.reply(ctx, msg.ChatID, "Nothing is tracked for this chat yet.")
		return
	}
	lines := []string{"Tracking these applications:"}
	for _, sub := range subs {
		line := "- " + sub.ID
		if label, ok := r.eng.Label(msg.ChatID, sub.ID); ok {
			line += " — " + label
		}
		lines = append(lines, line)
	}
	r.reply(ctx, msg.ChatID, strings.Join(lines, "\n"))
}

func (r *Router) cmdRemove(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) == 0 {
		r.reply(ctx, msg.ChatID, "Usage: /remove <number>")
		return
	}
	id := status.ExtractID(strings.Join(args, " "))
	if id == "" {
		id = args[0]
	}
	if r.eng.Remove(msg.ChatID, id) {
		r.reply(ctx, msg.ChatID, "Application "+id+" is no longer tracked.")
	} else {
		r.reply(ctx, msg.ChatID, "That number wasn't in the list.")
	}
	r.eng.SetLabel(msg.ChatID, id, "")
}

func (r *Router) cmdClear(ctx context.Context, msg *kit.Message, _ []string) {
	if r.eng.ClearAll(msg.ChatID) {
		r.reply(ctx, msg.ChatID, "All applications and labels for this chat removed.")
	} else {
		r.reply(ctx, msg.ChatID, "Nothing was tracked anyway.")
	}
}

// cmdCheck is the manual sweep over this chat's applications. It always
// sends the current status (the on_change skip doesn't apply here) but does
// the same last-percent bookkeeping as a scheduled check.
func (r *Router) cmdCheck(ctx context.Context, msg *kit.Message, _ []string) {
	subs := r.eng.List(msg.ChatID)
	if len(subs) == 0 {
		r.reply(ctx, msg.ChatID, "No saved applications for this chat.")
		return
	}

	r.reply(ctx, msg.ChatID, "Checking statuses...")

	for _, sub := range subs {
		snap, err := r.fetchOne(ctx, sub.ID)
		if err != nil {
			r.log.Warn("manual check fetch failed",
				logx.Int64("chat_id", msg.ChatID), logx.String("id", sub.ID), logx.Err(err))
			r.NotifyUnavailable(ctx, msg.ChatID, sub.ID)
			continue
		}
		r.NotifyStatus(ctx, msg.ChatID, snap)
		r.eng.SetPercent(msg.ChatID, sub.ID, snap.Internal.Percent)
	}
}

func (r *Router) cmdMode(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) == 0 {
		if r.eng.Mode(msg.ChatID) == storage.ModeDaily {
			r.reply(ctx, msg.ChatID, "Current mode: daily.\n\n"+
				"You get every tracked application's status each day, even when the percent hasn't moved.\n\n"+
				"/mode_on_change - switch to change-only notifications")
		} else {
			r.reply(ctx, msg.ChatID, "Current mode: on change.\n\n"+
				"You only get a message when an application's completion percent changes.\n\n"+
				"/mode_daily - switch to daily statuses")
		}
		return
	}

	switch strings.ToLower(args[0]) {
	case "daily":
		r.cmdModeDaily(ctx, msg, nil)
	case "on_change", "change":
		r.cmdModeOnChange(ctx, msg, nil)
	default:
		r.reply(ctx, msg.ChatID, "Unknown mode.\n"+
			"Use:\n/mode on_change - notify only when the percent changes\n"+
			"/mode daily - notify every day")
	}
}

func (r *Router) cmdModeDaily(ctx context.Context, msg *kit.Message, _ []string) {
	r.eng.SetMode(msg.ChatID, storage.ModeDaily)
	r.reply(ctx, msg.ChatID, "Notification mode changed.\n"+
		"You'll now get every tracked application's status each day, even when the percent hasn't moved.")
}

func (r *Router) cmdModeOnChange(ctx context.Context, msg *kit.Message, _ []string) {
	r.eng.SetMode(msg.ChatID, storage.ModeOnChange)
	r.reply(ctx, msg.ChatID, "Notification mode changed.\n"+
		"You'll now only get a message when the completion percent changes.")
}

func (r *Router) cmdEraseData(ctx context.Context, msg *kit.Message, _ []string) {
	if r.eng.EraseAll(msg.ChatID) {
		r.reply(ctx, msg.ChatID, "Everything stored for this chat was deleted: numbers, settings and labels.")
	} else {
		r.reply(ctx, msg.ChatID, "There was no saved data for this chat.")
	}
}

func (r *Router) cmdLabel(ctx context.Context, msg *kit.Message, args []string) {
	if len(args) == 0 {
		r.reply(ctx, msg.ChatID, "Usage:\n"+
			"/label <number> <text> - set or change a label\n"+
			"/label <number> - remove the label\n\n"+
			"Example:\n/label 1234567890 My documents")
		return
	}

	id := status.ExtractID(args[0])
	if id == "" {
		r.reply(ctx, msg.ChatID, "Couldn't parse that application number.")
		return
	}

	label := strings.TrimSpace(strings.Join(args[1:], " "))
	if label == "" {
		_, had := r.eng.Label(msg.ChatID, id)
		r.eng.SetLabel(msg.ChatID, id, "")
		if had {
			r.reply(ctx, msg.ChatID, "Label for "+id+" removed.")
		} else {
			r.reply(ctx, msg.ChatID, "There was no label for "+id+".")
		}
		return
	}

	r.eng.SetLabel(msg.ChatID, id, label)
	r.reply(ctx, msg.ChatID, "Label for "+id+" set: "+label)
}

// handleText treats any non-command text as a possible application number.
// Text without enough digits is silently ignored; not every message is an
// id attempt.
func (r *Router) handleText(ctx context.Context, msg *kit.Message) {
	id := status.ExtractID(msg.Text)
	if id == "" {
		return
	}

	r.log.Info("new application number",
		logx.Int64("chat_id", msg.ChatID), logx.String("id", id))
	r.reply(ctx, msg.ChatID, "Got application "+id+", checking the status...")

	snap, err := r.fetchOne(ctx, id)
	if err != nil {
		r.NotifyUnavailable(ctx, msg.ChatID, id)
		return
	}

	r.NotifyStatus(ctx, msg.ChatID, snap)
	// Track it for the daily check, remembering the percent we just saw.
	r.eng.Add(msg.ChatID, snap.ID, snap.Internal.Percent)
}

func (r *Router) fetchOne(ctx context.Context, id string) (*status.Snapshot, error) {
	if r.fetchTimeout > 0 {
		fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
		return r.fetch.Fetch(fctx, id)
	}
	return r.fetch.Fetch(ctx, id)
}
