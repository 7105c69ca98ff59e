// Package bot is the command dispatch surface: it turns inbound transport
// updates into tracker operations and sends the replies.
package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"passbot/internal/render"
	"passbot/internal/scheduler"
	"passbot/internal/tracker"
	kit "passbot/internal/transport"
	"passbot/pkg/logx"
)

type command struct {
	handle  func(ctx context.Context, msg *kit.Message, args []string)
	timeout time.Duration
}

type Router struct {
	log    logx.Logger
	eng    *tracker.Engine
	fetch  scheduler.Fetcher
	rend   *render.Renderer
	sender kit.Sender

	fetchTimeout time.Duration

	routes map[string]command
}

func NewRouter(eng *tracker.Engine, fetch scheduler.Fetcher, rend *render.Renderer, sender kit.Sender, fetchTimeout time.Duration, log logx.Logger) *Router {
	r := &Router{
		log:          log,
		eng:          eng,
		fetch:        fetch,
		rend:         rend,
		sender:       sender,
		fetchTimeout: fetchTimeout,
	}
	r.routes = map[string]command{
		"start":          {handle: r.cmdStart},
		"help":           {handle: r.cmdStart},
		"list":           {handle: r.cmdList},
		"remove":         {handle: r.cmdRemove},
		"clear":          {handle: r.cmdClear},
		"check":          {handle: r.cmdCheck, timeout: 5 * time.Minute},
		"mode":           {handle: r.cmdMode},
		"mode_daily":     {handle: r.cmdModeDaily},
		"mode_on_change": {handle: r.cmdModeOnChange},
		"erase_data":     {handle: r.cmdEraseData},
		"label":          {handle: r.cmdLabel},
	}
	return r
}

// DispatchLoop consumes updates until ctx is done. Each update is handled in
// its own goroutine so one slow fetch never blocks other chats.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind != kit.UpdateMessage || up.Message == nil {
				continue
			}
			go r.handle(ctx, up.Message)
		}
	}
}

func (r *Router) handle(ctx context.Context, msg *kit.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic",
				logx.Any("panic", rec),
				logx.Int64("chat_id", msg.ChatID),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	name, args, isCommand := splitCommand(msg.Text)

	timeout := 30 * time.Second
	if isCommand {
		if c, ok := r.routes[name]; ok && c.timeout > 0 {
			timeout = c.timeout
		}
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !isCommand {
		r.handleText(hctx, msg)
		return
	}

	c, ok := r.routes[name]
	if !ok {
		// Unknown commands are ignored, like any other non-id text.
		return
	}
	r.log.Debug("command",
		logx.String("name", name),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int("args", len(args)))
	c.handle(hctx, msg, args)
}

// splitCommand parses "/name arg arg" (with an optional @botname suffix).
func splitCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name = fields[0]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:], true
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.sender.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		r.log.Warn("send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
