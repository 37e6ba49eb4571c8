package commands

import (
	"context"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/pkg/llm"
)

// usageTally counts model calls and tokens across every run of a command.
type usageTally struct {
	calls        atomic.Int64
	failures     atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
}

var _ llm.Observer = (*usageTally)(nil)

// OnCall implements llm.Observer.
func (u *usageTally) OnCall(ctx context.Context, ev llm.CallEvent) {
	u.calls.Add(1)
	if ev.Error != nil {
		u.failures.Add(1)
	}
	if ev.Response != nil {
		u.inputTokens.Add(int64(ev.Response.Usage.InputTokens))
		u.outputTokens.Add(int64(ev.Response.Usage.OutputTokens))
	}
	logger.FromContext(ctx).Debug("model call",
		"task", ev.Task,
		"attempt", ev.Attempt,
		"duration", ev.Duration,
		"error", ev.Error,
	)
}

// report logs the totals. Nothing is logged when no call was made.
func (u *usageTally) report() {
	if u.calls.Load() == 0 {
		return
	}
	logger.Info("model usage",
		"calls", u.calls.Load(),
		"failed", u.failures.Load(),
		"input_tokens", humanize.Comma(u.inputTokens.Load()),
		"output_tokens", humanize.Comma(u.outputTokens.Load()),
	)
}
