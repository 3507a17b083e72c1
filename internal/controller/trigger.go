package controller

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// A ReloadTrigger tells the controller to re-read its configuration file.
type ReloadTrigger interface {
	Trigger(ctx context.Context) error
}

// SignalTrigger delivers SIGHUP to the process owning the controller's
// prometheus port. The port identifies the controller process without the
// agent having to discover its pid, which also works across pid namespaces
// as long as the port is visible.
type SignalTrigger struct {
	Port   int
	Logger *slog.Logger
}

func (t *SignalTrigger) Trigger(ctx context.Context) error {
	target := fmt.Sprintf("%d/tcp", t.Port)
	cmd := exec.CommandContext(ctx, "fuser", "-k", "-HUP", target)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("signal controller reload (fuser -k -HUP %s): %v: %s",
			target, err, bytes.TrimSpace(out))
	}
	t.Logger.Debug("sent HUP to controller", "port", t.Port)
	return nil
}

// WatchTrigger is the nohup variant: the controller stat-polls its config
// file itself (FAUCET_CONFIG_STAT_RELOAD=1), so no signal is needed.
type WatchTrigger struct{}

func (WatchTrigger) Trigger(context.Context) error { return nil }

// CheckDeps verifies the external commands SignalTrigger shells out to are
// installed, so a misconfigured host fails at startup rather than on the
// first Set.
func CheckDeps() error {
	if _, err := exec.LookPath("fuser"); err != nil {
		return fmt.Errorf(`missing "fuser" command from psmisc: %w`, err)
	}
	return nil
}
