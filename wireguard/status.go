package wireguard

import (
	"context"

	"github.com/go-logr/logr"
)

// StatusSource returns the raw "wg show" text of the interface.
type StatusSource interface {
	Show(ctx context.Context) (string, error)
}

// CommandStatus runs "wg show <iface>". A failing command is logged and
// reported as empty output: no peers reporting.
type CommandStatus struct {
	Runner    Runner
	Interface string
	Log       logr.Logger
}

func (s CommandStatus) Show(ctx context.Context) (string, error) {
	out, err := s.Runner.Run(ctx, "", "wg", "show", s.Interface)
	if err != nil {
		s.Log.Error(err, "wg show failed, treating as no peers", "interface", s.Interface)
		return "", nil
	}
	return out, nil
}
