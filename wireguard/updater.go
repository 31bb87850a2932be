package wireguard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/leonovk/wg-rest-api/models"
)

// Reloader makes the running interface pick up a freshly written config.
type Reloader interface {
	Reload(ctx context.Context, server models.Server, peers []models.Peer) error
}

// ConfigUpdater writes the interface configuration to disk and reloads the
// interface. Concurrent Sync calls must be serialized by the caller.
type ConfigUpdater struct {
	Path     string
	Options  RenderOptions
	Reloader Reloader
	Log      logr.Logger
}

// Sync renders server and peers to Path and triggers the reload.
func (u ConfigUpdater) Sync(ctx context.Context, server models.Server, peers []models.Peer) error {
	if err := writeConfigFile(u.Path, Render(u.Options, server, peers)); err != nil {
		return err
	}
	u.Log.V(1).Info("wrote interface config", "path", u.Path, "peers", len(peers))

	if u.Reloader == nil {
		return nil
	}
	if err := u.Reloader.Reload(ctx, server, peers); err != nil {
		return fmt.Errorf("reload interface: %w", err)
	}
	return nil
}

func writeConfigFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	// The file holds the server private key.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config file %s: %w", path, err)
	}
	return nil
}

// WGQuickReloader restarts the interface with wg-quick.
type WGQuickReloader struct {
	Runner     Runner
	ConfigPath string
	Interface  string
	Links      LinkChecker
	Log        logr.Logger
}

// Reload runs "wg-quick down" (allowed to fail when the interface is not up)
// followed by "wg-quick up".
func (r WGQuickReloader) Reload(ctx context.Context, _ models.Server, _ []models.Peer) error {
	if _, err := r.Runner.Run(ctx, "", "wg-quick", "down", r.ConfigPath); err != nil {
		r.Log.V(1).Info("wg-quick down failed, interface probably not up", "error", err.Error())
	}
	if _, err := r.Runner.Run(ctx, "", "wg-quick", "up", r.ConfigPath); err != nil {
		return fmt.Errorf("wg-quick up: %w", err)
	}

	if r.Links != nil {
		up, err := r.Links.LinkUp(r.Interface)
		switch {
		case err != nil:
			r.Log.Error(err, "could not check interface state", "interface", r.Interface)
		case !up:
			r.Log.Info("interface is not up after reload", "interface", r.Interface)
		default:
			r.Log.V(1).Info("interface up", "interface", r.Interface)
		}
	}
	return nil
}
