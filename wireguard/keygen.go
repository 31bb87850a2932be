package wireguard

import (
	"context"
	"fmt"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// KeyGenerator produces WireGuard keys as base64 strings.
type KeyGenerator interface {
	PrivateKey(ctx context.Context) (string, error)
	PublicKey(ctx context.Context, privateKey string) (string, error)
	PresharedKey(ctx context.Context) (string, error)
}

// CommandKeyGenerator shells out to the wg tool.
type CommandKeyGenerator struct {
	Runner Runner
}

func (g CommandKeyGenerator) PrivateKey(ctx context.Context) (string, error) {
	return g.run(ctx, "", "genkey")
}

// PublicKey pipes privateKey into "wg pubkey".
func (g CommandKeyGenerator) PublicKey(ctx context.Context, privateKey string) (string, error) {
	return g.run(ctx, privateKey+"\n", "pubkey")
}

func (g CommandKeyGenerator) PresharedKey(ctx context.Context) (string, error) {
	return g.run(ctx, "", "genpsk")
}

func (g CommandKeyGenerator) run(ctx context.Context, stdin, sub string) (string, error) {
	out, err := g.Runner.Run(ctx, stdin, "wg", sub)
	if err != nil {
		return "", fmt.Errorf("wg %s: %w", sub, err)
	}
	key := strings.TrimSpace(out)
	if key == "" {
		return "", fmt.Errorf("wg %s: empty output", sub)
	}
	return key, nil
}

// NativeKeyGenerator generates keys in process with wgtypes.
type NativeKeyGenerator struct{}

func (NativeKeyGenerator) PrivateKey(context.Context) (string, error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate private key: %w", err)
	}
	return key.String(), nil
}

func (NativeKeyGenerator) PublicKey(_ context.Context, privateKey string) (string, error) {
	key, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return "", fmt.Errorf("invalid private key: %w", err)
	}
	return key.PublicKey().String(), nil
}

func (NativeKeyGenerator) PresharedKey(context.Context) (string, error) {
	key, err := wgtypes.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate preshared key: %w", err)
	}
	return key.String(), nil
}
