// Package file stores artifacts as plain files in one directory. This is the
// default provider: artifacts are human-inspectable and survive restarts.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	pr "github.com/unkn0wn-root/memocache/provider"
)

var ErrInvalidKey = errors.New("file provider: invalid artifact name")

type Provider struct {
	dir  string
	perm os.FileMode
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Dir  string      // "" => current working directory
	Perm os.FileMode // 0 => 0o644
}

func New(cfg Config) *Provider {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	perm := cfg.Perm
	if perm == 0 {
		perm = 0o644
	}
	return &Provider{dir: dir, perm: perm}
}

// Dir returns the directory artifacts live in.
func (p *Provider) Dir() string { return p.dir }

// Path returns the file path for an artifact name.
func (p *Provider) Path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(p.dir, key), nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := p.Path(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte) error {
	path, err := p.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, value, p.perm); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	path, err := p.Path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) Del(_ context.Context, key string) (bool, error) {
	path, err := p.Path(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Close(context.Context) error { return nil }
