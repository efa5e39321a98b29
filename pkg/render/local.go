package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/akinokuni/renderbridge/pkg/config"
)

// LocalStrategy shells out to a local HTML-to-image renderer (wkhtmltoimage
// by default): the document is written to a scratch file and the command is
// invoked as <command> [args...] <input.html> <output.png>.
type LocalStrategy struct {
	command string
	args    []string
	workDir string
	timeout time.Duration
}

func NewLocalStrategy(cfg config.RenderConfig) *LocalStrategy {
	timeout := time.Duration(cfg.LocalTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &LocalStrategy{
		command: cfg.LocalCommand,
		args:    cfg.LocalArgs,
		workDir: cfg.WorkDir,
		timeout: timeout,
	}
}

func (s *LocalStrategy) Name() string { return "local" }

func (s *LocalStrategy) Render(ctx context.Context, doc string) (Artifact, error) {
	if s.command == "" {
		return Artifact{}, fmt.Errorf("local render command not configured")
	}

	if err := os.MkdirAll(s.workDir, 0755); err != nil {
		return Artifact{}, fmt.Errorf("create render work dir: %w", err)
	}

	stamp := time.Now().UnixNano()
	htmlPath := filepath.Join(s.workDir, fmt.Sprintf("render_%d.html", stamp))
	imagePath := filepath.Join(s.workDir, fmt.Sprintf("render_%d.png", stamp))

	if err := os.WriteFile(htmlPath, []byte(doc), 0644); err != nil {
		return Artifact{}, fmt.Errorf("write render input: %w", err)
	}
	defer os.Remove(htmlPath)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(append([]string{}, s.args...), htmlPath, imagePath)
	cmd := exec.CommandContext(ctx, s.command, args...)

	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(imagePath)
		return Artifact{}, fmt.Errorf("local renderer failed: %w (output: %s)", err, string(out))
	}

	if _, err := os.Stat(imagePath); err != nil {
		return Artifact{}, fmt.Errorf("local renderer produced no output: %w", err)
	}

	return Artifact{Path: imagePath}, nil
}
