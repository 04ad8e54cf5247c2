package ocr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

// Command runs an external text extraction program as
// `<name> <args...> <input> <output>`
type Command struct {
	name string
	args []string
}

// NewCommand creates a command engine
func NewCommand(name string, args ...string) *Command {
	return &Command{
		name: name,
		args: append([]string(nil), args...),
	}
}

// GenerateText runs the command and waits for it to finish. Output of the
// process only goes to the logger.
func (c *Command) GenerateText(ctx context.Context, inputPath, outputPath string) error {
	args := append(append([]string(nil), c.args...), inputPath, outputPath)
	cmd := exec.CommandContext(ctx, c.name, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	slog.Debug("Running OCR command", "command", c.name, "args", args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.name, err)
	}

	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream string, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if stream == "stderr" {
				mu.Lock()
				if errBuf.Len() < 4096 {
					errBuf.WriteString(line + "\n")
				}
				mu.Unlock()
			}
			slog.Debug("OCR output", "command", c.name, "stream", stream, "line", line)
		}
	}

	wg.Add(2)
	go read("stdout", stdoutPipe)
	go read("stderr", stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("%s failed with exit code %d: %w: %s", c.name, exitCode, err, strings.TrimSpace(errBuf.String()))
	}
	return nil
}
