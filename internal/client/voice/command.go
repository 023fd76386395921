package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Placeholders substituted in command arguments.
const (
	textPlaceholder = "{text}"
	ratePlaceholder = "{rate}"
)

// CommandSynthesizer speaks by running an external program such as
// "espeak -s {rate} {text}" or "say". {rate} becomes words per minute
// (175 at rate 1.0). Without a {text} argument the text is piped to stdin.
type CommandSynthesizer struct {
	Path string
	Args []string
}

// CommandRecognizer captures speech by running an external program that
// prints one transcript on stdout and exits.
type CommandRecognizer struct {
	Path string
	Args []string
}

// NewCommandSynthesizer parses a command line. An empty line yields
// ErrCapabilityUnavailable, as does a program missing from PATH.
func NewCommandSynthesizer(cmdline string) (*CommandSynthesizer, error) {
	path, args, err := resolve(cmdline)
	if err != nil {
		return nil, err
	}
	return &CommandSynthesizer{Path: path, Args: args}, nil
}

// NewCommandRecognizer parses a command line like NewCommandSynthesizer.
func NewCommandRecognizer(cmdline string) (*CommandRecognizer, error) {
	path, args, err := resolve(cmdline)
	if err != nil {
		return nil, err
	}
	return &CommandRecognizer{Path: path, Args: args}, nil
}

func resolve(cmdline string) (string, []string, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return "", nil, ErrCapabilityUnavailable
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
	}
	return path, fields[1:], nil
}

func (s *CommandSynthesizer) Speak(ctx context.Context, text string, rate float64, started func()) error {
	wpm := strconv.Itoa(int(175 * rate))
	args := make([]string, 0, len(s.Args))
	piped := true
	for _, a := range s.Args {
		if strings.Contains(a, textPlaceholder) {
			piped = false
		}
		a = strings.ReplaceAll(a, textPlaceholder, text)
		args = append(args, strings.ReplaceAll(a, ratePlaceholder, wpm))
	}

	cmd := exec.CommandContext(ctx, s.Path, args...)
	if piped {
		cmd.Stdin = strings.NewReader(text)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Path, err)
	}
	started()
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	return nil
}

func (r *CommandRecognizer) Recognize(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, r.Args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%s: %w: %s", r.Path, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
