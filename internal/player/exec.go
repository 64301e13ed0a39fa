package player

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExecProcess runs an external player and drives it over stdin.
// The stream URL is passed as the last argument; volume changes and
// "quit" are written as slave-mode command lines.
type ExecProcess struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	target string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	done   chan struct{}
}

// NewExecProcess validates cfg and returns an idle process
func NewExecProcess(cfg Config, logger zerolog.Logger) (*ExecProcess, error) {
	if cfg.Command == "" {
		return nil, errors.New("player command is required")
	}
	if cfg.VolumeCommand == "" {
		cfg.VolumeCommand = DefaultConfig().VolumeCommand
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultConfig().StopTimeout
	}
	return &ExecProcess{
		cfg:    cfg,
		logger: logger.With().Str("component", "player").Logger(),
	}, nil
}

// SetTarget sets the URL used by the next Start
func (p *ExecProcess) SetTarget(url string) error {
	if url == "" {
		return ErrNoTarget
	}
	p.mu.Lock()
	p.target = url
	p.mu.Unlock()
	return nil
}

// Start launches the player for the current target.
// A player that is still running is stopped first.
func (p *ExecProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.target == "" {
		return ErrNoTarget
	}
	if p.runningLocked() {
		p.stopLocked()
	}

	args := append(append([]string{}, p.cfg.Args...), p.target)
	cmd := exec.Command(p.cfg.Command, args...)
	out := &lineLogger{logger: p.logger}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = p.cfg.StopTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open player stdin: %w", err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("failed to start %s: %w", p.cfg.Command, err)
	}

	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		out.flush()
		if err != nil {
			p.logger.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("Player exited")
		} else {
			p.logger.Debug().Int("pid", cmd.Process.Pid).Msg("Player exited")
		}
		close(done)
	}()

	p.cmd = cmd
	p.stdin = stdin
	p.done = done

	p.logger.Info().
		Str("url", p.target).
		Int("pid", cmd.Process.Pid).
		Msg("Player started")

	return nil
}

// Stop asks the player to quit and kills it after the stop timeout
func (p *ExecProcess) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

// SetVolume writes the volume command line to the player
func (p *ExecProcess) SetVolume(level int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.runningLocked() {
		return ErrNotRunning
	}
	line := fmt.Sprintf(p.cfg.VolumeCommand, clampVolume(level))
	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("failed to send volume: %w", err)
	}
	return nil
}

// IsActive reports whether the player process is alive
func (p *ExecProcess) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *ExecProcess) runningLocked() bool {
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *ExecProcess) stopLocked() error {
	if p.cmd == nil {
		return nil
	}
	cmd, stdin, done := p.cmd, p.stdin, p.done
	p.cmd, p.stdin, p.done = nil, nil, nil

	select {
	case <-done:
		_ = stdin.Close()
		return nil
	default:
	}

	_, _ = io.WriteString(stdin, "quit\n")
	_ = stdin.Close()

	timer := time.NewTimer(p.cfg.StopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
	}

	p.logger.Debug().Int("pid", cmd.Process.Pid).Msg("Player ignored quit, killing")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill player: %w", err)
	}
	<-done
	return nil
}

// lineLogger forwards player output to the debug log one line at a time
type lineLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	buf    bytes.Buffer
}

func (l *lineLogger) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(b)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Partial line, keep it for the next write
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.log(line)
	}
	return len(b), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.log(l.buf.String())
		l.buf.Reset()
	}
}

func (l *lineLogger) log(line string) {
	line = strings.TrimSpace(line)
	if line != "" {
		l.logger.Debug().Str("output", line).Msg("Player output")
	}
}
