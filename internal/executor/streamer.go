package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/Jackyzaz/motegao/internal/domain"
)

const (
	// maxLineBytes caps a single output line to prevent memory exhaustion.
	maxLineBytes = 1 << 20 // 1 MB

	initialBufBytes = 64 * 1024
)

// Stream runs one external process and exposes its merged stdout/stderr as
// a sequence of lines. It is not restartable.
//
// Typical use:
//
//	s, err := executor.Start(ctx, argv)
//	defer s.Close()
//	for s.Scan() {
//		line := s.Text()
//	}
//	code, err := s.Wait()
type Stream struct {
	cmd     *exec.Cmd
	out     *os.File
	scanner *bufio.Scanner

	mu         sync.Mutex
	exited     bool
	terminated bool

	waitOnce sync.Once
	exitCode int
	waitErr  error
}

// Start launches argv[0] with the remaining arguments in its own process
// group. Cancelling ctx kills the whole group.
func Start(ctx context.Context, argv []string) (*Stream, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, fmt.Errorf("%w: empty command", domain.ErrProcessLaunch)
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create pipe: %w", domain.ErrProcessLaunch, err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	s := &Stream{cmd: cmd, out: r}
	cmd.Cancel = func() error {
		s.kill()
		return nil
	}

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrProcessLaunch, err)
	}
	// The child holds its own copy; EOF arrives once every writer is gone.
	w.Close()

	s.scanner = bufio.NewScanner(r)
	s.scanner.Buffer(make([]byte, 0, initialBufBytes), maxLineBytes)
	s.scanner.Split(scanLines)
	return s, nil
}

// Scan advances to the next line, blocking until one is available. It
// returns false at end of output or on a read error. A read error (such as
// a line over maxLineBytes) kills the process group, since nothing drains
// the pipe afterwards.
func (s *Stream) Scan() bool {
	if s.scanner.Scan() {
		return true
	}
	if s.scanner.Err() != nil {
		s.kill()
	}
	return false
}

// Text returns the most recent line without its terminator.
func (s *Stream) Text() string {
	return s.scanner.Text()
}

// Err returns the first non-EOF read error.
func (s *Stream) Err() error {
	return s.scanner.Err()
}

// Pid returns the OS process id.
func (s *Stream) Pid() int {
	return s.cmd.Process.Pid
}

// Terminate sends SIGKILL to the process group. Only the first call acts,
// and it is a no-op once the process has been reaped.
func (s *Stream) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited || s.terminated {
		return
	}
	s.terminated = true
	_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
}

// Terminated reports whether Terminate took effect before the process exited.
func (s *Stream) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// kill is used for context cancellation; it does not mark the stream as
// terminated by request.
func (s *Stream) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return
	}
	_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
}

// Wait reaps the process and returns its exit code. A process killed by a
// signal reports 128+signal. The returned error is non-nil only for
// failures other than a non-zero exit. Call Wait after Scan returns false;
// calling it earlier may block while the child waits on a full pipe.
func (s *Stream) Wait() (int, error) {
	s.waitOnce.Do(func() {
		err := s.cmd.Wait()

		s.mu.Lock()
		s.exited = true
		s.mu.Unlock()
		s.out.Close()

		s.exitCode = exitCode(s.cmd.ProcessState)
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.waitErr = err
		}
	})
	return s.exitCode, s.waitErr
}

// Close terminates the process if it is still running and reaps it. It is
// safe to call at any point, any number of times.
func (s *Stream) Close() error {
	s.kill()
	_, err := s.Wait()
	return err
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// scanLines splits on "\n", "\r\n" and a lone "\r". Progress bars repaint
// with a bare carriage return, and each repaint is a line of its own.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// A trailing '\r' may be the first half of "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
