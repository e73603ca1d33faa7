package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// Stream identifies which output pipe a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Command is what the supervisor asks a Spawner to run.
type Command struct {
	Interpreter string
	Script      string
	Dir         string
	Args        []string
}

// Argv returns the full argument vector, interpreter first.
func (c Command) Argv() []string {
	return append([]string{c.Interpreter, c.Script}, c.Args...)
}

// OutputFunc receives each captured line of child output.
type OutputFunc func(stream Stream, line string)

// Process is a running child.
type Process interface {
	Pid() int
	// Terminate asks the process to exit.
	Terminate() error
	// Kill forces the process to exit.
	Kill() error
	// Wait blocks until the process has exited and all output has been
	// delivered. A process killed by a signal reports -1.
	Wait() (int, error)
}

// Spawner starts child processes.
type Spawner interface {
	Spawn(cmd Command, out OutputFunc) (Process, error)
}

// pipeWaitDelay is how long output is still collected after the backend
// has exited. Processes it left running may hold its pipes open forever.
const pipeWaitDelay = 500 * time.Millisecond

// ExecSpawner starts real OS processes with all three standard streams
// connected to pipes.
type ExecSpawner struct{}

// Spawn implements Spawner.
func (ExecSpawner) Spawn(c Command, out OutputFunc) (Process, error) {
	cmd := exec.Command(c.Interpreter, append([]string{c.Script}, c.Args...)...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = pipeWaitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return nil, err
	}

	p := &execProcess{cmd: cmd, stdin: stdin, writers: []*io.PipeWriter{stdoutW, stderrW}}
	p.readers.Add(2)
	go p.readLines(stdoutR, Stdout, out)
	go p.readLines(stderrR, Stderr, out)
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	writers []*io.PipeWriter
	readers sync.WaitGroup
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	return terminate(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

// readLines forwards every line of r. A line over 1 MiB ends capture for the
// stream; the remainder is drained.
func (p *execProcess) readLines(r io.Reader, stream Stream, out OutputFunc) {
	defer p.readers.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if out != nil {
			out(stream, scanner.Text())
		}
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func (p *execProcess) Wait() (int, error) {
	// cmd.Wait returns once output has been copied, or WaitDelay after exit
	// when something else still holds the pipes.
	err := p.cmd.Wait()
	for _, w := range p.writers {
		_ = w.Close()
	}
	p.readers.Wait()
	_ = p.stdin.Close()

	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		return p.cmd.ProcessState.ExitCode(), nil
	}
	return -1, err
}
