package compiler

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

type limitedBuffer struct {
	max       int
	buf       bytes.Buffer
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.max <= 0 {
		return n, nil
	}
	remain := b.max - b.buf.Len()
	if remain > 0 {
		if remain > len(p) {
			remain = len(p)
		}
		_, _ = b.buf.Write(p[:remain])
	}
	if len(p) > remain {
		b.truncated = true
	}
	return n, nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }

type runResult struct {
	writeErr error
	waitErr  error
}

// run starts the child, feeds it input, and waits for it under the timeout.
// Wait is only called once the stdin write has returned, so the write never
// races the pipe being closed by Wait.
func (p *Process) run(ctx context.Context, input []byte) ([]byte, error) {
	args := append([]string{"-e", bakeScript, "--runtime"}, p.target.Options...)
	cmd := exec.Command(p.target.BinaryPath, args...)
	if p.killProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: p.stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &Error{Kind: KindSpawn, Target: p.target, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: KindSpawn, Target: p.target, Err: err}
	}

	done := make(chan runResult, 1)
	go func() {
		_, werr := stdin.Write(input)
		if cerr := stdin.Close(); werr == nil {
			werr = cerr
		}
		done <- runResult{writeErr: werr, waitErr: cmd.Wait()}
	}()

	var timeout <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var res runResult
	select {
	case res = <-done:
	case <-timeout:
		p.terminate(cmd, done)
		return nil, &Error{Kind: KindTimeout, Target: p.target, Stderr: stderr.String()}
	case <-ctx.Done():
		p.terminate(cmd, done)
		return nil, ctx.Err()
	}
	return stdout.Bytes(), p.classify(res, stderr.String())
}

func (p *Process) classify(res runResult, stderr string) error {
	if res.waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(res.waitErr, &exitErr) {
			code := exitErr.ExitCode()
			if code == 2 && strings.Contains(stderr, cacheNotProducedMarker) {
				return &Error{Kind: KindCacheNotProduced, Target: p.target, Code: code}
			}
			return &Error{Kind: KindFailed, Target: p.target, Code: code, Stderr: stderr}
		}
		return &Error{Kind: KindFailed, Target: p.target, Code: -1, Stderr: stderr, Err: res.waitErr}
	}
	if res.writeErr != nil {
		if errors.Is(res.writeErr, syscall.EPIPE) {
			return &Error{Kind: KindBrokenPipe, Target: p.target, Err: res.writeErr}
		}
		return &Error{Kind: KindFailed, Target: p.target, Err: res.writeErr}
	}
	return nil
}

// terminate sends SIGTERM, waits termGrace, then SIGKILL, and drains done so
// the helper goroutine exits.
func (p *Process) terminate(cmd *exec.Cmd, done <-chan runResult) {
	signalProcess(cmd, p.killProcessGroup, syscall.SIGTERM)
	grace := time.NewTimer(p.termGrace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		signalProcess(cmd, p.killProcessGroup, syscall.SIGKILL)
		<-done
	}
}

func signalProcess(cmd *exec.Cmd, killGroup bool, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if killGroup && pid > 0 {
		if err := syscall.Kill(-pid, sig); err == nil {
			return
		}
	}
	_ = cmd.Process.Signal(sig)
}
