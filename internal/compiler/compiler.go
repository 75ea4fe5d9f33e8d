// Package compiler turns plain script source into the host runtime's opaque
// cached-bytecode form by running the host binary as a short-lived child
// process.
package compiler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Compiler produces cached bytecode for one source buffer.
type Compiler interface {
	Compile(ctx context.Context, source []byte) ([]byte, error)
}

// Target names the host runtime binary that bakes bytecode and the options
// it is started with.
type Target struct {
	BinaryPath string   `json:"binaryPath"`
	Options    []string `json:"options,omitempty"`
}

func (t Target) String() string {
	b, err := json.Marshal(t)
	if err != nil {
		return t.BinaryPath
	}
	return string(b)
}

const (
	defaultTimeout     = 60 * time.Second
	defaultTermGrace   = 2 * time.Second
	defaultStderrLimit = 1 << 20
)

// Process compiles by spawning Target once per call. It holds no state
// between calls and is safe for concurrent use.
type Process struct {
	target           Target
	timeout          time.Duration
	termGrace        time.Duration
	stderrLimit      int
	killProcessGroup bool
	log              zerolog.Logger
}

// Option configures a Process.
type Option func(*Process)

// WithTimeout bounds how long one child may run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Process) { p.timeout = d }
}

// WithTermGrace sets the delay between SIGTERM and SIGKILL on timeout.
func WithTermGrace(d time.Duration) Option {
	return func(p *Process) { p.termGrace = d }
}

// WithKillProcessGroup makes timeouts signal the child's whole process group.
func WithKillProcessGroup(v bool) Option {
	return func(p *Process) { p.killProcessGroup = v }
}

// WithStderrLimit caps how much child stderr is kept for error reports.
func WithStderrLimit(n int) Option {
	return func(p *Process) { p.stderrLimit = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Process) { p.log = l }
}

// NewProcess returns a Compiler backed by target.
func NewProcess(target Target, opts ...Option) *Process {
	p := &Process{
		target:           target,
		timeout:          defaultTimeout,
		termGrace:        defaultTermGrace,
		stderrLimit:      defaultStderrLimit,
		killProcessGroup: true,
		log:              zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Target returns the descriptor the process was built with.
func (p *Process) Target() Target { return p.target }

// Compile wraps source in the module wrapper and returns the bytecode the
// child writes to stdout.
func (p *Process) Compile(ctx context.Context, source []byte) ([]byte, error) {
	start := time.Now()
	out, err := p.run(ctx, Wrap(source))
	if err != nil {
		return nil, err
	}
	p.log.Debug().
		Int("source_bytes", len(source)).
		Int("bytecode_bytes", len(out)).
		Dur("took", time.Since(start)).
		Msg("bytecode compiled")
	return out, nil
}

const (
	wrapperHead = "(function (exports, require, module, __filename, __dirname) { "
	wrapperTail = "\n});"
)

// Wrap surrounds source with the host module wrapper so the cached bytecode
// matches the function the loader will execute.
func Wrap(source []byte) []byte {
	out := make([]byte, 0, len(wrapperHead)+len(source)+len(wrapperTail))
	out = append(out, wrapperHead...)
	out = append(out, source...)
	return append(out, wrapperTail...)
}

// cacheNotProducedMarker is printed by bakeScript before it exits with
// status 2.
const cacheNotProducedMarker = "Cached data not produced"

// bakeScript runs inside the host runtime. It reads the wrapped source from
// stdin and writes the cached data of the compiled script to stdout.
const bakeScript = `
  var chunks = [];
  process.stdin.on('data', function (data) {
    chunks.push(data);
  });
  process.stdin.on('end', function () {
    var vm = require('vm');
    var source = Buffer.concat(chunks).toString();
    var s = new vm.Script(source, {
      produceCachedData: true,
      sourceless: true
    });
    if (!s.cachedDataProduced) {
      console.error('` + cacheNotProducedMarker + `');
      process.exit(2);
    }
    process.stdout.write(s.cachedData);
  });
  process.stdin.resume();
`
