// Package onnx runs exported models through ONNX Runtime. Sessions bind
// fixed input/output tensors, so each session serves one call at a time
// and concurrency comes from a pool of sessions.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// DefaultPoolSize is used when a non-positive size is requested
	DefaultPoolSize = 2
	// AcquireTimeout bounds how long a request waits for a free session
	AcquireTimeout = 5 * time.Second
)

var (
	initOnce sync.Once
	initErr  error
)

// Initialize loads the ONNX Runtime shared library once per process
func Initialize(libPath string) error {
	initOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("initialize onnxruntime: %w", err)
		}
	})
	return initErr
}

// Shutdown releases the runtime environment
func Shutdown() {
	if ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			initErr = err
		}
	}
}

type sessionSpec struct {
	path        string
	inputName   string
	outputName  string
	inputShape  ort.Shape
	outputShape ort.Shape
}

type session struct {
	run    *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

func newSession(spec sessionSpec, threads int) (*session, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			return nil, fmt.Errorf("error setting intra-op threads: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](spec.inputShape)
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](spec.outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	run, err := ort.NewAdvancedSession(
		spec.path,
		[]string{spec.inputName},
		[]string{spec.outputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating session for %s: %w", spec.path, err)
	}

	return &session{run: run, input: input, output: output}, nil
}

func (s *session) destroy() {
	if s.run != nil {
		s.run.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

var errPoolClosed = errors.New("session pool is closed")

// sessionPool hands out exclusive sessions to concurrent callers
type sessionPool struct {
	sessions chan *session
	mu       sync.RWMutex
	closed   bool
}

func newSessionPool(spec sessionSpec, size int) (*sessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	threads := runtime.NumCPU() / size
	if threads < 1 {
		threads = 1
	}

	p := &sessionPool{sessions: make(chan *session, size)}
	for i := 0; i < size; i++ {
		s, err := newSession(spec, threads)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		p.sessions <- s
	}
	return p, nil
}

func (p *sessionPool) acquire(ctx context.Context) (*session, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, errPoolClosed
	}

	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, errPoolClosed
		}
		return s, nil
	case <-timer.C:
		return nil, errors.New("timeout waiting for available session")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *sessionPool) release(s *session) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		s.destroy()
		return
	}
	p.sessions <- s
}

// withSession runs fn on an exclusive session
func (p *sessionPool) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := p.acquire(ctx)
	if err != nil {
		return err
	}
	defer p.release(s)
	return fn(s)
}

func (p *sessionPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.sessions)
	for s := range p.sessions {
		s.destroy()
	}
}
