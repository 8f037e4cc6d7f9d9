// Package profiling captures CPU, heap and execution-trace profiles for one
// CLI invocation.
package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
)

// Options names the profile files to write. Empty paths are skipped.
type Options struct {
	CPU   string
	Heap  string
	Trace string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != ""
}

// Session is a running set of profiles.
type Session struct {
	opts      Options
	cpuFile   *os.File
	traceFile *os.File
}

// Start begins the CPU profile and the trace. On error nothing is left running.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, pserrors.IOError("failed to create CPU profile file", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, pserrors.IOError("failed to start CPU profile", err)
		}
		s.cpuFile = f
	}

	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			s.stopCPU()
			return nil, pserrors.IOError("failed to create trace file", err)
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.stopCPU()
			return nil, pserrors.IOError("failed to start trace", err)
		}
		s.traceFile = f
	}
	return s, nil
}

// Stop flushes the running profiles and writes the heap snapshot. It is safe
// to call more than once; the heap profile is written on the first call.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	s.stopCPU()
	if s.traceFile != nil {
		trace.Stop()
		_ = s.traceFile.Close()
		s.traceFile = nil
	}

	path := s.opts.Heap
	s.opts.Heap = ""
	if path == "" {
		return nil
	}
	return writeHeap(path)
}

func (s *Session) stopCPU() {
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return pserrors.IOError("failed to create heap profile file", err)
	}
	defer func() { _ = f.Close() }()

	// live objects only
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return pserrors.IOError("failed to write heap profile", err)
	}
	return nil
}
