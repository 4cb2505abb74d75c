// Package speedtest times tool round-trips over an MCP session so the
// transports can be compared.
package speedtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultCalls is the number of timed calls when Options.Calls is zero.
const DefaultCalls = 50

var ErrNoSamples = errors.New("no successful calls")

// Caller is satisfied by *toolhost.Session.
type Caller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Options for Run.
type Options struct {
	Calls  int
	Warmup int
	Tool   string
	Args   map[string]any
	// Concurrency above one keeps that many calls in flight at once.
	Concurrency int
	// Progress, when set, is called after every timed call. Calls are
	// serialized even when Concurrency is above one.
	Progress func(i int, d time.Duration, err error)
}

// Stats summarizes one run.
type Stats struct {
	Label    string
	N        int
	Failures int
	Mean     time.Duration
	Median   time.Duration
	Min      time.Duration
	Max      time.Duration
	// StdDev is the sample standard deviation, zero for fewer than two samples.
	StdDev time.Duration
	// Bytes is the size of the last successful response.
	Bytes int
	// Elapsed is the wall time of the timed calls.
	Elapsed time.Duration
}

// Run performs opts.Warmup untimed calls, then opts.Calls timed ones. Failed
// calls are counted and excluded from the timings. Run stops early when ctx
// is cancelled.
func Run(ctx context.Context, c Caller, opts Options) (Stats, error) {
	if opts.Tool == "" {
		return Stats{}, errors.New("speedtest: tool name is required")
	}
	if opts.Calls <= 0 {
		opts.Calls = DefaultCalls
	}

	for i := 0; i < opts.Warmup; i++ {
		if _, err := c.CallTool(ctx, opts.Tool, opts.Args); err != nil {
			return Stats{}, fmt.Errorf("warmup call: %w", err)
		}
	}

	rec := &recorder{samples: make([]time.Duration, 0, opts.Calls), progress: opts.Progress}
	start := time.Now()
	var err error
	if opts.Concurrency > 1 {
		err = runPooled(ctx, c, opts, rec)
	} else {
		err = runSerial(ctx, c, opts, rec)
	}

	stats := Summarize(rec.samples, rec.failures, rec.bytes)
	stats.Elapsed = time.Since(start)
	if err != nil {
		return stats, err
	}
	if stats.N == 0 {
		return stats, ErrNoSamples
	}
	return stats, nil
}

// recorder collects call outcomes; record is safe for concurrent use.
type recorder struct {
	mu       sync.Mutex
	samples  []time.Duration
	failures int
	bytes    int
	progress func(i int, d time.Duration, err error)
}

func (r *recorder) record(i int, d time.Duration, text string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.failures++
	} else {
		r.samples = append(r.samples, d)
		r.bytes = len(text)
	}
	if r.progress != nil {
		r.progress(i, d, err)
	}
}

func timedCall(ctx context.Context, c Caller, opts Options, rec *recorder, i int) {
	start := time.Now()
	text, err := c.CallTool(ctx, opts.Tool, opts.Args)
	rec.record(i, time.Since(start), text, err)
}

func runSerial(ctx context.Context, c Caller, opts Options, rec *recorder) error {
	for i := 0; i < opts.Calls; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		timedCall(ctx, c, opts, rec, i)
	}
	return nil
}

// runPooled keeps opts.Concurrency calls in flight on an ants pool.
func runPooled(ctx context.Context, c Caller, opts Options, rec *recorder) error {
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(opts.Concurrency, func(arg any) {
		defer wg.Done()
		timedCall(ctx, c, opts, rec, arg.(int))
	})
	if err != nil {
		return fmt.Errorf("create call pool: %w", err)
	}
	defer pool.Release()

	for i := 0; i < opts.Calls; i++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(i); err != nil {
			wg.Done()
			rec.record(i, 0, "", err)
		}
	}
	wg.Wait()
	return ctx.Err()
}

// Summarize computes Stats over samples.
func Summarize(samples []time.Duration, failures, bytes int) Stats {
	s := Stats{N: len(samples), Failures: failures, Bytes: bytes}
	if s.N == 0 {
		return s
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	s.Min = sorted[0]
	s.Max = sorted[s.N-1]
	if s.N%2 == 1 {
		s.Median = sorted[s.N/2]
	} else {
		s.Median = (sorted[s.N/2-1] + sorted[s.N/2]) / 2
	}

	var sum float64
	for _, d := range sorted {
		sum += float64(d)
	}
	mean := sum / float64(s.N)
	s.Mean = time.Duration(mean)

	if s.N > 1 {
		var sq float64
		for _, d := range sorted {
			diff := float64(d) - mean
			sq += diff * diff
		}
		s.StdDev = time.Duration(math.Sqrt(sq / float64(s.N-1)))
	}
	return s
}

// Fastest returns the label with the lowest mean among runs with samples.
func Fastest(runs []Stats) (Stats, bool) {
	var (
		best  Stats
		found bool
	)
	for _, r := range runs {
		if r.N == 0 {
			continue
		}
		if !found || r.Mean < best.Mean {
			best, found = r, true
		}
	}
	return best, found
}

// Report renders runs as a fixed-width table.
func Report(runs []Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %6s %6s %12s %12s %12s %12s %12s\n",
		"transport", "calls", "failed", "mean", "median", "min", "max", "stddev")
	for _, r := range runs {
		if r.N == 0 {
			fmt.Fprintf(&b, "%-10s %6d %6d %12s\n", r.Label, r.N, r.Failures, "no data")
			continue
		}
		fmt.Fprintf(&b, "%-10s %6d %6d %12s %12s %12s %12s %12s\n",
			r.Label, r.N, r.Failures,
			round(r.Mean), round(r.Median), round(r.Min), round(r.Max), round(r.StdDev))
	}

	if best, ok := Fastest(runs); ok {
		fmt.Fprintf(&b, "\nfastest: %s (%s mean)\n", best.Label, round(best.Mean))
		for _, r := range runs {
			if r.N == 0 || r.Label == best.Label || best.Mean == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s is %.2fx slower\n", r.Label, float64(r.Mean)/float64(best.Mean))
		}
	}
	return b.String()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}
