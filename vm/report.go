package vm

import (
	"fmt"
	"io"
	"sort"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/dianpeng/sortgen/plan"
)

const (
	reportMinMicros = 1
	reportMaxMicros = 3600 * 1000 * 1000
	reportSigFigs   = 3
)

// PhaseSummary is the latency distribution of every tracker bracket of one
// phase, in microseconds.
type PhaseSummary struct {
	Phase string
	Count int64
	Mean  float64
	P50   int64
	P99   int64
	Max   int64
}

// Summarize groups the records by phase, phases are returned in name order.
func Summarize(records []Record) ([]PhaseSummary, error) {
	hist := make(map[string]*hdrhistogram.Histogram)
	for _, r := range records {
		role, _, err := plan.ParseResourceTag(r.Tag)
		if err != nil {
			return nil, err
		}
		h, ok := hist[role.Phase()]
		if !ok {
			h = hdrhistogram.New(reportMinMicros, reportMaxMicros, reportSigFigs)
			hist[role.Phase()] = h
		}
		us := r.Elapsed.Microseconds()
		if us < reportMinMicros {
			us = reportMinMicros
		}
		if err := h.RecordValue(us); err != nil {
			return nil, fmt.Errorf("%s: %s", r.Tag, err)
		}
	}

	out := []PhaseSummary{}
	for phase, h := range hist {
		out = append(out, PhaseSummary{
			Phase: phase,
			Count: h.TotalCount(),
			Mean:  h.Mean(),
			P50:   h.ValueAtQuantile(50),
			P99:   h.ValueAtQuantile(99),
			Max:   h.Max(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Phase < out[j].Phase
	})
	return out, nil
}

// WriteReport dumps every record followed by the per phase summary.
func WriteReport(
	w io.Writer,
	result int32,
	records []Record,
) error {
	summary, err := Summarize(records)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "result: %d\n", result); err != nil {
		return err
	}
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%-40s %12dus\n", r.Tag, r.Elapsed.Microseconds()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(
		w,
		"%-10s %8s %12s %12s %12s %12s\n",
		"phase", "count", "mean(us)", "p50(us)", "p99(us)", "max(us)",
	); err != nil {
		return err
	}
	for _, s := range summary {
		if _, err := fmt.Fprintf(
			w,
			"%-10s %8d %12.1f %12d %12d %12d\n",
			s.Phase, s.Count, s.Mean, s.P50, s.P99, s.Max,
		); err != nil {
			return err
		}
	}
	return nil
}
