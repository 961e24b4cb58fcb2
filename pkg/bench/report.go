package bench

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const divider = "-----------------------------------------------------"

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.4f", d.Seconds())
}

// WriteSummary prints the benchmark statistics in a human-readable block.
func (r *Report) WriteSummary(w io.Writer) {
	runs := r.Latency.N
	mode := "buffered"
	if r.Run != nil && r.Run.Stream {
		mode = "stream"
	}

	fmt.Fprintln(w, divider)
	fmt.Fprintf(w, "LLM generation (%s, avg over %d runs): %s ± %s seconds\n",
		mode, runs, seconds(r.Latency.Mean), seconds(r.Latency.StdDev))
	fmt.Fprintf(w, "  Min: %ss, Max: %ss\n", seconds(r.Latency.Min), seconds(r.Latency.Max))
	if r.FirstContent.N > 0 {
		fmt.Fprintf(w, "Time to first content: %s ± %s seconds (min %ss, max %ss)\n",
			seconds(r.FirstContent.Mean), seconds(r.FirstContent.StdDev),
			seconds(r.FirstContent.Min), seconds(r.FirstContent.Max))
	}
	fmt.Fprintln(w, divider)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Benchmark Summary ---")
	if r.WarmupErr != nil {
		fmt.Fprintf(w, "  Warmup:              failed (%v)\n", r.WarmupErr)
	} else if r.Warmup > 0 {
		fmt.Fprintf(w, "  Warmup:              %s seconds\n", seconds(r.Warmup))
	}
	fmt.Fprintf(w, "  Retrieval:           %s seconds (%d passages)\n", seconds(r.Retrieval), len(r.Passages))
	fmt.Fprintf(w, "  LLM Generation:      %s ± %s seconds (avg of %d runs)\n",
		seconds(r.Latency.Mean), seconds(r.Latency.StdDev), runs)
	fmt.Fprintln(w, strings.Repeat("-", 26))
	fmt.Fprintf(w, "  Total RAG Pipeline:  %s seconds\n", seconds(r.Retrieval+r.Latency.Mean))
	if r.Run != nil {
		fmt.Fprintf(w, "  Run ID:              %s\n", r.Run.ID)
	}
}
