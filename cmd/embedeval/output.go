package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/embedeval/compare"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/grid"
	"github.com/poiesic/embedeval/reembed"
)

// printer renders job streams and tables. Progress lines go to errOut and
// are rewritten in place; everything else goes to out.
type printer struct {
	out, errOut io.Writer
	inProgress  bool

	bold    func(a ...any) string
	good    func(a ...any) string
	bad     func(a ...any) string
	dim     func(a ...any) string
	heading func(a ...any) string
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{
		out:     out,
		errOut:  errOut,
		bold:    color.New(color.Bold).SprintFunc(),
		good:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		bad:     color.New(color.FgRed).SprintFunc(),
		dim:     color.New(color.Faint).SprintFunc(),
		heading: color.New(color.FgCyan, color.Bold).SprintFunc(),
	}
}

func (p *printer) progress(message string) {
	fmt.Fprintf(p.errOut, "\r\033[K%s", message)
	p.inProgress = true
}

func (p *printer) endProgress() {
	if p.inProgress {
		fmt.Fprintln(p.errOut)
		p.inProgress = false
	}
}

func (p *printer) warn(message string) {
	p.endProgress()
	fmt.Fprintln(p.errOut, p.bad(message))
}

func (p *printer) title(s string) {
	fmt.Fprintln(p.out, p.heading(s))
}

func (p *printer) embedEvent(ev reembed.Event) {
	switch ev.Type {
	case reembed.EventProgress:
		pr := ev.Progress
		p.progress(fmt.Sprintf("%s [%s] %d/%d %s", ev.Model, pr.Phase, pr.Current, pr.Total, pr.Message))
	case reembed.EventError:
		p.warn(fmt.Sprintf("%s: %s", ev.Model, ev.Message))
	case reembed.EventComplete:
		p.endProgress()
		s := ev.Summary
		fmt.Fprintf(p.out, "%s %s: %d chunks embedded, %d cached, %d phrases embedded in %s\n",
			p.good("done"), s.Model, s.ChunksEmbedded, s.ChunksSkipped, s.PhrasesEmbedded,
			(time.Duration(s.TotalDurationMs) * time.Millisecond).String())
		if s.FailedBatches > 0 {
			fmt.Fprintln(p.out, p.bad(fmt.Sprintf("  %d batches failed", s.FailedBatches)))
		}
	}
}

func (p *printer) evalResult(r *eval.Result, details bool) {
	p.title(fmt.Sprintf("Run %d", r.RunID))
	fmt.Fprintf(p.out, "  phrases      %d evaluated of %d", r.EvaluatedPhrases, r.TotalPhrases)
	if len(r.Excluded) > 0 {
		fmt.Fprintf(p.out, " (%s)", p.bad(fmt.Sprintf("%d excluded", len(r.Excluded))))
	}
	fmt.Fprintln(p.out)
	p.metrics(r.Metrics)
	fmt.Fprintf(p.out, "  latency      %.1f ms\n", r.AvgLatencyMs)

	if len(r.CategoryBreakdown) > 0 {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, p.bold(fmt.Sprintf("  %-24s %8s %6s %8s %8s", "category", "phrases", "hits", "top1", "mrr")))
		for _, c := range r.CategoryBreakdown {
			fmt.Fprintf(p.out, "  %-24s %8d %6d %7.1f%% %8.3f\n", c.Category, c.Phrases, c.Hits, 100*c.TopKAccuracy1, c.MRRScore)
		}
	}

	for _, ex := range r.Excluded {
		fmt.Fprintf(p.out, "  %s %q: %s\n", p.bad("excluded"), ex.Phrase, ex.Reason)
	}

	if !details {
		return
	}
	fmt.Fprintln(p.out)
	for _, d := range r.Details {
		mark := p.bad("miss")
		if d.IsHit {
			mark = p.good(fmt.Sprintf("#%d", *d.ExpectedRank))
		}
		fmt.Fprintf(p.out, "  %-5s %s %s\n", mark, d.Phrase, p.dim(fmt.Sprintf("(%.1f ms)", d.LatencyMs)))
		for i, rc := range d.RetrievedChunks {
			line := fmt.Sprintf("        %d. [%.3f] %s", i+1, rc.Similarity, truncate(rc.Content, 80))
			if rc.IsExpected {
				line = p.good(line)
			}
			fmt.Fprintln(p.out, line)
		}
	}
}

func (p *printer) metrics(m core.Metrics) {
	fmt.Fprintf(p.out, "  top-1        %.1f%%\n", 100*m.TopKAccuracy1)
	fmt.Fprintf(p.out, "  top-3        %.1f%%\n", 100*m.TopKAccuracy3)
	fmt.Fprintf(p.out, "  top-5        %.1f%%\n", 100*m.TopKAccuracy5)
	fmt.Fprintf(p.out, "  MRR          %.3f\n", m.MRRScore)
	fmt.Fprintf(p.out, "  nDCG         %.3f\n", m.NDCGScore)
	fmt.Fprintf(p.out, "  similarity   %.3f\n", m.AvgSimilarity)
}

// compareTable prints one line per row. Pareto-optimal rows are
// highlighted.
func (p *printer) compareTable(rows []compare.Row, metric compare.Metric) {
	fmt.Fprintln(p.out, p.bold(fmt.Sprintf("%5s  %-32s %-9s %5s %7s %7s %7s %7s %10s  %s",
		"run", "model", "provider", "dims", "top1", "top3", "mrr", "ndcg", "latency", "chunks")))
	for _, r := range rows {
		line := fmt.Sprintf("%5d  %-32s %-9s %5d %6.1f%% %6.1f%% %7.3f %7.3f %8.1fms  %d/%d %s",
			r.RunID, truncate(r.Model, 32), r.Provider, r.Dimensions,
			100*r.Metrics.TopKAccuracy1, 100*r.Metrics.TopKAccuracy3, r.Metrics.MRRScore, r.Metrics.NDCGScore,
			r.AvgLatencyMs, r.ChunkSize, r.ChunkOverlap, r.ChunkStrategy)
		if r.Pareto {
			line = p.good(line + "  *")
		}
		fmt.Fprintln(p.out, line)
	}
	fmt.Fprintln(p.out, p.dim(fmt.Sprintf("* Pareto-optimal by latency and %s", metric)))
}

func (p *printer) runTable(runs []*core.EvalRun, models map[core.ID]string) {
	fmt.Fprintln(p.out, p.bold(fmt.Sprintf("%5s  %-32s %-8s %5s %7s %7s %8s  %s",
		"run", "model", "status", "topK", "top1", "mrr", "phrases", "created")))
	for _, r := range runs {
		status := string(r.Status)
		if r.Status == core.RunError {
			status = p.bad(fmt.Sprintf("%-8s", status))
		} else {
			status = fmt.Sprintf("%-8s", status)
		}
		fmt.Fprintf(p.out, "%5d  %-32s %s %5d %6.1f%% %7.3f %8d  %s\n",
			r.Id, truncate(models[r.ModelId], 32), status, r.TopK,
			100*r.Metrics.TopKAccuracy1, r.Metrics.MRRScore, r.EvaluatedPhrases,
			r.CreatedAt.Local().Format(time.DateTime))
	}
}

func (p *printer) gridResult(r *grid.Result) {
	fmt.Fprintf(p.out, "  top-1 %.1f%%  MRR %.3f  %d chunks  %d phrases",
		100*r.Metrics.TopKAccuracy1, r.Metrics.MRRScore, r.TotalChunks, r.EvaluatedPhrases)
	if r.Unmatched > 0 {
		fmt.Fprint(p.out, "  ", p.bad(fmt.Sprintf("%d unmatched", r.Unmatched)))
	}
	fmt.Fprintln(p.out)
}

func (p *printer) gridSummary(s *grid.Summary) {
	fmt.Fprintln(p.out)
	if s.Recommendation == nil {
		fmt.Fprintln(p.out, p.bad("No configuration produced a result"))
		return
	}
	rec := s.Recommendation
	fmt.Fprintf(p.out, "%s %s (run %d)\n", p.good("Recommended:"), rec.ChunkConfig, rec.RunID)
	p.metrics(rec.Metrics)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
