package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/poiesic/embedeval"
	"github.com/poiesic/embedeval/catalog"
	"github.com/poiesic/embedeval/compare"
	"github.com/poiesic/embedeval/core"
	"github.com/poiesic/embedeval/eval"
	"github.com/poiesic/embedeval/grid"
	"github.com/poiesic/embedeval/reembed"
	"github.com/urfave/cli/v2"
)

func serveCommand(c *cli.Context) error {
	db, err := openDatabase(c, embedeval.WithMetrics(newMetrics()))
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := db.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.ListenAndServe(c.Context, c.String("addr"))
}

func seedCommand(c *cli.Context) error {
	cat := catalog.Default()
	if path := c.String("catalog"); path != "" {
		var err error
		if cat, err = catalog.Load(path); err != nil {
			return err
		}
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.Seed(c.Context, cat)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	fmt.Printf("Models: %d added, %d already present\n", res.ModelsAdded, res.ModelsSkipped)
	fmt.Printf("Rerankers: %d added, %d already present\n", res.RerankersAdded, res.RerankersSkipped)
	return nil
}

func importCommand(c *cli.Context) error {
	corpus, err := catalog.LoadCorpus(c.String("corpus"))
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := db.ImportCorpus(c.Context, corpus)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("Imported %d source texts as %d chunks (%s)\n", res.Sources, res.Chunks, corpus.Chunking)
	fmt.Printf("Test phrases: %d, with ground truth: %d, unmatched: %d\n", res.Phrases, res.Grounded, res.Unmatched)
	return nil
}

func embedCommand(c *cli.Context) error {
	if c.Bool("all") == (c.String("model") != "") {
		return fmt.Errorf("exactly one of --model and --all is required")
	}
	scope, err := core.ParseScope(c.String("scope"))
	if err != nil {
		return err
	}
	config, err := jobConfig(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(c, embedeval.WithJobConfig(config))
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := db.NewEmbeddingJob()
	if err != nil {
		return err
	}

	ctx := c.Context
	var events iter.Seq[reembed.Event]
	if c.Bool("all") {
		events, err = job.EmbedEveryModel(ctx, scope, config.BatchSize)
	} else {
		model, rerr := db.ResolveModel(ctx, c.String("model"))
		if rerr != nil {
			return rerr
		}
		events, err = job.Run(ctx, reembed.Request{ModelID: model.Id, Scope: scope, BatchSize: config.BatchSize})
	}
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout, os.Stderr)
	failed := false
	for ev := range events {
		p.embedEvent(ev)
		failed = ev.Type == reembed.EventError
	}
	p.endProgress()
	if failed {
		return errors.New("embedding did not complete")
	}
	return nil
}

func evalRequest(c *cli.Context, db *embedeval.Database) (eval.Request, error) {
	req := eval.Request{MatryoshkaDim: c.Int("matryoshka-dim"), TopK: c.Int("top-k")}
	model, err := db.ResolveModel(c.Context, c.String("model"))
	if err != nil {
		return req, err
	}
	req.ModelID = model.Id
	if name := c.String("reranker"); name != "" {
		r, err := db.ResolveReranker(c.Context, name)
		if err != nil {
			return req, err
		}
		req.RerankerID = r.Id
	}
	return req, nil
}

func evaluateCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	req, err := evalRequest(c, db)
	if err != nil {
		return err
	}
	coord, err := db.NewCoordinator()
	if err != nil {
		return err
	}
	events, err := coord.Run(c.Context, req)
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout, os.Stderr)
	var result *eval.Result
	for ev := range events {
		switch ev.Type {
		case eval.EventProgress:
			p.progress(ev.Progress.Message)
		case eval.EventError:
			p.warn(ev.Message)
		case eval.EventComplete:
			result = ev.Result
		}
	}
	p.endProgress()
	if result == nil {
		return errors.New("evaluation did not complete")
	}
	p.evalResult(result, c.Bool("details"))
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	model, err := db.ResolveModel(c.Context, c.String("model"))
	if err != nil {
		return err
	}
	hits, err := db.Search(c.Context, model, query, c.Int("top-k"), c.Int("matryoshka-dim"))
	if err != nil {
		return err
	}

	fmt.Printf("Found %d hits\n", len(hits))
	for i, hit := range hits {
		fmt.Printf("%d: [%0.3f] %s #%d (chunk %d)\n   %s\n", i+1, hit.Similarity, hit.SourceTitle, hit.ChunkIndex, hit.ChunkId, hit.Content)
	}
	return nil
}

func compareCommand(c *cli.Context) error {
	metric, err := compare.ParseMetric(c.String("metric"))
	if err != nil {
		return err
	}
	var runIDs []core.ID
	for _, id := range c.IntSlice("run") {
		if id <= 0 {
			return fmt.Errorf("invalid run id %d", id)
		}
		runIDs = append(runIDs, core.ID(id))
	}
	if len(runIDs) > 0 && (c.Bool("all") || len(c.StringSlice("model")) > 0) {
		return fmt.Errorf("--run cannot be combined with --model or --all")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var ids []core.ID
	for _, name := range c.StringSlice("model") {
		m, err := db.ResolveModel(c.Context, name)
		if err != nil {
			return err
		}
		ids = append(ids, m.Id)
	}

	var rows []compare.Row
	switch {
	case len(runIDs) > 0:
		rows, err = db.CompareRuns(c.Context, metric, runIDs...)
	case c.Bool("all"):
		rows, err = db.CompareAll(c.Context, metric, ids...)
	default:
		rows, err = db.Compare(c.Context, metric, ids...)
	}
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return compare.ErrNoRuns
	}
	newPrinter(os.Stdout, os.Stderr).compareTable(rows, metric)
	return nil
}

func gridCommand(c *cli.Context) error {
	config, err := jobConfig(c)
	if err != nil {
		return err
	}
	db, err := openDatabase(c, embedeval.WithJobConfig(config))
	if err != nil {
		return err
	}
	defer db.Close()

	req, err := evalRequest(c, db)
	if err != nil {
		return err
	}
	runner, err := db.NewGridRunner()
	if err != nil {
		return err
	}
	events, err := runner.Run(c.Context, grid.Request{
		ModelID:       req.ModelID,
		RerankerID:    req.RerankerID,
		MatryoshkaDim: req.MatryoshkaDim,
		TopK:          req.TopK,
		BatchSize:     config.BatchSize,
		Sizes:         c.IntSlice("size"),
		Overlaps:      c.IntSlice("overlap"),
		Strategies:    c.StringSlice("strategy"),
	})
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout, os.Stderr)
	var summary *grid.Summary
	for ev := range events {
		switch ev.Type {
		case grid.EventConfig:
			p.endProgress()
			p.title(fmt.Sprintf("[%d/%d] %s", ev.Current, ev.Total, ev.Config))
		case grid.EventProgress:
			p.progress(ev.Message)
		case grid.EventError:
			p.warn(ev.Message)
		case grid.EventResult:
			p.endProgress()
			p.gridResult(ev.Result)
		case grid.EventComplete:
			summary = ev.Summary
		}
	}
	p.endProgress()
	if summary == nil {
		return errors.New("grid search did not complete")
	}
	p.gridSummary(summary)
	return nil
}

func runsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := db.Repositories()
	runs, err := repos.Evals.ListRuns(c.Context)
	if err != nil {
		return err
	}
	names := make(map[core.ID]string)
	models, err := repos.Models.ListEmbeddingModels(c.Context)
	if err != nil {
		return err
	}
	for _, m := range models {
		names[m.Id] = m.Name
	}
	newPrinter(os.Stdout, os.Stderr).runTable(runs, names)
	return nil
}

func exportCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.ExportRun(c.Context, core.ID(c.Uint64("run")), c.String("out"))
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Printf("Wrote %d results to %s\n", n, c.String("out"))
	return nil
}
