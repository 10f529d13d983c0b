package rubyscope

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/jward/rubyscope/internal/analysis"
)

// AnalyzeFiles reads and analyzes paths in parallel, bounded by WithJobs,
// and returns the analyses in the order of paths. Workers share nothing but
// the cache. When a store is attached, new generations are committed
// serially after every worker has finished.
//
// The first read or parse error cancels the remaining work.
func (e *Engine) AnalyzeFiles(ctx context.Context, paths []string) (_ []*FileAnalysis, err error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	ctx, span := e.tracer.Start(ctx, spanAnalyzeFiles)
	span.SetAttributes(attribute.Int("rubyscope.files", len(paths)), attribute.Int("rubyscope.jobs", e.jobs))
	defer func() { endSpan(span, err) }()

	results := make([]*analysis.FileAnalysis, len(paths))
	computed := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("rubyscope: read %s: %w", path, err)
			}
			fa, fresh, err := e.analyze(gctx, path, content)
			if err != nil {
				return err
			}
			results[i], computed[i] = fa, fresh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Serial commit phase.
	for i, fa := range results {
		if !computed[i] {
			continue
		}
		if err := e.commit(fa); err != nil {
			return nil, err
		}
	}
	e.log.Infof("analyzed %d file(s)", len(paths))
	return results, nil
}
