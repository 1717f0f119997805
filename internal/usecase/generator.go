package usecase

import (
	"context"
	"iter"
	"log/slog"
	"os"
	"strconv"

	"permtemplate/internal/domain"
	"permtemplate/internal/infra/tracer"
)

// OutputWriter persists the rendered output.
type OutputWriter interface {
	WriteFile(name string, data []byte, perm os.FileMode) error
}

// GenerateResult summarizes a run.
type GenerateResult struct {
	Scanned  int
	Excluded int
	Entries  int
	Bytes    int
}

// Generator runs scan, filter, render and write in order. The output is
// written only after rendering has fully succeeded.
type Generator struct {
	scanner  *Scanner
	filter   *Filter
	renderer *Renderer
	writer   OutputWriter
	audit    domain.AuditLogger
	logger   *slog.Logger
}

// NewGenerator wires the pipeline stages.
func NewGenerator(scanner *Scanner, filter *Filter, renderer *Renderer, writer OutputWriter, logger *slog.Logger) *Generator {
	return &Generator{
		scanner:  scanner,
		filter:   filter,
		renderer: renderer,
		writer:   writer,
		logger:   logger,
	}
}

// WithAudit records every run, successful or not, to audit.
func (g *Generator) WithAudit(audit domain.AuditLogger) *Generator {
	g.audit = audit
	return g
}

// Generate scans the source tree and writes the rendered result to output.
func (g *Generator) Generate(ctx context.Context, output string, perm os.FileMode) (GenerateResult, error) {
	ctx, span := tracer.StartStage(ctx, "generate")
	res, err := g.generate(ctx, output, perm)
	if err == nil {
		span.SetAttributes(
			tracer.IntAttr("scanned", res.Scanned),
			tracer.IntAttr("entries", res.Entries),
		)
	}
	if g.audit != nil {
		g.record(ctx, output, res, err)
	}
	tracer.Finish(span, err)
	return res, err
}

func (g *Generator) record(ctx context.Context, output string, res GenerateResult, runErr error) {
	event := domain.AuditEvent{
		Type:     domain.AuditGenerate,
		Resource: output,
		Action:   "write",
		Outcome:  domain.AuditOutcomeSuccess,
		Detail: map[string]string{
			"scanned":  strconv.Itoa(res.Scanned),
			"excluded": strconv.Itoa(res.Excluded),
			"entries":  strconv.Itoa(res.Entries),
			"bytes":    strconv.Itoa(res.Bytes),
		},
	}
	if runErr != nil {
		event.Outcome = domain.AuditOutcomeFailure
		event.Detail["error"] = runErr.Error()
		event.Detail["code"] = string(domain.ErrorCodeOf(runErr))
	}
	if err := g.audit.Log(context.WithoutCancel(ctx), event); err != nil {
		g.logger.Warn("audit record not written", "error", err)
	}
}

func (g *Generator) generate(ctx context.Context, output string, perm os.FileMode) (GenerateResult, error) {
	var res GenerateResult

	entries, err := g.scanner.Scan(ctx)
	if err != nil {
		return res, err
	}
	entries = count(entries, &res.Scanned)
	entries = count(g.filter.Apply(entries), &res.Entries)

	_, renderSpan := tracer.StartStage(ctx, "render")
	data, err := g.renderer.Render(entries)
	if err == nil {
		renderSpan.SetAttributes(tracer.IntAttr("entries", res.Entries), tracer.IntAttr("bytes", len(data)))
	}
	tracer.Finish(renderSpan, err)
	if err != nil {
		return res, err
	}

	res.Excluded = res.Scanned - res.Entries
	res.Bytes = len(data)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	_, writeSpan := tracer.StartStage(ctx, "write")
	writeSpan.SetAttributes(tracer.StringAttr("output", output))
	err = g.writer.WriteFile(output, data, perm)
	tracer.Finish(writeSpan, err)
	if err != nil {
		return res, err
	}

	if res.Entries == 0 {
		g.logger.Warn("no entries collected; check the source directory and exclude patterns")
	}
	g.logger.Info("permission template written",
		"output", output,
		"scanned", res.Scanned,
		"excluded", res.Excluded,
		"entries", res.Entries,
		"bytes", res.Bytes,
	)
	return res, nil
}

// count tallies the successful entries flowing through seq into n.
func count(seq iter.Seq2[domain.PermissionEntry, error], n *int) iter.Seq2[domain.PermissionEntry, error] {
	return func(yield func(domain.PermissionEntry, error) bool) {
		for e, err := range seq {
			if err == nil {
				*n++
			}
			if !yield(e, err) {
				return
			}
		}
	}
}
