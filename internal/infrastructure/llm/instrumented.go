package llm

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"webforge-ai-api/pkg/metrics"
	"webforge-ai-api/pkg/tracer"
)

// instrumented 为每次调用记录 span 与 Prometheus 指标
type instrumented struct {
	next Provider
}

// Instrument 包装提供商以记录调用指标
func Instrument(p Provider) Provider {
	if _, ok := p.(*instrumented); ok {
		return p
	}
	return &instrumented{next: p}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := i.start(ctx, "llm.generate", req)
	defer span.End()

	start := time.Now()
	resp, err := i.next.Generate(ctx, req)
	i.record(span, req.Params.Model, start, err)
	if err == nil {
		i.recordUsage(req.Params.Model, resp.Usage)
	}
	return resp, err
}

func (i *instrumented) Stream(ctx context.Context, req Request) (ChunkReader, error) {
	ctx, span := i.start(ctx, "llm.stream", req)
	start := time.Now()

	r, err := i.next.Stream(ctx, req)
	if err != nil {
		i.record(span, req.Params.Model, start, err)
		span.End()
		return nil, err
	}
	return &instrumentedReader{ChunkReader: r, owner: i, span: span, model: req.Params.Model, start: start}, nil
}

func (i *instrumented) start(ctx context.Context, name string, req Request) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.provider", i.next.Name()),
		attribute.String("llm.model", req.Params.Model),
		attribute.Int("llm.prompt_chars", len(req.Prompt)),
	))
}

func (i *instrumented) record(span trace.Span, model string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, context.Canceled) {
			status = "cancelled"
		}
		tracer.Fail(span, err)
	}
	metrics.LLMCallTotal.WithLabelValues(i.next.Name(), model, status).Inc()
	metrics.LLMCallDuration.WithLabelValues(i.next.Name(), model).Observe(time.Since(start).Seconds())
}

func (i *instrumented) recordUsage(model string, u Usage) {
	if u.PromptTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(i.next.Name(), model, "prompt").Add(float64(u.PromptTokens))
	}
	if u.CompletionTokens > 0 {
		metrics.LLMTokensUsed.WithLabelValues(i.next.Name(), model, "completion").Add(float64(u.CompletionTokens))
	}
}

type instrumentedReader struct {
	ChunkReader
	owner  *instrumented
	span   trace.Span
	model  string
	start  time.Time
	chunks int
	once   sync.Once
}

func (r *instrumentedReader) Recv() (string, error) {
	chunk, err := r.ChunkReader.Recv()
	switch {
	case err == nil:
		r.chunks++
	case errors.Is(err, io.EOF):
		r.finish(nil)
	default:
		r.finish(err)
	}
	return chunk, err
}

func (r *instrumentedReader) Close() {
	r.ChunkReader.Close()
	r.finish(context.Canceled)
}

func (r *instrumentedReader) finish(err error) {
	r.once.Do(func() {
		r.span.SetAttributes(attribute.Int("llm.chunks", r.chunks))
		r.owner.record(r.span, r.model, r.start, err)
		r.span.End()
	})
}
