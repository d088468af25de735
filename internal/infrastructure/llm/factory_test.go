package llm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge-ai-api/internal/config"
	apperrors "webforge-ai-api/pkg/errors"
)

type stubProvider struct {
	name string
	text string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(context.Context, Request) (*Response, error) {
	return &Response{Text: s.text, Usage: Usage{PromptTokens: 1, CompletionTokens: 1}}, nil
}

func (s *stubProvider) Stream(context.Context, Request) (ChunkReader, error) {
	return &sliceReader{chunks: []string{s.text}}, nil
}

type sliceReader struct {
	chunks []string
	closed bool
}

func (r *sliceReader) Recv() (string, error) {
	if r.closed || len(r.chunks) == 0 {
		return "", io.EOF
	}
	c := r.chunks[0]
	r.chunks = r.chunks[1:]
	return c, nil
}

func (r *sliceReader) Close() { r.closed = true }

func testLLMConfig() *config.Config {
	return &config.Config{LLM: config.LLMConfig{
		DefaultModel: "gemini-2.5-flash",
		Providers: map[string]config.ProviderConfig{
			"b-gemini": {Kind: "gemini", APIKey: "k", Models: []string{"gemini-2.5-flash", "shared"}},
			"a-compat": {Kind: "openai", APIKey: "k", Models: []string{"gpt-4o-mini", "shared"}},
			"nokey":    {Kind: "gemini", Models: []string{"gemini-exp"}},
		},
	}}
}

func stubBuilder(builds *int) Builder {
	return func(_ context.Context, name string, _ config.ProviderConfig, _ time.Duration) (Provider, error) {
		*builds++
		return &stubProvider{name: name, text: "from " + name}, nil
	}
}

func TestFactoryRoutesByModelAndCaches(t *testing.T) {
	f := NewFactory(testLLMConfig())
	builds := 0
	f.RegisterBuilder("gemini", stubBuilder(&builds))
	f.RegisterBuilder("openai", stubBuilder(&builds))

	ctx := context.Background()
	p, err := f.ForModel(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "b-gemini", p.Name())

	again, err := f.ForModel(ctx, "gemini-2.5-flash")
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 1, builds)

	shared, err := f.ForModel(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "a-compat", shared.Name(), "ties resolve to the alphabetically first provider")

	resp, err := shared.Generate(ctx, Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "from a-compat", resp.Text)
}

func TestFactoryUnknownModel(t *testing.T) {
	_, err := NewFactory(testLLMConfig()).ForModel(context.Background(), "nope")
	require.Error(t, err)
}

func TestFactoryMissingCredentialIsFatal(t *testing.T) {
	_, err := NewFactory(testLLMConfig()).ForModel(context.Background(), "gemini-exp")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUpstreamAuth))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestInstrumentedStreamPassesChunksThrough(t *testing.T) {
	p := Instrument(&stubProvider{name: "stub", text: "chunk"})
	assert.Same(t, p, Instrument(p))

	r, err := p.Stream(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	chunk, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, "chunk", chunk)
	_, err = r.Recv()
	assert.ErrorIs(t, err, io.EOF)
	r.Close()
}
