package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge-ai-api/internal/application/classifier"
	"webforge-ai-api/internal/domain/entity"
	"webforge-ai-api/internal/workflow/prompt"
)

func newTestEnricher() *Enricher {
	return NewEnricher(classifier.New(), prompt.NewRegistry())
}

func TestFintechAndGameBothApplyInOrder(t *testing.T) {
	e := newTestEnricher()

	got, err := e.Enrich(context.Background(), "Um jogo de trading com carteira digital e login no backend")
	require.NoError(t, err)

	assert.Equal(t, []entity.ProtocolID{
		entity.ProtocolBase, entity.ProtocolFintech, entity.ProtocolGame, entity.ProtocolExcellence,
	}, got.AppliedProtocols())

	text := got.Text()
	fintech := strings.Index(text, "# FINTECH PROTOCOL")
	game := strings.Index(text, "# GAME PROTOCOL")
	require.Positive(t, fintech)
	require.Positive(t, game)
	assert.Less(t, fintech, game)
	assert.NotContains(t, text, "# FULLSTACK PROTOCOL")
	assert.True(t, got.Context().IsFullstack, "fullstack is detected but suppressed")
}

func TestFullstackFallback(t *testing.T) {
	got, err := newTestEnricher().Enrich(context.Background(), "Sistema de gestão com banco de dados e autenticação")
	require.NoError(t, err)

	assert.True(t, got.Has(entity.ProtocolFullstack))
	assert.Contains(t, got.Text(), "# FULLSTACK PROTOCOL")
}

func TestMobileDirectives(t *testing.T) {
	got, err := newTestEnricher().Enrich(context.Background(), "Crie um app de lista de tarefas")
	require.NoError(t, err)

	assert.True(t, got.Context().IsMobileApp)
	assert.True(t, got.Has(entity.ProtocolMobile))
	assert.Contains(t, got.Text(), "# MOBILE APP PROTOCOL")
}

func TestWrapperEmbedsLiteralPromptAndExcellenceLast(t *testing.T) {
	userPrompt := "Página sobre {{.secret}} com <b>negrito</b>"
	got, err := newTestEnricher().Enrich(context.Background(), userPrompt)
	require.NoError(t, err)

	text := got.Text()
	assert.Contains(t, text, userPrompt)
	assert.True(t, strings.HasPrefix(text, "# SENIOR FRONTEND ENGINEER MANIFESTO"))
	assert.Less(t, strings.Index(text, "# EXCELLENCE CRITERIA"), strings.Index(text, "# USER REQUEST"))
	assert.True(t, strings.HasSuffix(text, "following every directive above."))

	ids := got.AppliedProtocols()
	assert.Equal(t, entity.ProtocolExcellence, ids[len(ids)-1])
}

func TestEnrichIsDeterministic(t *testing.T) {
	e := newTestEnricher()
	a, err := e.Enrich(context.Background(), "landing page de um app de finanças")
	require.NoError(t, err)
	b, err := e.Enrich(context.Background(), "landing page de um app de finanças")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProtocols(t *testing.T) {
	assert.Equal(t,
		[]entity.ProtocolID{entity.ProtocolBase, entity.ProtocolExcellence},
		Protocols(entity.DetectedContext{}))
	assert.Equal(t,
		[]entity.ProtocolID{entity.ProtocolBase, entity.ProtocolFullstack, entity.ProtocolMobile, entity.ProtocolSingleFile, entity.ProtocolExcellence},
		Protocols(entity.DetectedContext{IsFullstack: true, IsMobileApp: true, IsSingleFile: true}))
}
