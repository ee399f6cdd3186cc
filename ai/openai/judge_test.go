package openai

import (
	"context"
	"testing"

	"github.com/poiesic/tagger/ai"
	"github.com/poiesic/tagger/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestJudge_SendsTemplateAndCases(t *testing.T) {
	model := &recordingModel{responses: []string{`{"optimized_new_prompt":"{food_name}","optimization_score":90}`}}
	judge := newJudgeWithModel(model, ai.DefaultConfig())

	cases := []core.Invocation{
		{Query: "김치찌개", RawResponse: "태그: #한식", Labels: core.LabelSet{"한식"}},
	}
	out, err := judge.Judge(context.Background(), "음식: {food_name}\n태그:", cases)
	require.NoError(t, err)
	assert.Contains(t, out, "optimization_score")

	require.Len(t, model.messages, 1)
	msgs := model.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, judgeSystemPrompt, textOf(msgs[0]))
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)

	user := textOf(msgs[1])
	// The existing template is inserted verbatim, slot included.
	assert.Contains(t, user, "음식: {food_name}\n태그:")
	assert.Contains(t, user, `"query": "김치찌개"`)
	assert.Contains(t, user, `"parsed_response": [`)
	assert.Contains(t, user, `"optimized_new_prompt"`)

	require.Len(t, model.options, 1)
	assert.InDelta(t, 0.7, model.options[0].Temperature, 1e-9)
}

func TestJudge_EmptyChoices(t *testing.T) {
	judge := newJudgeWithModel(&recordingModel{}, ai.DefaultConfig())
	_, err := judge.Judge(context.Background(), "{food_name}", nil)
	assert.Error(t, err)
}

func TestJudge_ModelError(t *testing.T) {
	judge := newJudgeWithModel(&recordingModel{err: errModelDown}, ai.DefaultConfig())
	_, err := judge.Judge(context.Background(), "{food_name}", nil)
	assert.ErrorIs(t, err, errModelDown)
}

func TestBuildJudgeRequest_NoCases(t *testing.T) {
	out, err := buildJudgeRequest("{food_name}", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "<테스트 케이스>\n[]\n</테스트 케이스>")
}

func TestBuildJudgeRequest_BracesInTemplate(t *testing.T) {
	// Template text is a value, so literal braces pass through untouched.
	out, err := buildJudgeRequest(`{"x": 1} {food_name}`, nil)
	require.NoError(t, err)
	assert.Contains(t, out, `{"x": 1} {food_name}`)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider(ai.DefaultConfig())
	require.NoError(t, err)
	defer provider.Close()

	assert.NotNil(t, provider.Generator())
	assert.NotNil(t, provider.Judge())
}
