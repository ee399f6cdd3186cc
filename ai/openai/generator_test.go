package openai

import (
	"context"
	"testing"

	"github.com/poiesic/tagger/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
)

func TestGenerator_RendersTemplate(t *testing.T) {
	model := &recordingModel{responses: []string{"태그: #한식, #국물요리"}}
	gen := newGeneratorWithModel(model, ai.DefaultConfig())

	out, err := gen.Generate(context.Background(), "음식: {food_name}\n태그:", "김치찌개")
	require.NoError(t, err)
	assert.Equal(t, "태그: #한식, #국물요리", out)

	require.Len(t, model.messages, 1)
	require.Len(t, model.messages[0], 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0][0].Role)
	assert.Equal(t, "음식: 김치찌개\n태그:", textOf(model.messages[0][0]))
}

func TestGenerator_SamplingOptions(t *testing.T) {
	model := &recordingModel{responses: []string{"#밥"}}
	cfg := ai.NewConfig(
		ai.WithSampling(0.2, 40, 0.9),
		ai.WithMaxTokens(512),
		ai.WithRepeatPenalty(1.1),
	)
	gen := newGeneratorWithModel(model, cfg)

	_, err := gen.Generate(context.Background(), "{food_name}", "현미밥")
	require.NoError(t, err)

	require.Len(t, model.options, 1)
	opts := model.options[0]
	assert.InDelta(t, 0.2, opts.Temperature, 1e-9)
	assert.Equal(t, 40, opts.TopK)
	assert.InDelta(t, 0.9, opts.TopP, 1e-9)
	assert.Equal(t, 512, opts.MaxTokens)
	assert.InDelta(t, 1.1, opts.RepetitionPenalty, 1e-9)
}

func TestGenerator_BadTemplate(t *testing.T) {
	model := &recordingModel{responses: []string{"#밥"}}
	gen := newGeneratorWithModel(model, ai.DefaultConfig())

	_, err := gen.Generate(context.Background(), "음식: {food_name", "현미밥")
	assert.Error(t, err)
	assert.Empty(t, model.messages, "model must not be called for an unrenderable template")
}

func TestGenerator_ModelError(t *testing.T) {
	model := &recordingModel{err: errModelDown}
	gen := newGeneratorWithModel(model, ai.DefaultConfig())

	_, err := gen.Generate(context.Background(), "{food_name}", "현미밥")
	assert.ErrorIs(t, err, errModelDown)
}

func TestGenerator_FakeLLMCycles(t *testing.T) {
	gen := newGeneratorWithModel(fake.NewFakeLLM([]string{"#a", "#b"}), ai.DefaultConfig())
	ctx := context.Background()

	first, err := gen.Generate(ctx, "{food_name}", "x")
	require.NoError(t, err)
	second, err := gen.Generate(ctx, "{food_name}", "y")
	require.NoError(t, err)
	third, err := gen.Generate(ctx, "{food_name}", "z")
	require.NoError(t, err)

	assert.Equal(t, []string{"#a", "#b", "#a"}, []string{first, second, third})
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	cfg := ai.DefaultConfig()
	cfg.GeneratorHost = ""
	_, err := NewGenerator(cfg)
	assert.Error(t, err)
}
