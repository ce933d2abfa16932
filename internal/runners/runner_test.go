package runners

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zetareason/reasonbench/internal/models"
)

func TestParseResponse_AnswerAndConfidence(t *testing.T) {
	raw := "First I add the tens.\nThen the ones.\nAnswer: 42\nConfidence: 0.85"

	answer, cot, conf := ParseResponse(raw, true)

	assert.Equal(t, "42", answer)
	require.NotNil(t, cot)
	assert.Equal(t, "First I add the tens.\nThen the ones.", *cot)
	require.NotNil(t, conf)
	assert.Equal(t, 0.85, *conf)
}

func TestParseResponse_NoMarkerFallsBackToWholeText(t *testing.T) {
	answer, cot, conf := ParseResponse("  just 7  ", true)

	assert.Equal(t, "just 7", answer)
	assert.Nil(t, cot)
	assert.Nil(t, conf)
}

func TestParseResponse_DirectModeKeepsNoReasoning(t *testing.T) {
	answer, cot, _ := ParseResponse("Some preamble.\nAnswer: blue", false)

	assert.Equal(t, "blue", answer)
	assert.Nil(t, cot, "reasoning is only captured in CoT mode")
}

func TestParseResponse_ConfidenceOutOfRangeIgnored(t *testing.T) {
	_, _, conf := ParseResponse("Answer: 3\nConfidence: 1.7", true)
	assert.Nil(t, conf)
}

func TestParseResponse_CaseInsensitiveMarkers(t *testing.T) {
	answer, _, conf := ParseResponse("ANSWER: Paris\nCONFIDENCE: 0.9", false)
	assert.Equal(t, "Paris", answer)
	require.NotNil(t, conf)
	assert.Equal(t, 0.9, *conf)
}

func TestBuildPrompt(t *testing.T) {
	direct := BuildPrompt("What is 2+2?", false)
	cot := BuildPrompt("What is 2+2?", true)

	assert.Contains(t, direct, "What is 2+2?")
	assert.NotContains(t, direct, "step by step")
	assert.Contains(t, cot, "step by step")
	assert.Contains(t, cot, `"Confidence:"`)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(models.ModelConfig{Provider: "mystery", ModelID: "m"})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "mystery")
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")

	_, err := New(models.ModelConfig{Provider: "deepseek", ModelID: "deepseek-chat"})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "DEEPSEEK_API_KEY")
}

func TestNew_APIKeyFromOptions(t *testing.T) {
	t.Setenv("XAI_API_KEY", "")

	r, err := New(models.ModelConfig{
		Provider: "grok",
		ModelID:  "grok-2",
		Options:  map[string]any{"api_key": "sk-test"},
	})
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(models.ModelConfig{
		Provider: "scripted",
		ModelID:  "demo",
		Options:  map[string]any{"accuracy": 1.5},
	})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestScriptedRunner_Deterministic(t *testing.T) {
	r, err := New(models.ModelConfig{Provider: "scripted", ModelID: "demo", UseCoT: true})
	require.NoError(t, err)

	first, err := r.Run(context.Background(), "What is 12 + 30?")
	require.NoError(t, err)
	second, err := r.Run(context.Background(), "What is 12 + 30?")
	require.NoError(t, err)

	assert.Equal(t, first.Answer, second.Answer)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, *first.Confidence, *second.Confidence)
	require.NotNil(t, first.CoTText)
	assert.Contains(t, *first.CoTText, "1.")
}

func TestScriptedRunner_SolvesArithmeticAtFullAccuracy(t *testing.T) {
	r, err := New(models.ModelConfig{
		Provider: "scripted",
		ModelID:  "demo",
		Options:  map[string]any{"accuracy": 1.0},
	})
	require.NoError(t, err)

	out, err := r.Run(context.Background(), "What is 7 * 6?")
	require.NoError(t, err)
	assert.Equal(t, "42", out.Answer)
	require.NotNil(t, out.LatencyMs)
}

func TestScriptedRunner_CancelledContext(t *testing.T) {
	r, err := New(models.ModelConfig{Provider: "scripted", ModelID: "demo"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx, "What is 1 + 1?")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "scripted", provErr.Provider)
}

func TestProviderError_Error(t *testing.T) {
	withStatus := &ProviderError{Provider: "openai", StatusCode: 429, Message: "rate limited"}
	assert.Equal(t, "openai: rate limited (status 429)", withStatus.Error())

	plain := &ProviderError{Provider: "qwen", Message: "dial timeout"}
	assert.Equal(t, "qwen: dial timeout", plain.Error())

	assert.True(t, errors.As(error(withStatus), new(*ProviderError)))
}

func TestProviders_IncludesAllAdapters(t *testing.T) {
	names := Providers()
	assert.ElementsMatch(t, []string{"deepseek", "grok", "openai", "qwen", "scripted"}, names)
}
