package llmservice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/config"
)

func TestNewLLM(t *testing.T) {
	llm, err := NewLLM(&config.LLMConfig{Provider: config.ProviderOpenAI, Key: "Bearer sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.NotNil(t, llm)

	llm, err = NewLLM(&config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3"})
	require.NoError(t, err)
	assert.NotNil(t, llm)
}

func TestNewLLMUnsupported(t *testing.T) {
	_, err := NewLLM(&config.LLMConfig{Provider: "bard"})
	assert.ErrorContains(t, err, "unsupported chat provider")
}
