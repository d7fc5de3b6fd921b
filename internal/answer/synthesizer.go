// Package answer turns retrieved context into a grounded answer using a chat model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"document-qa/internal/models"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
)

type Synthesizer struct {
	model       llms.Model
	temperature float64
	maxTokens   int
}

type Option func(*Synthesizer)

func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) { s.maxTokens = n }
}

func New(model llms.Model, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		model:       model,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildContext renders the candidates as numbered sections in the given order.
func BuildContext(candidates []models.RetrievedCandidate) string {
	sections := make([]string, 0, len(candidates))
	for i, c := range candidates {
		source := c.SourceFile
		if source == "" {
			source = models.UnknownSource
		}
		sections = append(sections, fmt.Sprintf(models.ContextSectionTemplate, i+1, source, c.Similarity, c.Content))
	}
	return strings.Join(sections, models.ContextSeparator)
}

func BuildPrompt(query string, candidates []models.RetrievedCandidate) string {
	return fmt.Sprintf(models.UserPromptTemplate, BuildContext(candidates), query)
}

func (s *Synthesizer) messages(query string, candidates []models.RetrievedCandidate) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(query, candidates)),
	}
}

func (s *Synthesizer) callOptions(extra ...llms.CallOption) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithTemperature(s.temperature),
		llms.WithMaxTokens(s.maxTokens),
	}
	return append(opts, extra...)
}

// Synthesize answers query from candidates. It never fails: a missing context
// or a generator error is reported in the returned text.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, candidates []models.RetrievedCandidate) string {
	if len(candidates) == 0 {
		return models.NoContextAnswer
	}

	log.Debug().Int("candidates", len(candidates)).Msg("Generating answer")
	resp, err := s.model.GenerateContent(ctx, s.messages(query, candidates), s.callOptions()...)
	if err != nil {
		log.Error().Err(err).Msg("Error generating response")
		return fmt.Sprintf(models.ErrorAnswer, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		err = errors.New("empty response from model")
		log.Error().Err(err).Msg("Error generating response")
		return fmt.Sprintf(models.ErrorAnswer, err)
	}

	return resp.Choices[0].Content
}

// Stream answers query incrementally. The channel is closed when generation
// ends. A generator error is delivered as one final fragment; cancellation of
// ctx closes the channel without one.
func (s *Synthesizer) Stream(ctx context.Context, query string, candidates []models.RetrievedCandidate) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		if len(candidates) == 0 {
			send(ctx, out, models.NoContextAnswer)
			return
		}

		streaming := llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if !send(ctx, out, string(chunk)) {
				return ctx.Err()
			}
			return nil
		})

		_, err := s.model.GenerateContent(ctx, s.messages(query, candidates), s.callOptions(streaming)...)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			log.Debug().Err(err).Msg("Answer stream cancelled")
			return
		}
		log.Error().Err(err).Msg("Error streaming response")
		send(ctx, out, fmt.Sprintf(models.ErrorAnswer, err))
	}()

	return out
}

// send delivers fragment unless ctx is done first.
func send(ctx context.Context, out chan<- string, fragment string) bool {
	select {
	case out <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}
