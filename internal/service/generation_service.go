package service

import (
	"context"
	"log/slog"
	"os"
	"strings"

	cfg "github.com/maheshrc27/travelpost-bot/configs"
	"github.com/maheshrc27/travelpost-bot/internal/transfer"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultSystemPrompt = `You are a creative travel writer with years of experience. Write vividly and usefully, no filler.
Keep paragraphs short (2-4 sentences) and use Markdown to highlight key points.
Always finish with one highlighted call to action.
For the illustration write a very detailed image_prompt in English: photorealistic, natural colour and light,
no text and no people, rich detail about composition, light and colour, square 1:1 aspect ratio.

Return the result strictly in this format:
---
TITLE:
<short title>

TEXT:
<post text in markdown>

IMAGE_PROMPT:
<image prompt only>
---`

type GenerationService interface {
	// GeneratePost never fails: provider errors and unparseable answers
	// fall back to placeholder text built from the topic.
	GeneratePost(ctx context.Context, topic string) transfer.GeneratedPost
}

type generationService struct {
	llm          llms.Model
	systemPrompt string
}

func NewGenerationService(c cfg.Config) GenerationService {
	prompt := defaultSystemPrompt
	if c.OpenAI.PromptFile != "" {
		if p := readPrompt(c.OpenAI.PromptFile); p != "" {
			prompt = p
		}
	}

	if c.OpenAI.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty, posts will use placeholder text")
		return &generationService{systemPrompt: prompt}
	}

	llm, err := openai.New(
		openai.WithModel(c.OpenAI.TextModel),
		openai.WithToken(c.OpenAI.APIKey),
		openai.WithBaseURL(c.OpenAI.BaseURL),
	)
	if err != nil {
		slog.Error("failed to init text model", "err", err)
		return &generationService{systemPrompt: prompt}
	}

	return &generationService{llm: llm, systemPrompt: prompt}
}

func readPrompt(file string) string {
	data, err := os.ReadFile(file)
	if err != nil {
		slog.Error("failed to read prompt file", "file", file, "err", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *generationService) GeneratePost(ctx context.Context, topic string) transfer.GeneratedPost {
	fallback := FallbackPost(topic)
	if s.llm == nil {
		return fallback
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, s.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, "Topic: "+topic),
	}

	slog.Info("requesting post text", "topic", topic)
	resp, err := s.llm.GenerateContent(ctx, messages, llms.WithTemperature(0.8))
	if err != nil {
		slog.Error("text generation failed", "topic", topic, "err", err)
		return fallback
	}
	if resp == nil || len(resp.Choices) == 0 {
		slog.Info("text model returned no choices", "topic", topic)
		return fallback
	}

	parsed := ParseGeneratedText(strings.TrimSpace(resp.Choices[0].Content))
	if parsed.Title == "" {
		parsed.Title = fallback.Title
	}
	if parsed.Text == "" {
		parsed.Text = fallback.Text
	}
	return parsed
}

// FallbackPost is the deterministic post used when generation is unavailable.
func FallbackPost(topic string) transfer.GeneratedPost {
	return transfer.GeneratedPost{
		Title: "Travel: " + topic,
		Text:  "*Post about:* " + topic,
	}
}

// ParseGeneratedText splits a model answer on its TITLE:, TEXT: and
// IMAGE_PROMPT: markers. Without the first two markers the whole answer is text.
func ParseGeneratedText(raw string) transfer.GeneratedPost {
	var out transfer.GeneratedPost

	_, afterTitle, hasTitle := strings.Cut(raw, "TITLE:")
	if !hasTitle || !strings.Contains(afterTitle, "TEXT:") {
		out.Text = cleanSection(raw)
		return out
	}

	title, rest, _ := strings.Cut(afterTitle, "TEXT:")
	out.Title = cleanSection(title)

	if text, prompt, ok := strings.Cut(rest, "IMAGE_PROMPT:"); ok {
		out.Text = cleanSection(text)
		out.ImagePrompt = cleanSection(prompt)
	} else {
		out.Text = cleanSection(rest)
	}
	return out
}

func cleanSection(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "---")
	s = strings.TrimSuffix(s, "---")
	return strings.TrimSpace(s)
}
