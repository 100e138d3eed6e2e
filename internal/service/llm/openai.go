package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hacker-kid/internal/config"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/session"
	"io"
	"net/http"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"
)

// ErrNoAPIKey is returned when the tutor backend has no credentials
var ErrNoAPIKey = errors.New("TUTOR_API_KEY not configured")

// OpenAIProvider implements Tutor, Assistant and Speaker against an
// OpenAI-compatible endpoint (OpenRouter by default)
type OpenAIProvider struct {
	client oai.Client
	config *config.TutorConfig
	models *config.ModelsConfig
}

// NewOpenAIProvider creates a new provider from the tutor config
func NewOpenAIProvider(tutorConfig *config.TutorConfig, modelsConfig *config.ModelsConfig, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if tutorConfig.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(tutorConfig.APIKey),
	}
	if tutorConfig.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(tutorConfig.BaseURL))
	}
	if tutorConfig.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: tutorConfig.Timeout,
		}))
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIProvider{
		client: oai.NewClient(reqOpts...),
		config: tutorConfig,
		models: modelsConfig,
	}, nil
}

// GetDefaultModel returns the default model for this provider
func (p *OpenAIProvider) GetDefaultModel() string {
	if p.models != nil {
		return p.models.GetDefaultModel()
	}
	return p.config.Model
}

func (p *OpenAIProvider) resolveModel(override string) string {
	if override != "" {
		return override
	}
	return p.GetDefaultModel()
}

// Chat sends one turn with history and parses the JSON reply
func (p *OpenAIProvider) Chat(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	model := p.resolveModel(req.Model)

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"level":         req.Level,
		"message_count": len(req.History),
		"has_image":     req.Image != "",
	}).Info("Calling tutor API")

	messages := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(buildSystemPrompt(req.Level, req.Text)),
	}
	messages = append(messages, historyMessages(req.History)...)
	messages = append(messages, userTurn(req))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	content, err := p.complete(ctx, params)
	if err != nil {
		return nil, err
	}

	var result TurnResult
	if err := decodeJSONReply(content, &result); err != nil {
		return nil, fmt.Errorf("error decoding tutor reply: %w", err)
	}
	return &result, nil
}

// Explain describes a selected snippet for the given level
func (p *OpenAIProvider) Explain(ctx context.Context, selection, surrounding string, level session.GermanLevel) (*Explanation, error) {
	content, err := p.complete(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.GetDefaultModel()),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(buildExplainPrompt(selection, surrounding, level))},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, err
	}

	var result Explanation
	if err := decodeJSONReply(content, &result); err != nil {
		return nil, fmt.Errorf("error decoding explanation: %w", err)
	}
	return &result, nil
}

// Translate renders Chinese text as German at the given level
func (p *OpenAIProvider) Translate(ctx context.Context, chinese string, level session.GermanLevel) (string, error) {
	content, err := p.complete(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.GetDefaultModel()),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(buildTranslatePrompt(chinese, level))},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return "", err
	}

	var result struct {
		German string `json:"german"`
	}
	if err := decodeJSONReply(content, &result); err != nil {
		return "", fmt.Errorf("error decoding translation: %w", err)
	}
	return result.German, nil
}

// EvaluatePronunciation scores a recorded attempt at target
func (p *OpenAIProvider) EvaluatePronunciation(ctx context.Context, target, audio, format string) (*Evaluation, error) {
	if format == "" {
		format = "wav"
	}
	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.InputAudioContentPart(oai.ChatCompletionContentPartInputAudioInputAudioParam{
			Data:   audio,
			Format: format,
		}),
		oai.TextContentPart(buildEvaluatePrompt(target)),
	}

	content, err := p.complete(ctx, oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.GetDefaultModel()),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(parts)},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, err
	}

	var result Evaluation
	if err := decodeJSONReply(content, &result); err != nil {
		return nil, fmt.Errorf("error decoding evaluation: %w", err)
	}
	return &result, nil
}

// Speak synthesises text and returns the mp3 audio as base64
func (p *OpenAIProvider) Speak(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.config.TTSModel),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(p.config.Voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return "", fmt.Errorf("error requesting speech: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading speech: %w", err)
	}
	return base64.StdEncoding.EncodeToString(audio), nil
}

func (p *OpenAIProvider) complete(ctx context.Context, params oai.ChatCompletionNewParams) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Log.WithError(err).WithField("model", params.Model).Error("Tutor API request failed")
		return "", fmt.Errorf("error calling tutor API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in tutor response")
	}

	logger.Log.WithFields(logrus.Fields{
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Tutor API response received")

	return resp.Choices[0].Message.Content, nil
}

// historyMessages maps stored messages to chat roles. Media is not replayed.
func historyMessages(history []session.Message) []oai.ChatCompletionMessageParamUnion {
	messages := make([]oai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		if msg.Text == "" {
			continue
		}
		if msg.Role == session.RoleAI {
			messages = append(messages, oai.AssistantMessage(msg.Text))
		} else {
			messages = append(messages, oai.UserMessage(msg.Text))
		}
	}
	return messages
}

func userTurn(req TurnRequest) oai.ChatCompletionMessageParamUnion {
	if req.Image == "" {
		return oai.UserMessage(req.Text)
	}

	mimeType := req.ImageMimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	parts := []oai.ChatCompletionContentPartUnionParam{
		oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:" + mimeType + ";base64," + req.Image,
		}),
	}
	if req.Text != "" {
		parts = append(parts, oai.TextContentPart(req.Text))
	}
	return oai.UserMessage(parts)
}

// decodeJSONReply parses a model reply, tolerating a markdown code fence
func decodeJSONReply(content string, v any) error {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	if content == "" {
		return errors.New("empty reply")
	}
	return json.Unmarshal([]byte(content), v)
}
