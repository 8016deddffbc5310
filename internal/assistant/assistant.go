// Package assistant runs the multi-turn parking assistant. The dialogue is
// gated by a small per-session state machine: once the user has selected a
// parking space, every input short-circuits into an entrance clarification
// until an entrance is supplied.
package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/naigggs/hau2park.web-sub001/internal/config"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
)

const entrancePrompt = "Main Entrance or Side Entrance?"

// Completer produces the free-form assistant reply for inputs the state
// machine does not intercept.
type Completer interface {
	Complete(ctx context.Context, conv domain.ConversationContext, input string) (string, error)
}

type Service struct {
	store     ContextStore
	completer Completer
}

func NewService(store ContextStore, completer Completer) *Service {
	return &Service{store: store, completer: completer}
}

// Process handles one user turn. The context is loaded at the start of the
// turn and written back at the end; it is never reached through hidden
// global state.
func (s *Service) Process(ctx context.Context, sessionID, input string) (domain.ChatResponseDTO, error) {
	conv, ok := s.store.Get(sessionID)
	if !ok {
		conv = domain.ConversationContext{SessionID: sessionID}
	}
	conv.LastQuery = input
	conv.Turns++

	var reply string
	switch conv.State() {
	case domain.StateAwaitingEntrance:
		// Intercept before any other processing: the only acceptable
		// input right now is an entrance choice.
		if entrance, ok := parseEntrance(input); ok {
			conv.Entrance = entrance
			reply = fmt.Sprintf("Got it, %s for %s. You can head over any time.", entrance, conv.SelectedParking)
		} else {
			reply = entrancePrompt
		}

	default:
		var err error
		reply, err = s.complete(ctx, conv, input)
		if err != nil {
			return domain.ChatResponseDTO{}, err
		}
	}

	s.store.Set(conv)
	return domain.ChatResponseDTO{Reply: reply, Context: conv}, nil
}

// ContextUpdate is a partial merge; nil fields are left untouched
// (last-write-wins per field).
type ContextUpdate struct {
	LastQuery       *string
	SelectedParking *string
	Entrance        *domain.Entrance
}

// UpdateContext merges the partial update into the session context.
// Entrance can never be set while no parking is selected.
func (s *Service) UpdateContext(sessionID string, update ContextUpdate) (domain.ConversationContext, error) {
	conv, ok := s.store.Get(sessionID)
	if !ok {
		conv = domain.ConversationContext{SessionID: sessionID}
	}

	if update.LastQuery != nil {
		conv.LastQuery = *update.LastQuery
	}
	if update.SelectedParking != nil {
		conv.SelectedParking = *update.SelectedParking
		// A new (or cleared) selection invalidates any prior entrance.
		conv.Entrance = ""
	}
	if update.Entrance != nil {
		if conv.SelectedParking == "" {
			return conv, &domain.ValidationError{
				Op:    "assistant.UpdateContext",
				Field: "entrance",
				Msg:   "cannot be set before a parking space is selected",
			}
		}
		conv.Entrance = *update.Entrance
	}

	s.store.Set(conv)
	return conv, nil
}

func (s *Service) GetContext(sessionID string) (domain.ConversationContext, bool) {
	return s.store.Get(sessionID)
}

// ClearContext resets the session to Idle; called on session end or an
// explicit reset.
func (s *Service) ClearContext(sessionID string) {
	s.store.Clear(sessionID)
}

func (s *Service) complete(ctx context.Context, conv domain.ConversationContext, input string) (string, error) {
	if s.completer == nil {
		return "The parking assistant is offline right now. Please check the parking list directly.", nil
	}
	reply, err := s.completer.Complete(ctx, conv, input)
	if err != nil {
		log.Printf("assistant: completion for session %s failed: %v", conv.SessionID, err)
		return "", fmt.Errorf("assistant completion: %w", err)
	}
	return reply, nil
}

func parseEntrance(input string) (domain.Entrance, bool) {
	lowered := strings.ToLower(input)
	switch {
	case strings.Contains(lowered, "main"):
		return domain.EntranceMain, true
	case strings.Contains(lowered, "side"):
		return domain.EntranceSide, true
	}
	return "", false
}

// OpenAICompleter answers free-form turns through a chat-completion model.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(cfg *config.Config) *OpenAICompleter {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.OpenAIModel,
	}
}

const systemPrompt = `You are the HAU2Park campus parking assistant. Answer questions about
parking availability, guest requests and campus entrances. Keep replies short and practical.`

func (c *OpenAICompleter) Complete(ctx context.Context, conv domain.ConversationContext, input string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if conv.SelectedParking != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("The user currently has parking space %q selected (entrance: %s).", conv.SelectedParking, conv.Entrance),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
