package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/edge-terminal/backend/internal/config"
)

// ErrModelUnavailable is returned for every call when the model failed to initialise.
var ErrModelUnavailable = errors.New("model engine is not running")

// Service encapsulates the single-prompt generation chain.
type Service struct {
	chatModel model.BaseChatModel
	modelName string
	streaming bool
	chain     compose.Runnable[string, *schema.Message]
}

// NewService creates the chat model from configuration and compiles the chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel, cfg.ModelName(), cfg.StreamResponse)
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, modelName string, streaming bool) (*Service, error) {
	if chatModel == nil {
		return nil, ErrModelUnavailable
	}

	chain := compose.NewChain[string, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(func(_ context.Context, prompt string) ([]*schema.Message, error) {
		return []*schema.Message{schema.UserMessage(prompt)}, nil
	}))
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		modelName: modelName,
		streaming: streaming,
		chain:     runnable,
	}, nil
}

// ModelName returns the model identifier sent to the runtime.
func (s *Service) ModelName() string {
	return s.modelName
}

// StreamingEnabled 指示是否逐段返回模型输出。
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// Generate returns the whole response for prompt in one message.
func (s *Service) Generate(ctx context.Context, prompt string) (*schema.Message, error) {
	response, err := s.chain.Invoke(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", err)
	}

	log.Printf("[ai] generated response model=%s length=%d", s.modelName, len(response.Content))
	return response, nil
}

// Stream returns the response for prompt as a sequence of message fragments. When
// streaming is disabled the whole response arrives as a single fragment.
func (s *Service) Stream(ctx context.Context, prompt string) (*schema.StreamReader[*schema.Message], error) {
	if !s.streaming {
		response, err := s.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return schema.StreamReaderFromArray([]*schema.Message{response}), nil
	}

	stream, err := s.chain.Stream(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to stream AI chain output: %w", err)
	}
	return stream, nil
}

// Unavailable stands in for Service when the model could not be created at startup.
type Unavailable struct {
	Cause error
}

// Stream always fails.
func (u Unavailable) Stream(context.Context, string) (*schema.StreamReader[*schema.Message], error) {
	if u.Cause != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, u.Cause)
	}
	return nil, ErrModelUnavailable
}
