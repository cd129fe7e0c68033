package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	mu        sync.Mutex
	fragments []string
	err       error
	inputs    [][]*schema.Message
}

func (f *fakeChatModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(strings.Join(f.fragments, ""), nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.err != nil {
		return nil, f.err
	}
	chunks := make([]*schema.Message, 0, len(f.fragments))
	for _, fragment := range f.fragments {
		chunks = append(chunks, schema.AssistantMessage(fragment, nil))
	}
	return schema.StreamReaderFromArray(chunks), nil
}

func collect(t *testing.T, stream *schema.StreamReader[*schema.Message]) []string {
	t.Helper()
	defer stream.Close()

	var out []string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, chunk.Content)
	}
}

func TestStreamSendsPromptAsSingleUserMessage(t *testing.T) {
	fake := &fakeChatModel{fragments: []string{"你", "好"}}
	svc, err := NewServiceWithModel(context.Background(), fake, "mistral-nemo", true)
	require.NoError(t, err)

	stream, err := svc.Stream(context.Background(), "composed prompt")
	require.NoError(t, err)
	assert.Equal(t, "你好", strings.Join(collect(t, stream), ""))

	require.Len(t, fake.inputs, 1)
	require.Len(t, fake.inputs[0], 1)
	assert.Equal(t, schema.User, fake.inputs[0][0].Role)
	assert.Equal(t, "composed prompt", fake.inputs[0][0].Content)
	assert.Equal(t, "mistral-nemo", svc.ModelName())
}

func TestStreamDisabledReturnsWholeResponse(t *testing.T) {
	fake := &fakeChatModel{fragments: []string{"a", "b", "c"}}
	svc, err := NewServiceWithModel(context.Background(), fake, "m", false)
	require.NoError(t, err)
	assert.False(t, svc.StreamingEnabled())

	stream, err := svc.Stream(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, collect(t, stream))
}

func TestGenerateWrapsModelErrors(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("connection refused")}
	svc, err := NewServiceWithModel(context.Background(), fake, "m", true)
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNewServiceWithNilModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, "m", true)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestUnavailableAlwaysFails(t *testing.T) {
	_, err := Unavailable{Cause: errors.New("dial tcp")}.Stream(context.Background(), "p")
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "dial tcp")
}
