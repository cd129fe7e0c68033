package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/access"
	chatservice "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/convert"
)

type recordingDisplay struct {
	mu     sync.Mutex
	phases []Phase
	frames []Frame
	errors []string
}

func (d *recordingDisplay) Phase(p Phase) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.phases = append(d.phases, p)
}

func (d *recordingDisplay) Render(f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, f)
}

func (d *recordingDisplay) Error(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, message)
}

func (d *recordingDisplay) deltas() string {
	var b strings.Builder
	for _, f := range d.frames {
		b.WriteString(f.Delta)
	}
	return b.String()
}

type fakeSearcher struct {
	queries []string
	result  string
	err     error
}

func (s *fakeSearcher) Search(_ context.Context, query string) (string, error) {
	s.queries = append(s.queries, query)
	return s.result, s.err
}

func (s *fakeSearcher) Available() bool { return true }

type fakeGenerator struct {
	prompts   []string
	fragments []string
	failAfter int
	err       error
	openErr   error
}

func (g *fakeGenerator) Stream(_ context.Context, prompt string) (*schema.StreamReader[*schema.Message], error) {
	g.prompts = append(g.prompts, prompt)
	if g.openErr != nil {
		return nil, g.openErr
	}

	sr, sw := schema.Pipe[*schema.Message](len(g.fragments) + 1)
	go func() {
		defer sw.Close()
		for i, fragment := range g.fragments {
			if g.err != nil && i == g.failAfter {
				sw.Send(nil, g.err)
				return
			}
			sw.Send(schema.AssistantMessage(fragment, nil), nil)
		}
		if g.err != nil && g.failAfter >= len(g.fragments) {
			sw.Send(nil, g.err)
		}
	}()
	return sr, nil
}

type upperConverter struct{}

func (upperConverter) Convert(text string) (string, error) {
	return strings.ToUpper(text), nil
}

type fixture struct {
	sessions  *chatservice.Service
	profiles  *profile.MemoryStore
	searcher  *fakeSearcher
	generator *fakeGenerator
	runner    *Runner
	sessionID string
}

func newFixture(t *testing.T, searchOn bool, conv convert.Converter) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		sessions:  chatservice.NewService(access.NewGate("12345")),
		profiles:  profile.NewMemoryStore(profile.Seed(), "v1"),
		searcher:  &fakeSearcher{result: "search says hi"},
		generator: &fakeGenerator{fragments: []string{"hello ", "world"}},
	}
	f.runner = NewRunner(f.sessions, f.profiles, f.searcher, f.generator, conv, 0)

	session, err := f.sessions.CreateSession(ctx, "v1", searchOn)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Unlock(ctx, session.ID, "12345"))
	f.sessionID = session.ID
	return f
}

func (f *fixture) transcript(t *testing.T) []chat.Turn {
	t.Helper()
	turns, err := f.sessions.Transcript(context.Background(), f.sessionID)
	require.NoError(t, err)
	return turns
}

func TestRunStoresBothTurns(t *testing.T) {
	f := newFixture(t, false, upperConverter{})
	display := &recordingDisplay{}

	result, err := f.runner.Run(context.Background(), f.sessionID, "say hi", display)
	require.NoError(t, err)
	require.NotNil(t, result.Assistant)
	assert.Equal(t, "HELLO WORLD", result.Assistant.Text)

	turns := f.transcript(t)
	require.Len(t, turns, 2)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
	assert.Equal(t, "say hi", turns[0].Text)
	assert.Equal(t, chat.RoleAssistant, turns[1].Role)
	assert.Equal(t, "HELLO WORLD", turns[1].Text)

	assert.Equal(t, []Phase{PhaseGenerating, PhaseDone}, display.phases)
	assert.Empty(t, display.errors)
}

func TestRenderedFramesCarryCursorUntilFinal(t *testing.T) {
	f := newFixture(t, false, nil)
	display := &recordingDisplay{}

	_, err := f.runner.Run(context.Background(), f.sessionID, "q", display)
	require.NoError(t, err)

	require.NotEmpty(t, display.frames)
	last := display.frames[len(display.frames)-1]
	assert.True(t, last.Final)
	assert.Equal(t, "hello world", last.Text)

	for _, frame := range display.frames[:len(display.frames)-1] {
		assert.False(t, frame.Final)
		assert.True(t, strings.HasSuffix(frame.Text, profile.DefaultCursor))
	}

	assert.Equal(t, last.Text, display.deltas())
	assert.Equal(t, strings.TrimSuffix(display.frames[len(display.frames)-2].Text, profile.DefaultCursor), last.Text)
}

func TestSearchOffIssuesNoQueryAndNoContext(t *testing.T) {
	f := newFixture(t, false, nil)

	result, err := f.runner.Run(context.Background(), f.sessionID, "go 1.24", &recordingDisplay{})
	require.NoError(t, err)

	assert.Empty(t, f.searcher.queries)
	assert.False(t, result.Searched)
	assert.NotContains(t, result.Prompt, "即時參考資訊")
	assert.NotContains(t, result.Prompt, "search says hi")
}

func TestSearchOnInjectsContext(t *testing.T) {
	f := newFixture(t, true, nil)
	display := &recordingDisplay{}

	result, err := f.runner.Run(context.Background(), f.sessionID, "go 1.24", display)
	require.NoError(t, err)

	assert.Equal(t, []string{"latest news about go 1.24"}, f.searcher.queries)
	assert.True(t, result.Searched)
	assert.Contains(t, result.Prompt, "【即時參考資訊】：search says hi")
	assert.True(t, strings.HasSuffix(result.Prompt, "User Instruction: go 1.24"))
	assert.Equal(t, []Phase{PhaseSearching, PhaseGenerating, PhaseDone}, display.phases)
	assert.Equal(t, []string{result.Prompt}, f.generator.prompts)
}

func TestSearchFailureSurfacesGenericError(t *testing.T) {
	f := newFixture(t, true, nil)
	f.searcher.err = errors.New("ddg timeout")
	display := &recordingDisplay{}

	_, err := f.runner.Run(context.Background(), f.sessionID, "q", display)
	require.Error(t, err)

	require.Len(t, display.errors, 1)
	assert.True(t, strings.HasPrefix(display.errors[0], profile.DefaultErrorPrefix))
	assert.Empty(t, f.generator.prompts)

	turns := f.transcript(t)
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
}

func TestMidStreamFailureKeepsOnlyUserTurn(t *testing.T) {
	f := newFixture(t, false, nil)
	f.generator.fragments = []string{"partial ", "reply ", "never"}
	f.generator.failAfter = 2
	f.generator.err = errors.New("connection reset by peer")
	display := &recordingDisplay{}

	result, err := f.runner.Run(context.Background(), f.sessionID, "q", display)
	require.Error(t, err)
	assert.Nil(t, result.Assistant)

	turns := f.transcript(t)
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleUser, turns[0].Role)

	require.Len(t, display.errors, 1)
	assert.Contains(t, display.errors[0], "connection reset by peer")
	assert.Equal(t, PhaseError, display.phases[len(display.phases)-1])
	for _, frame := range display.frames {
		assert.False(t, frame.Final)
	}
}

func TestModelUnavailableFailsEveryTurn(t *testing.T) {
	f := newFixture(t, false, nil)
	runner := NewRunner(f.sessions, f.profiles, nil, nil, nil, 0)

	for i := 0; i < 2; i++ {
		display := &recordingDisplay{}
		_, err := runner.Run(context.Background(), f.sessionID, "q", display)
		require.Error(t, err)
		require.Len(t, display.errors, 1)
	}
	assert.Len(t, f.transcript(t), 2)
}

func TestTurnsAppendInSubmissionOrder(t *testing.T) {
	f := newFixture(t, false, nil)
	inputs := []string{"one", "two", "three", "four"}

	for i, input := range inputs {
		if i == 2 {
			f.generator.err = errors.New("boom")
			f.generator.failAfter = 0
		} else {
			f.generator.err = nil
		}
		_, _ = f.runner.Run(context.Background(), f.sessionID, input, &recordingDisplay{})
	}

	turns := f.transcript(t)
	var users []string
	assistants := 0
	for i, turn := range turns {
		if turn.Role == chat.RoleUser {
			users = append(users, turn.Text)
			continue
		}
		assistants++
		require.Positive(t, i)
		assert.Equal(t, chat.RoleUser, turns[i-1].Role, "assistant turn must follow its user turn")
	}
	assert.Equal(t, inputs, users)
	assert.Equal(t, 3, assistants)
}

func TestBeginRejectsEmptyAndLocked(t *testing.T) {
	f := newFixture(t, false, nil)

	_, err := f.runner.Begin(context.Background(), f.sessionID, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	locked, err := f.sessions.CreateSession(context.Background(), "v1", false)
	require.NoError(t, err)
	_, err = f.runner.Begin(context.Background(), locked.ID, "hi")
	assert.ErrorIs(t, err, chatservice.ErrLocked)
}

func TestBeginHoldsSlotUntilCancel(t *testing.T) {
	f := newFixture(t, false, nil)

	pending, err := f.runner.Begin(context.Background(), f.sessionID, "first")
	require.NoError(t, err)
	assert.Equal(t, "v1", pending.Profile().ID)

	_, err = f.runner.Begin(context.Background(), f.sessionID, "second")
	assert.ErrorIs(t, err, chatservice.ErrTurnInProgress)

	pending.Cancel()
	_, err = f.runner.Run(context.Background(), f.sessionID, "third", &recordingDisplay{})
	require.NoError(t, err)
}

type clearingDisplay struct {
	recordingDisplay
	clear func()
}

func (d *clearingDisplay) Phase(p Phase) {
	if p == PhaseGenerating {
		d.clear()
	}
	d.recordingDisplay.Phase(p)
}

func TestClearDuringTurnDropsReply(t *testing.T) {
	f := newFixture(t, false, nil)
	display := &clearingDisplay{clear: func() {
		_ = f.sessions.Clear(context.Background(), f.sessionID)
	}}

	result, err := f.runner.Run(context.Background(), f.sessionID, "q", display)
	require.NoError(t, err)
	assert.Nil(t, result.Assistant)
	assert.Empty(t, f.transcript(t))
}

func TestConversionHappensAtBoundaries(t *testing.T) {
	f := newFixture(t, false, nil)
	f.generator.fragments = []string{"我的软", "件很好。"}
	conv := phraseConverter{}
	runner := NewRunner(f.sessions, f.profiles, nil, f.generator, conv, 0)

	result, err := runner.Run(context.Background(), f.sessionID, "q", &recordingDisplay{})
	require.NoError(t, err)
	require.NotNil(t, result.Assistant)
	assert.Equal(t, "我的軟體很好。", result.Assistant.Text)
}

type phraseConverter struct{}

func (phraseConverter) Convert(text string) (string, error) {
	return strings.NewReplacer("软件", "軟體", "软", "軟").Replace(text), nil
}
