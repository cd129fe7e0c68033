package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/model/profile"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/convert"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/search"
)

// ErrEmptyMessage rejects blank input before a turn starts.
var ErrEmptyMessage = errors.New("message is required")

// Phase is the per-turn state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSearching  Phase = "searching"
	PhaseGenerating Phase = "generating"
	PhaseDone       Phase = "done"
	PhaseError      Phase = "error"
)

// Frame is one re-render of the assistant reply.
type Frame struct {
	// Delta is the converted text added since the previous frame.
	Delta string
	// Text is the cumulative reply, followed by the cursor glyph unless Final.
	Text  string
	Final bool
}

// Display receives the visible progress of a turn.
type Display interface {
	Phase(phase Phase)
	Render(frame Frame)
	Error(message string)
}

// Generator produces the model's reply to a prompt as a fragment stream.
type Generator interface {
	Stream(ctx context.Context, prompt string) (*schema.StreamReader[*schema.Message], error)
}

// Sessions is the slice of the session store a turn needs.
type Sessions interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
	BeginTurn(ctx context.Context, sessionID string) (uint64, func(), error)
	AppendTurn(ctx context.Context, sessionID string, epoch uint64, turn chat.Turn) error
}

// Result summarises a finished turn.
type Result struct {
	User      chat.Turn
	Assistant *chat.Turn
	Searched  bool
	Prompt    string
}

// Runner drives accept → search? → compose → stream → display → store.
type Runner struct {
	sessions  Sessions
	profiles  profile.Store
	searcher  search.Searcher
	generator Generator
	converter convert.Converter
	holdRunes int
}

// NewRunner wires the turn pipeline. A nil searcher disables search, a nil converter
// leaves text unchanged.
func NewRunner(sessions Sessions, profiles profile.Store, searcher search.Searcher, generator Generator, converter convert.Converter, holdRunes int) *Runner {
	if searcher == nil {
		searcher = search.Disabled{}
	}
	if generator == nil {
		generator = ai.Unavailable{}
	}
	if converter == nil {
		converter = convert.Identity{}
	}
	return &Runner{
		sessions:  sessions,
		profiles:  profiles,
		searcher:  searcher,
		generator: generator,
		converter: converter,
		holdRunes: holdRunes,
	}
}

// SearchAvailable reports whether the deployment can search at all.
func (r *Runner) SearchAvailable() bool {
	return r.searcher.Available()
}

// Pending is a turn whose user entry is stored and whose slot is held.
type Pending struct {
	runner  *Runner
	session chat.Session
	profile profile.Profile
	epoch   uint64
	user    chat.Turn
	release func()
}

// Begin validates the input, claims the session's turn slot and stores the user entry.
// Errors returned here happen before anything is displayed.
func (r *Runner) Begin(ctx context.Context, sessionID, text string) (*Pending, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	epoch, release, err := r.sessions.BeginTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		release()
		return nil, err
	}

	user := chat.Turn{Role: chat.RoleUser, Text: text}
	if err := r.sessions.AppendTurn(ctx, sessionID, epoch, user); err != nil {
		release()
		return nil, err
	}

	return &Pending{
		runner:  r,
		session: session,
		profile: profile.Resolve(r.profiles, session.ProfileID),
		epoch:   epoch,
		user:    user,
		release: release,
	}, nil
}

// Run is Begin followed by Execute.
func (r *Runner) Run(ctx context.Context, sessionID, text string, display Display) (Result, error) {
	pending, err := r.Begin(ctx, sessionID, text)
	if err != nil {
		return Result{}, err
	}
	return pending.Execute(ctx, display)
}

// Profile returns the profile the turn renders with.
func (p *Pending) Profile() profile.Profile {
	return p.profile
}

// Cancel releases the slot without generating a reply.
func (p *Pending) Cancel() {
	p.release()
}

// Execute runs the rest of the turn. Every failure is caught here, shown once through
// display.Error and returned; the transcript then holds the user entry only.
func (p *Pending) Execute(ctx context.Context, display Display) (Result, error) {
	defer p.release()

	result, err := p.execute(ctx, display)
	if err != nil {
		log.Printf("[turn] session=%s failed: %v", p.session.ID, err)
		display.Phase(PhaseError)
		display.Error(p.profile.ErrorPrefix + err.Error())
		return Result{User: p.user, Searched: result.Searched, Prompt: result.Prompt}, err
	}

	display.Phase(PhaseDone)
	return result, nil
}

func (p *Pending) execute(ctx context.Context, display Display) (Result, error) {
	r := p.runner
	result := Result{User: p.user}
	composer := ai.NewComposer(p.profile)

	contextBlock := ""
	if p.session.SearchEnabled && r.searcher.Available() {
		display.Phase(PhaseSearching)
		found, err := r.searcher.Search(ctx, search.Query(p.profile.QueryTemplate, p.user.Text))
		if err != nil {
			return result, err
		}
		result.Searched = true
		contextBlock = composer.ContextBlock(found)
	}

	result.Prompt = composer.Compose(contextBlock, p.user.Text)

	display.Phase(PhaseGenerating)
	reply, err := p.stream(ctx, result.Prompt, display)
	if err != nil {
		return result, err
	}

	assistant := chat.Turn{Role: chat.RoleAssistant, Text: reply}
	if err := r.sessions.AppendTurn(ctx, p.session.ID, p.epoch, assistant); err != nil {
		if errors.Is(err, chatservice.ErrSessionReset) || errors.Is(err, chatservice.ErrSessionNotFound) {
			log.Printf("[turn] session=%s reply not stored: %v", p.session.ID, err)
			return result, nil
		}
		return result, fmt.Errorf("failed to store reply: %w", err)
	}
	result.Assistant = &assistant
	return result, nil
}

func (p *Pending) stream(ctx context.Context, prompt string, display Display) (string, error) {
	r := p.runner
	cursor := p.profile.Cursor

	stream, err := r.generator.Stream(ctx, prompt)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	converter := convert.NewStream(r.converter, r.holdRunes)
	var buffer strings.Builder

	emit := func(piece string) {
		if piece == "" {
			return
		}
		buffer.WriteString(piece)
		display.Render(Frame{Delta: piece, Text: buffer.String() + cursor})
	}

	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		piece, err := converter.Push(chunk.Content)
		if err != nil {
			return "", err
		}
		emit(piece)
	}

	rest, err := converter.Flush()
	if err != nil {
		return "", err
	}
	emit(rest)

	reply := buffer.String()
	display.Render(Frame{Text: reply, Final: true})
	return reply, nil
}
