// Package headless runs one prompt against a reply source without a UI.
package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/logger"
	"github.com/BryanTheLai/stackrag/pkg/render"
	"github.com/BryanTheLai/stackrag/pkg/session"
	"github.com/BryanTheLai/stackrag/pkg/stream"
	"github.com/BryanTheLai/stackrag/pkg/tags"
	"github.com/BryanTheLai/stackrag/pkg/vectorstore"
)

// Options configures a single run. Source, Registry and Renderer are required.
type Options struct {
	Source   stream.Source
	Registry *tags.Registry
	Renderer *render.Renderer
	Store    session.Store
	Index    *vectorstore.Index

	Prompt    string
	SessionID string // empty starts a new session
	UserID    string
	Model     string

	// Live redraws the reply as it streams instead of once at the end.
	Live bool
	// Columns is the terminal width used to track wrapped rows during a
	// live redraw. Zero assumes no wrapping.
	Columns int
	Out     io.Writer
	// Record, when set, receives every raw fragment for later replay.
	Record io.Writer
}

// Result describes a finished run.
type Result struct {
	SessionID string
	Title     string
	View      chat.TurnView
}

// Run appends the prompt to the session, streams the reply and persists it.
// The turn's error, if any, is returned after the reply was saved.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Prompt == "" {
		return nil, errors.New("prompt cannot be empty in headless mode")
	}
	if opts.Source == nil || opts.Registry == nil || opts.Renderer == nil {
		return nil, errors.New("headless: source, registry and renderer are required")
	}
	if opts.Store == nil {
		opts.Store = &session.NoopStore{}
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	r := &runner{opts: opts, log: logger.WithComponent("headless")}
	return r.run(ctx)
}

type runner struct {
	opts Options
	log  *logger.ComponentLogger
	conv chat.Conversation
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	if err := r.loadConversation(ctx); err != nil {
		return nil, err
	}

	r.conv = chat.AddMessage(r.conv, chat.NewUserMessage(r.opts.Prompt))
	if chat.NeedsTitle(r.conv) {
		r.conv.Title = chat.DeriveTitle(r.conv)
		if err := r.opts.Store.UpdateTitle(ctx, r.conv.ID, r.conv.Title); err != nil {
			r.log.Warn("Failed to set session title", "session_id", r.conv.ID, "error", err)
		}
	}
	r.log.Debug("Prompt accepted", "session_id", r.conv.ID, "history", len(r.conv.History))

	out := NewOutput(r.opts.Out, r.opts.Renderer, r.opts.Live)
	out.SetColumns(r.opts.Columns)
	turn := chat.NewTurn(r.opts.Registry,
		chat.WithModel(r.opts.Model),
		chat.WithRefresh(out.Refresh),
		chat.WithFinalize(r.finalize),
	)

	var handler stream.Handler = turn
	if r.opts.Record != nil {
		handler = stream.NewMultiHandler(turn, stream.NewRecorder(r.opts.Record))
	}

	streamErr := r.opts.Source.Stream(ctx, chat.ToStreamMessages(r.conv.History), handler)

	// A source that returned early without a terminal callback still ends the turn.
	if view := turn.View(); view.Status == chat.StatusStreaming {
		if streamErr == nil {
			streamErr = errors.New("source returned without ending the reply")
		}
		turn.OnError(streamErr)
	}

	view := turn.View()
	out.Final(view)

	result := &Result{SessionID: r.conv.ID, Title: r.conv.Title, View: view}
	if streamErr != nil {
		return result, streamErr
	}
	return result, view.Err
}

func (r *runner) loadConversation(ctx context.Context) error {
	if r.opts.SessionID == "" {
		id, err := r.opts.Store.Create(ctx, r.opts.UserID, "")
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		r.conv = chat.NewConversation(id)
		return nil
	}

	sess, err := r.opts.Store.Get(ctx, r.opts.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("session %s not found", r.opts.SessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	r.conv = sess.Conversation()
	return nil
}

// finalize persists the reply and indexes it. It runs once, after the turn's
// final refresh.
func (r *runner) finalize(view chat.TurnView) error {
	// The run's context may already be cancelled; the reply is saved anyway.
	ctx := context.Background()

	r.conv = chat.AddMessage(r.conv, chat.ResponseFromView(view))
	if err := r.opts.Store.UpdateHistory(ctx, r.conv.ID, r.conv.History); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if r.opts.Index != nil {
		if err := r.opts.Index.IndexTurn(ctx, r.conv.ID, view); err != nil {
			r.log.Warn("Failed to index reply", "turn_id", view.ID, "error", err)
		}
	}

	r.log.Debug("Reply saved", "session_id", r.conv.ID, "status", view.Status, "length", view.Stats.ContentLength)
	return nil
}
