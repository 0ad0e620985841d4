package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablegate/tablegate/internal/executor"
	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/llm"
	"github.com/tablegate/tablegate/internal/observability"
	"github.com/tablegate/tablegate/internal/planner"
	"github.com/tablegate/tablegate/internal/session"
	"github.com/tablegate/tablegate/internal/storage"
)

type Mode string

const (
	ModeSQLAnalysis      Mode = "sql+analysis"
	ModeFollowUpAnalysis Mode = "followup-analysis"
	ModeDirect           Mode = "direct"
)

// ErrCannotAnswer is returned when the model reports the question cannot be
// answered from the permitted table's columns.
var ErrCannotAnswer = errors.New("the question cannot be answered from the available data")

type Response struct {
	Mode     Mode
	Columns  []string
	Rows     []executor.Row
	Analysis string
	SQL      string
}

// QueryExecutor abstracts the executor for tests; the only implementation
// in production is *executor.Executor over the backend pool.
type QueryExecutor interface {
	Execute(ctx context.Context, q gate.ValidatedQuery) (executor.ResultSet, error)
}

// Summarizer abstracts the analysis composer.
type Summarizer interface {
	Summarize(ctx context.Context, utterance string, rs executor.ResultSet) (string, error)
}

// ResultArchiver is optional; failures are logged, never surfaced.
type ResultArchiver interface {
	Archive(ctx context.Context, sessionID string, q gate.ValidatedQuery, rs executor.ResultSet) (storage.ObjectInfo, error)
}

// Service wires the gate pipeline together: plan, validate, rewrite,
// execute, remember, summarize. Every collaborator is injected; the service
// holds no process-wide state of its own.
type Service struct {
	Logger    *slog.Logger
	Planner   *planner.Planner
	Validator *gate.Validator
	Rewriter  *gate.Rewriter
	Executor  QueryExecutor
	Sessions  *session.Store
	Composer  Summarizer
	Generator llm.Generator
	Archiver  ResultArchiver
}

// Handle processes one utterance for one conversation. The three paths:
// follow-up (session memory, no validation or execution), fresh query
// (full pipeline), and direct chat (no database access at all).
func (s *Service) Handle(ctx context.Context, sessionID, message string) (Response, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Response{}, fmt.Errorf("message is required")
	}

	if session.IsFollowUp(message) {
		if state, ok := s.Sessions.Get(sessionID); ok {
			return s.handleFollowUp(ctx, message, state)
		}
		// no prior result to refer to; treat as a fresh question
	}

	plan, err := s.Planner.Plan(ctx, message)
	observability.ObserveGenerationCall(err != nil)
	if err != nil {
		return Response{}, err
	}

	if plan.Decision == planner.DecisionParsed && !plan.NeedsQuery {
		return s.handleDirect(ctx, message)
	}

	candidate := plan.Candidate
	if plan.Decision == planner.DecisionFallback || strings.TrimSpace(candidate) == "" {
		candidate, err = s.Planner.Fallback(ctx, message)
		observability.ObserveGenerationCall(err != nil)
		if err != nil {
			return Response{}, err
		}
	}
	if planner.IsCannotAnswer(candidate) {
		return Response{}, ErrCannotAnswer
	}

	validated, err := s.Validator.Validate(candidate)
	if err != nil {
		var rejection *gate.RejectionError
		if errors.As(err, &rejection) {
			observability.ObserveGateValidation(string(rejection.Kind))
		}
		return Response{}, err
	}
	observability.ObserveGateValidation("")

	rewritten := s.Rewriter.Rewrite(validated)

	result, err := s.Executor.Execute(ctx, rewritten)
	observability.ObserveQueryExecution(err != nil, result.Duration)
	if err != nil {
		return Response{}, err
	}

	s.Sessions.Put(sessionID, rewritten, result)
	s.archiveResult(ctx, sessionID, rewritten, result)

	analysis, err := s.Composer.Summarize(ctx, message, result)
	observability.ObserveGenerationCall(err != nil)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Mode:     ModeSQLAnalysis,
		Columns:  result.Columns,
		Rows:     result.Rows,
		Analysis: analysis,
		SQL:      rewritten.String(),
	}, nil
}

func (s *Service) handleFollowUp(ctx context.Context, message string, state session.State) (Response, error) {
	observability.IncrementFollowUpHit()
	analysis, err := s.Composer.Summarize(ctx, message, state.Result)
	observability.ObserveGenerationCall(err != nil)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Mode:     ModeFollowUpAnalysis,
		Columns:  state.Result.Columns,
		Rows:     state.Result.Rows,
		Analysis: analysis,
		SQL:      state.Query.String(),
	}, nil
}

func (s *Service) handleDirect(ctx context.Context, message string) (Response, error) {
	answer, err := s.Generator.Generate(ctx, directChatPrompt(message))
	observability.ObserveGenerationCall(err != nil)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Mode:     ModeDirect,
		Columns:  []string{},
		Rows:     []executor.Row{},
		Analysis: answer,
	}, nil
}

func (s *Service) archiveResult(ctx context.Context, sessionID string, q gate.ValidatedQuery, rs executor.ResultSet) {
	if s.Archiver == nil {
		return
	}
	info, err := s.Archiver.Archive(ctx, sessionID, q, rs)
	observability.ObserveArchiveWrite(err != nil)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "result archive failed", slog.Any("error", err))
		}
		return
	}
	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "result archived",
			slog.String("key", info.Key),
			slog.Int64("bytes", info.Size),
		)
	}
}

func directChatPrompt(message string) string {
	return fmt.Sprintf("You are a helpful assistant for a municipal waste analytics service. Answer the user briefly and factually.\n\nUser: %s", message)
}
