package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brijeshdobariya07/insightOS/internal/copilot"
	"github.com/brijeshdobariya07/insightOS/internal/llm"
	"github.com/brijeshdobariya07/insightOS/internal/model"
	natsclient "github.com/brijeshdobariya07/insightOS/internal/nats"
	"github.com/brijeshdobariya07/insightOS/pkg/logger"
	"github.com/brijeshdobariya07/insightOS/pkg/metrics"
)

// EventSink receives stream events in order. Returning an error stops the
// turn (the caller disconnected); conversation state is still finalized.
type EventSink func(event model.StreamEvent) error

// CopilotService orchestrates one copilot turn: sanitize, assemble the
// request, stream the model call, validate with the bounded repair pass,
// degrade to the safe fallback, and update conversation state. The caller
// always receives a terminal done event once streaming has begun.
type CopilotService struct {
	model     string
	maxTokens int
	llmClient llm.Client
	sessions  *SessionService
	controls  copilot.HostControls
	audit     *natsclient.AuditPublisher
	logger    *logger.Logger
}

// NewCopilotService creates a new copilot service. llmClient may be nil when
// the provider is not configured; every turn then degrades to the safe
// fallback without a network call. audit may be nil when NATS is not
// configured.
func NewCopilotService(
	modelID string,
	maxTokens int,
	llmClient llm.Client,
	sessions *SessionService,
	controls copilot.HostControls,
	audit *natsclient.AuditPublisher,
	log *logger.Logger,
) *CopilotService {
	return &CopilotService{
		model:     modelID,
		maxTokens: maxTokens,
		llmClient: llmClient,
		sessions:  sessions,
		controls:  controls,
		audit:     audit,
		logger:    log,
	}
}

// Ready reports whether a model identifier and provider client are present.
func (s *CopilotService) Ready() bool {
	return s.model != "" && s.llmClient != nil
}

// Session returns the subject's conversation session.
func (s *CopilotService) Session(subject string) *copilot.Session {
	return s.sessions.Get(subject)
}

// StreamQuery runs one turn for the subject. Token events are emitted in
// provider order, followed by exactly one done event carrying the validated
// response or the safe fallback. Returns copilot.ErrBusy without emitting
// anything when a submission is already in flight. Failures that occur
// before any event has been emitted are returned to the caller (classified:
// llm.ErrRateLimited, copilot.ErrNotConfigured, generic upstream) with
// nothing written to the sink; once streaming has begun, failures degrade to
// the fallback done event instead.
func (s *CopilotService) StreamQuery(ctx context.Context, subject string, req *model.QueryRequest, emit EventSink) error {
	session := s.sessions.Get(subject)

	if _, err := session.Begin(req.Query); err != nil {
		return err
	}

	start := time.Now()

	if !s.Ready() {
		s.finishTurn(ctx, subject, session, copilot.FallbackResponse(), nil, copilot.ErrNotConfigured, start, nil)
		return copilot.ErrNotConfigured
	}

	sanitized := copilot.SanitizeRaw(req.Context)
	if sanitized.TableSnapshotTruncated {
		metrics.ContextRowsTruncatedTotal.Inc()
	}

	emitted := false
	send := func(event model.StreamEvent) error {
		emitted = true
		return emit(event)
	}

	completion, err := s.llmClient.CompleteStream(ctx, &llm.CompletionRequest{
		Model:     s.model,
		System:    copilot.SystemPrompt,
		Messages:  s.chatHistory(session, sanitized, req.Query),
		MaxTokens: s.maxTokens,
		Stream:    true,
	}, func(token string, index int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		session.AppendToken(token)
		return send(model.TokenEvent(token))
	})
	if err != nil {
		s.logger.Warn("model stream failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
		if !emitted {
			// Nothing on the wire yet: the caller still gets a real status
			// code, most importantly the rate-limit backoff signal.
			s.finishTurn(ctx, subject, session, copilot.FallbackResponse(), nil, err, start, nil)
			return err
		}
		s.finishTurn(ctx, subject, session, copilot.FallbackResponse(), nil, err, start, send)
		return nil
	}

	resp, repaired, vErr := copilot.ParseAndValidate(completion.Content)
	switch {
	case vErr != nil:
		metrics.RecordValidation("failed")
		resp = copilot.FallbackResponse()
	case repaired:
		metrics.RecordValidation("repaired")
	default:
		metrics.RecordValidation("direct")
	}

	meta := &model.Message{
		Model:     &completion.Model,
		TokensIn:  &completion.TokensIn,
		TokensOut: &completion.TokensOut,
		LatencyMs: &completion.LatencyMs,
	}

	s.logger.Info("model turn completed",
		zap.String("subject", subject),
		zap.String("model", completion.Model),
		zap.Int("tokens_in", completion.TokensIn),
		zap.Int("tokens_out", completion.TokensOut),
		zap.Int64("latency_ms", completion.LatencyMs),
		zap.Bool("repaired", repaired),
		zap.Bool("fallback", vErr != nil),
	)

	s.finishTurn(ctx, subject, session, resp, meta, vErr, start, send)
	return nil
}

// Query runs one non-streaming turn for the subject: same pipeline as
// StreamQuery, but the provider is called without token delivery and the
// validated (or fallback) response is returned whole. Provider failures are
// returned classified so the caller can map them to a status.
func (s *CopilotService) Query(ctx context.Context, subject string, req *model.QueryRequest) (model.StructuredResponse, error) {
	session := s.sessions.Get(subject)

	if _, err := session.Begin(req.Query); err != nil {
		return model.StructuredResponse{}, err
	}

	start := time.Now()

	if !s.Ready() {
		s.finishTurn(ctx, subject, session, copilot.FallbackResponse(), nil, copilot.ErrNotConfigured, start, nil)
		return model.StructuredResponse{}, copilot.ErrNotConfigured
	}

	sanitized := copilot.SanitizeRaw(req.Context)
	if sanitized.TableSnapshotTruncated {
		metrics.ContextRowsTruncatedTotal.Inc()
	}

	completion, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{
		Model:     s.model,
		System:    copilot.SystemPrompt,
		Messages:  s.chatHistory(session, sanitized, req.Query),
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		s.logger.Warn("model call failed",
			zap.String("subject", subject),
			zap.Error(err),
		)
		s.finishTurn(ctx, subject, session, copilot.FallbackResponse(), nil, err, start, nil)
		return model.StructuredResponse{}, err
	}

	resp, repaired, vErr := copilot.ParseAndValidate(completion.Content)
	switch {
	case vErr != nil:
		metrics.RecordValidation("failed")
		resp = copilot.FallbackResponse()
	case repaired:
		metrics.RecordValidation("repaired")
	default:
		metrics.RecordValidation("direct")
	}

	meta := &model.Message{
		Model:     &completion.Model,
		TokensIn:  &completion.TokensIn,
		TokensOut: &completion.TokensOut,
		LatencyMs: &completion.LatencyMs,
	}

	s.finishTurn(ctx, subject, session, resp, meta, vErr, start, nil)
	return resp, nil
}

// Provider describes the configured model provider and its known models.
func (s *CopilotService) Provider() model.ProviderResponse {
	info := model.ProviderResponse{
		Model:      s.model,
		Models:     []string{},
		Configured: s.Ready(),
	}
	if s.llmClient != nil {
		info.Provider = s.llmClient.Name()
		info.Models = s.llmClient.Models()
	}
	return info
}

// Dispatch validates and executes one suggested action against the host
// controls. Always returns a result record; dispatch failure is an outcome,
// not an error.
func (s *CopilotService) Dispatch(ctx context.Context, subject string, action model.SuggestedAction) model.ActionResult {
	result := copilot.Dispatch(copilot.DispatchContext{
		Action:   action,
		Controls: s.controls,
	})

	metrics.RecordDispatch(string(action.ActionType), result.Success)

	if !result.Success {
		s.logger.Warn("action dispatch failed",
			zap.String("subject", subject),
			zap.String("action_type", string(action.ActionType)),
			zap.String("error", result.Error),
		)
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	s.publishAudit(ctx, &model.AuditEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Subject:   subject,
		Type:      model.AuditActionDispatched,
		Outcome:   outcome,
		CreatedAt: time.Now(),
	})

	return result
}

// finishTurn applies the terminal payload to conversation state, emits the
// done event when a sink is supplied, and records telemetry. turnErr is nil
// on a clean validated turn. A nil emit means the stream never opened and
// the caller is reporting the failure out of band.
func (s *CopilotService) finishTurn(
	ctx context.Context,
	subject string,
	session *copilot.Session,
	resp model.StructuredResponse,
	meta *model.Message,
	turnErr error,
	start time.Time,
	emit EventSink,
) {
	session.Complete(resp, meta)

	if emit != nil {
		if err := emit(model.DoneEvent(resp)); err != nil {
			s.logger.Debug("client went away before terminal event", zap.Error(err))
		}
	}

	outcome := "success"
	if turnErr != nil {
		outcome = copilot.FailureReason(turnErr)
		metrics.RecordFallback(outcome)
	}

	modelName := s.model
	tokensIn, tokensOut := 0, 0
	var latency int64
	if meta != nil {
		if meta.Model != nil {
			modelName = *meta.Model
		}
		if meta.TokensIn != nil {
			tokensIn = *meta.TokensIn
		}
		if meta.TokensOut != nil {
			tokensOut = *meta.TokensOut
		}
		if meta.LatencyMs != nil {
			latency = *meta.LatencyMs
		}
	}
	metrics.RecordTurn(modelName, outcome, time.Since(start).Seconds(), tokensIn, tokensOut)

	s.publishAudit(ctx, &model.AuditEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Subject:   subject,
		Type:      model.AuditTurnCompleted,
		Model:     modelName,
		Outcome:   outcome,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		LatencyMs: latency,
		CreatedAt: time.Now(),
	})
}

// chatHistory converts prior conversation messages plus the new labeled
// context+query block into provider chat messages. The two messages
// appended by Begin for the current turn are replaced by the labeled block.
func (s *CopilotService) chatHistory(session *copilot.Session, sanitized model.CopilotContext, query string) []llm.ChatMessage {
	history := session.Messages()
	if len(history) >= 2 {
		history = history[:len(history)-2]
	}

	chat := make([]llm.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		chat = append(chat, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	chat = append(chat, llm.ChatMessage{
		Role:    string(model.RoleUser),
		Content: copilot.BuildUserMessage(sanitized, query),
	})

	return chat
}

// publishAudit best-effort publishes to the audit stream when NATS is
// configured.
func (s *CopilotService) publishAudit(ctx context.Context, event *model.AuditEvent) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish audit event", zap.Error(err))
	}
}
