package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/report-qa/cli/internal/domain"
	"github.com/report-qa/cli/internal/llm"
	"github.com/report-qa/cli/internal/log"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 10

// Stage names a step of answering a question.
type Stage string

const (
	StageExtractScope      Stage = "extract_scope"
	StageRetrieve          Stage = "retrieve"
	StageBuildPrompt       Stage = "build_prompt"
	StageInvoke            Stage = "invoke"
	StageParse             Stage = "parse"
	StageValidateCitations Stage = "validate_citations"
	StageDone              Stage = "done"
)

// Failure records the stage at which answering stopped.
type Failure struct {
	Stage Stage
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Result is the outcome of Process. Answer is always usable; on failure it
// is the degraded N/A answer describing Failure.
type Result struct {
	Answer  domain.Answer
	Failure *Failure
}

// OK reports whether the question was answered without failure.
func (r Result) OK() bool { return r.Failure == nil }

// ContextRetriever fetches passages for a scoped query.
type ContextRetriever interface {
	RetrieveByScope(ctx context.Context, scope, query string, topN int) ([]domain.RetrievalResult, error)
}

// SessionStore is the part of session memory the processor writes to.
type SessionStore interface {
	AppendTurn(id, systemPrompt, userPrompt string) []domain.Message
	AddAIMessage(id, text string)
}

var (
	doubleQuoted = regexp.MustCompile(`["“]([^"“”]+)["”]`)
	singleQuoted = regexp.MustCompile(`['‘]([^'‘’]+)['’]`)
)

// ExtractScope returns the first double-quoted span of question, falling back
// to the first single-quoted span.
func ExtractScope(question string) (string, error) {
	for _, re := range []*regexp.Regexp{doubleQuoted, singleQuoted} {
		if m := re.FindStringSubmatch(question); m != nil {
			if scope := strings.TrimSpace(m[1]); scope != "" {
				return scope, nil
			}
		}
	}
	return "", domain.ErrScopeNotFound
}

// Processor answers questions: scope extraction, retrieval, prompting, model
// call, parsing and citation validation.
type Processor struct {
	retriever ContextRetriever
	chat      llm.ChatModel
	sessions  SessionStore
	topK      int
	logger    *slog.Logger
}

// NewProcessor creates a processor. sessions may be nil, in which case every
// question is answered statelessly.
func NewProcessor(retriever ContextRetriever, chat llm.ChatModel, sessions SessionStore, topK int) *Processor {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Processor{
		retriever: retriever,
		chat:      chat,
		sessions:  sessions,
		topK:      topK,
		logger:    log.NewModuleLogger("rag", "processor"),
	}
}

// Process answers q. A non-empty sessionID makes the exchange part of that
// session's history. Process never returns an error; failures are reported
// in the Result.
func (p *Processor) Process(ctx context.Context, q domain.Question, sessionID string) Result {
	logger := p.logger.With("session_id", sessionID, "kind", q.Kind)
	logger.Info("processing question", "question", q.Text)

	answer, stage, err := p.answer(ctx, &q, sessionID, logger)
	if err != nil {
		logger.Error("question failed", "stage", stage, "error", err)
		return Result{
			Answer:  domain.Unavailable(err.Error(), "processing failed"),
			Failure: &Failure{Stage: stage, Err: err},
		}
	}

	logger.Info("question answered", "company", q.CompanyName, "final_answer", answer.FinalAnswer)
	return Result{Answer: answer}
}

// ProcessBatch answers questions one after another without sessions.
func (p *Processor) ProcessBatch(ctx context.Context, questions []domain.Question) []Result {
	results := make([]Result, 0, len(questions))
	for _, q := range questions {
		results = append(results, p.Process(ctx, q, ""))
	}
	return results
}

func (p *Processor) answer(ctx context.Context, q *domain.Question, sessionID string, logger *slog.Logger) (domain.Answer, Stage, error) {
	scope, err := ExtractScope(q.Text)
	if err != nil {
		return domain.Answer{}, StageExtractScope, err
	}
	q.CompanyName = scope

	results, err := p.retriever.RetrieveByScope(ctx, scope, q.Text, p.topK)
	if err != nil {
		return domain.Answer{}, StageRetrieve, err
	}
	if len(results) == 0 {
		return domain.Answer{}, StageRetrieve, domain.ErrNoContext
	}

	systemPrompt := BuildSystemPrompt(q.Kind)
	userPrompt := BuildUserPrompt(FormatRetrievalContext(results), q.Text)

	var response string
	if sessionID != "" && p.sessions != nil {
		messages := p.sessions.AppendTurn(sessionID, systemPrompt, userPrompt)
		logger.Debug("invoking model with history", "messages", len(messages))
		response, err = p.chat.ChatWithHistory(ctx, messages)
	} else {
		response, err = p.chat.Chat(ctx, systemPrompt+"\n\n"+userPrompt)
	}
	if err != nil {
		return domain.Answer{}, StageInvoke, fmt.Errorf("%w: %w", domain.ErrModelInvocation, err)
	}
	logger.Debug("model responded", "response", response)

	answer, err := ParseAnswer(response, q.Kind)
	if err != nil {
		logger.Warn("model response not parseable", "error", err)
		answer = parseFailedAnswer(err)
	}

	answer.RelevantPages = ValidateCitations(answer.RelevantPages, results)
	answer.References = buildReferences(answer.RelevantPages, results)

	if sessionID != "" && p.sessions != nil {
		p.sessions.AddAIMessage(sessionID, response)
	}
	return answer, StageDone, nil
}

func parseFailedAnswer(err error) domain.Answer {
	msg := err.Error()
	if errors.Is(err, domain.ErrParse) {
		msg = strings.TrimPrefix(msg, domain.ErrParse.Error()+": ")
	}
	return domain.Unavailable("parse failed: "+msg, "JSON parse error")
}
