package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tablegate/tablegate/internal/dialect"
	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/llm"
	"github.com/tablegate/tablegate/internal/table"
)

// CannotAnswer is the sentinel the model is told to emit when the question
// cannot be answered from the permitted table's columns.
const CannotAnswer = "CANNOT_ANSWER"

// Decision states how the model's structured response was obtained, so
// callers can tell a confident plan from a degraded one.
type Decision int

const (
	// DecisionParsed means the model returned well-formed structure.
	DecisionParsed Decision = iota
	// DecisionFallback means the structure was unparsable and the caller
	// should attempt the direct fallback prompt.
	DecisionFallback
	// DecisionFailed means the model call itself failed; there is no safe
	// fallback.
	DecisionFailed
)

type Plan struct {
	NeedsQuery bool
	Candidate  string
	Rationale  string
	Decision   Decision
}

// Planner asks the model whether database access is needed and, if so, for
// a candidate query. It never executes anything; the candidate is untrusted
// text headed for the gate.
type Planner struct {
	generator llm.Generator
	profile   dialect.Profile
	permitted table.Definition
}

func New(generator llm.Generator, profile dialect.Profile, permitted table.Definition) *Planner {
	return &Planner{generator: generator, profile: profile, permitted: permitted}
}

type structuredDecision struct {
	NeedsQuery bool   `json:"needs_query"`
	SQL        string `json:"sql"`
	Rationale  string `json:"rationale"`
}

func (p *Planner) Plan(ctx context.Context, utterance string) (Plan, error) {
	raw, err := p.generator.Generate(ctx, p.structuredPrompt(utterance))
	if err != nil {
		return Plan{Decision: DecisionFailed}, err
	}

	var decision structuredDecision
	if err := json.Unmarshal([]byte(gate.StripArtifacts(raw)), &decision); err != nil {
		// Conservative default: assume data is needed and let the caller
		// try the direct fallback prompt.
		return Plan{NeedsQuery: true, Decision: DecisionFallback}, nil
	}
	return Plan{
		NeedsQuery: decision.NeedsQuery,
		Candidate:  decision.SQL,
		Rationale:  decision.Rationale,
		Decision:   DecisionParsed,
	}, nil
}

// Fallback issues the direct SQL-only prompt used when the structured
// decision could not be parsed.
func (p *Planner) Fallback(ctx context.Context, utterance string) (string, error) {
	return p.generator.Generate(ctx, p.directPrompt(utterance))
}

// IsCannotAnswer reports whether raw model output carries the sentinel.
func IsCannotAnswer(raw string) bool {
	return strings.Contains(strings.ToUpper(raw), CannotAnswer)
}

func (p *Planner) structuredPrompt(utterance string) string {
	return fmt.Sprintf(`You are a SQL expert. The ONLY queryable table is %s with schema:
%s

%s

Decide whether answering the user requires querying this table.
Respond with ONLY a JSON object, no markdown, of the form:
{"needs_query": true|false, "sql": "<one SELECT statement or empty>", "rationale": "<short reason>"}

Rules:
- At most ONE SELECT statement, only against %s.
- Never write DDL, DML, or transaction control.
- If no data is needed, set needs_query to false and leave sql empty.

User: %s`,
		p.qualifiedTable(),
		p.permitted.SchemaPrompt(),
		p.profile.SyntaxHint,
		p.qualifiedTable(),
		strings.TrimSpace(utterance))
}

func (p *Planner) directPrompt(utterance string) string {
	return fmt.Sprintf(`You are a SQL expert. The ONLY table is %s with columns:
%s

Rules:
- Write ONE valid SELECT statement ONLY against %s.
- %s
- Do not add explanations, comments, or code fences.
- Never write DDL or DML.
- If the request cannot be answered from these columns, return exactly:
SELECT '%s' AS msg
User: %s`,
		p.qualifiedTable(),
		p.permitted.SchemaPrompt(),
		p.qualifiedTable(),
		p.profile.SyntaxHint,
		CannotAnswer,
		strings.TrimSpace(utterance))
}

func (p *Planner) qualifiedTable() string {
	return p.profile.QualifiedTable(p.permitted.Name)
}
