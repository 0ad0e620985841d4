package gate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tablegate/tablegate/internal/dialect"
	"github.com/tablegate/tablegate/internal/table"
)

// RejectionKind classifies why model output was refused at the gate.
type RejectionKind string

const (
	RejectUnsafeKeyword      RejectionKind = "unsafe_keyword"
	RejectNotASelect         RejectionKind = "not_a_select"
	RejectForbiddenTable     RejectionKind = "forbidden_table"
	RejectWrongTable         RejectionKind = "wrong_table"
	RejectMultipleStatements RejectionKind = "multiple_statements"
)

// RejectionError is surfaced to the caller verbatim and never retried.
type RejectionError struct {
	Kind   RejectionKind
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("query rejected (%s): %s", e.Kind, e.Detail)
}

// ValidatedQuery is a statement that passed the gate. The zero value is not
// valid; instances are constructed only by the Validator and the Rewriter,
// so nothing downstream can execute raw model output by accident.
type ValidatedQuery struct {
	sql string
}

func (q ValidatedQuery) String() string { return q.sql }
func (q ValidatedQuery) IsZero() bool   { return q.sql == "" }

var (
	fenceRE = regexp.MustCompile("(?i)^```(?:sql)?[ \t]*\r?\n?|\r?\n?```$")

	// Data-definition, data-modification and transaction-control keywords,
	// matched as whole words anywhere in the statement.
	unsafeKeywordRE = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|create|merge|exec|grant|revoke|begin|commit|rollback)\b`)

	selectAnchorRE = regexp.MustCompile(`(?i)^select\b`)
	fromClauseRE   = regexp.MustCompile(`(?i)\bfrom\b`)
	identifierRE   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.$]*`)
)

// Validator is the safety gate between raw model output and execution.
type Validator struct {
	profile   dialect.Profile
	permitted table.Definition
}

func NewValidator(profile dialect.Profile, permitted table.Definition) *Validator {
	return &Validator{profile: profile, permitted: permitted}
}

// Validate strips formatting artifacts from raw model output and either
// returns a query that is safe to execute verbatim or a *RejectionError.
// The only repair it ever performs is substituting the canonical
// "SELECT * FROM <table>" when the text names no table and has no FROM
// clause; every other deviation is rejected, not guessed at.
func (v *Validator) Validate(raw string) (ValidatedQuery, error) {
	cleaned := StripArtifacts(raw)
	if cleaned == "" {
		return ValidatedQuery{}, &RejectionError{Kind: RejectNotASelect, Detail: "model returned no SQL"}
	}
	if match := unsafeKeywordRE.FindString(cleaned); match != "" {
		return ValidatedQuery{}, &RejectionError{Kind: RejectUnsafeKeyword, Detail: fmt.Sprintf("forbidden keyword %q", strings.ToUpper(match))}
	}
	if strings.IndexByte(cleaned, ';') >= 0 {
		return ValidatedQuery{}, &RejectionError{Kind: RejectMultipleStatements, Detail: "statement contains an interior semicolon"}
	}
	if !selectAnchorRE.MatchString(cleaned) {
		return ValidatedQuery{}, &RejectionError{Kind: RejectNotASelect, Detail: "statement does not begin with SELECT"}
	}
	for _, ident := range identifierRE.FindAllString(cleaned, -1) {
		if v.profile.ForbidsIdentifier(ident) {
			return ValidatedQuery{}, &RejectionError{Kind: RejectForbiddenTable, Detail: fmt.Sprintf("system catalog reference %q", ident)}
		}
	}
	if !v.mentionsPermittedTable(cleaned) {
		if fromClauseRE.MatchString(cleaned) {
			return ValidatedQuery{}, &RejectionError{Kind: RejectWrongTable, Detail: fmt.Sprintf("query must read from %s", v.permitted.Name)}
		}
		return ValidatedQuery{sql: v.CanonicalQuery()}, nil
	}
	return ValidatedQuery{sql: cleaned}, nil
}

// CanonicalQuery is the single allowed repair target.
func (v *Validator) CanonicalQuery() string {
	return "SELECT * FROM " + v.profile.QualifiedTable(v.permitted.Name)
}

func (v *Validator) mentionsPermittedTable(sqlText string) bool {
	lowered := strings.ToLower(sqlText)
	name := strings.ToLower(v.permitted.Name)
	for _, candidate := range []string{name, strings.ToLower(v.profile.QualifiedTable(name))} {
		if containsWord(lowered, candidate) {
			return true
		}
	}
	return false
}

func containsWord(haystack, word string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isIdentByte(haystack[idx-1])
		afterOK := end == len(haystack) || !isIdentByte(haystack[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// StripArtifacts removes code-fence markup, surrounding whitespace, and
// trailing statement terminators from model output.
func StripArtifacts(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for {
		next := strings.TrimSpace(fenceRE.ReplaceAllString(cleaned, ""))
		if next == cleaned {
			break
		}
		cleaned = next
	}
	return strings.TrimSpace(strings.TrimRight(cleaned, ";\t\n\r "))
}
