package gate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tablegate/tablegate/internal/dialect"
	"github.com/tablegate/tablegate/internal/table"
)

// DefaultRowCap bounds every executed query that carries no explicit limit.
const DefaultRowCap = 100

const stringLiteral = `'(?:[^']|'')*'`

// qualifierPattern captures optional alias or schema qualifiers in front of
// a column reference (w.city, dbo.w.city) so rewrites can carry them over.
const qualifierPattern = `(?:[a-z_][a-z0-9_]*\.)*`

// Rewriter applies the active dialect's row cap and case-insensitive text
// comparison idioms to a validated query. All rewrites are idempotent and
// never change projected columns or filter logic beyond case folding.
type Rewriter struct {
	profile dialect.Profile
	rowCap  int

	columns []textColumnRules
}

// textColumnRules holds the compiled patterns for one designated text
// column. Each pattern alternates an already-rewritten form (left alone)
// with the bare form (rewritten), which is what makes re-application a
// no-op.
type textColumnRules struct {
	name       string
	equalityRE *regexp.Regexp
	likeRE     *regexp.Regexp
	inRE       *regexp.Regexp
}

var (
	limitClauseRE = regexp.MustCompile(`(?i)\blimit\s+\d+\b`)
	topClauseRE   = regexp.MustCompile(`(?i)^select\s+(?:distinct\s+)?top\s+\d+\b`)
	distinctRE    = regexp.MustCompile(`(?i)^select\s+distinct\s+`)
	selectHeadRE  = regexp.MustCompile(`(?i)^select\s+`)
	literalRE     = regexp.MustCompile(stringLiteral)
)

func NewRewriter(profile dialect.Profile, permitted table.Definition, rowCap int) *Rewriter {
	if rowCap <= 0 {
		rowCap = DefaultRowCap
	}
	r := &Rewriter{profile: profile, rowCap: rowCap}
	for _, column := range permitted.Columns {
		if !permitted.IsTextColumn(column.Name) {
			continue
		}
		name := regexp.QuoteMeta(strings.ToLower(column.Name))
		fold := regexp.QuoteMeta(strings.ToLower(profile.FoldFunc))
		folded := fold + `\s*\(\s*` + qualifierPattern + name + `\s*\)`
		bare := `\b(` + qualifierPattern + `)` + name
		rules := textColumnRules{
			name: column.Name,
			equalityRE: regexp.MustCompile(
				`(?i)` + folded + `\s*=\s*` + fold + `\s*\(\s*` + stringLiteral + `\s*\)` +
					`|` + bare + `\s*=\s*(` + stringLiteral + `)`),
			inRE: regexp.MustCompile(
				`(?i)` + folded + `\s+in\s*\([^)]*\)` +
					`|` + bare + `\s+in\s*\(\s*(` + stringLiteral + `(?:\s*,\s*` + stringLiteral + `)*)\s*\)`),
		}
		if profile.ILIKESupported {
			rules.likeRE = regexp.MustCompile(`(?i)` + bare + `\s+like\s+(` + stringLiteral + `)`)
		} else if !profile.LikeFoldsCase {
			rules.likeRE = regexp.MustCompile(
				`(?i)` + folded + `\s+like\s+` + fold + `\s*\(\s*` + stringLiteral + `\s*\)` +
					`|` + bare + `\s+like\s+(` + stringLiteral + `)`)
		}
		r.columns = append(r.columns, rules)
	}
	return r
}

// Rewrite returns the query with the dialect's row cap and case-insensitive
// comparison idioms applied. Rewrite(Rewrite(q)) == Rewrite(q).
func (r *Rewriter) Rewrite(q ValidatedQuery) ValidatedQuery {
	rewritten := q.sql
	for _, column := range r.columns {
		rewritten = r.foldEquality(column, rewritten)
		rewritten = r.foldMembership(column, rewritten)
		rewritten = r.foldPattern(column, rewritten)
	}
	rewritten = r.applyRowCap(rewritten)
	return ValidatedQuery{sql: rewritten}
}

func (r *Rewriter) foldEquality(rules textColumnRules, sqlText string) string {
	return rules.equalityRE.ReplaceAllStringFunc(sqlText, func(match string) string {
		sub := rules.equalityRE.FindStringSubmatch(match)
		if sub[2] == "" {
			// already in the folded idiom
			return match
		}
		return fmt.Sprintf("%s(%s%s) = %s(%s)", r.profile.FoldFunc, sub[1], rules.name, r.profile.FoldFunc, sub[2])
	})
}

func (r *Rewriter) foldMembership(rules textColumnRules, sqlText string) string {
	return rules.inRE.ReplaceAllStringFunc(sqlText, func(match string) string {
		sub := rules.inRE.FindStringSubmatch(match)
		if sub[2] == "" {
			return match
		}
		literals := splitLiteralList(sub[2])
		for i, literal := range literals {
			literals[i] = fmt.Sprintf("%s(%s)", r.profile.FoldFunc, literal)
		}
		return fmt.Sprintf("%s(%s%s) IN (%s)", r.profile.FoldFunc, sub[1], rules.name, strings.Join(literals, ", "))
	})
}

func (r *Rewriter) foldPattern(rules textColumnRules, sqlText string) string {
	if rules.likeRE == nil {
		return sqlText
	}
	if r.profile.ILIKESupported {
		return rules.likeRE.ReplaceAllStringFunc(sqlText, func(match string) string {
			sub := rules.likeRE.FindStringSubmatch(match)
			return fmt.Sprintf("%s%s ILIKE %s", sub[1], rules.name, sub[2])
		})
	}
	return rules.likeRE.ReplaceAllStringFunc(sqlText, func(match string) string {
		sub := rules.likeRE.FindStringSubmatch(match)
		if sub[2] == "" {
			return match
		}
		return fmt.Sprintf("%s(%s%s) LIKE %s(%s)", r.profile.FoldFunc, sub[1], rules.name, r.profile.FoldFunc, sub[2])
	})
}

func (r *Rewriter) applyRowCap(sqlText string) string {
	switch r.profile.LimitStyle {
	case dialect.TopPrefix:
		if topClauseRE.MatchString(sqlText) {
			return sqlText
		}
		if distinctRE.MatchString(sqlText) {
			return distinctRE.ReplaceAllString(sqlText, fmt.Sprintf("SELECT DISTINCT TOP %d ", r.rowCap))
		}
		return selectHeadRE.ReplaceAllString(sqlText, fmt.Sprintf("SELECT TOP %d ", r.rowCap))
	default:
		// a LIMIT inside a string literal must not suppress the row cap
		if limitClauseRE.MatchString(maskLiterals(sqlText)) {
			return sqlText
		}
		return fmt.Sprintf("%s LIMIT %d", sqlText, r.rowCap)
	}
}

func maskLiterals(sqlText string) string {
	return literalRE.ReplaceAllString(sqlText, "''")
}

func splitLiteralList(list string) []string {
	return literalRE.FindAllString(list, -1)
}
