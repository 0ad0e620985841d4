package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tablegate/tablegate/internal/executor"
	"github.com/tablegate/tablegate/internal/llm"
)

// Composer turns a bounded result set into a short natural-language
// summary. It never sees unbounded data and cannot trigger further
// queries; the generator receives only the packet built here.
type Composer struct {
	generator llm.Generator
}

func New(generator llm.Generator) *Composer {
	return &Composer{generator: generator}
}

func (c *Composer) Summarize(ctx context.Context, utterance string, rs executor.ResultSet) (string, error) {
	packet, err := buildPacket(rs)
	if err != nil {
		return "", &llm.GenerationError{Err: fmt.Errorf("encode analysis packet: %w", err)}
	}
	return c.generator.Generate(ctx, summaryPrompt(utterance, packet))
}

type dataPacket struct {
	Columns    []string       `json:"columns"`
	Rows       []executor.Row `json:"rows"`
	TotalRows  int            `json:"total_rows"`
	MetricHint string         `json:"metric_hint,omitempty"`
}

func buildPacket(rs executor.ResultSet) (string, error) {
	packet := dataPacket{
		Columns:    rs.Columns,
		Rows:       rs.AnalysisRows(),
		TotalRows:  len(rs.Rows),
		MetricHint: metricHint(rs.Columns),
	}
	encoded, err := json.Marshal(packet)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// metricHint offers one derived metric when the result carries the column
// pair that supports it.
func metricHint(columns []string) string {
	var hasCollected, hasRecycled bool
	for _, column := range columns {
		switch strings.ToLower(column) {
		case "wastecollected":
			hasCollected = true
		case "recycledwaste":
			hasRecycled = true
		}
	}
	if hasCollected && hasRecycled {
		return "recycling rate = recycledwaste / wastecollected"
	}
	return ""
}

func summaryPrompt(utterance, packet string) string {
	return fmt.Sprintf(`You are a data analyst. Summarize the query result below for the user in 2-4 plain sentences. Mention concrete values. Do not invent data that is not in the rows.

User question:
%s

Result (JSON):
%s`, strings.TrimSpace(utterance), packet)
}
