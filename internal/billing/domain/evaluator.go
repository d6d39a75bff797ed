package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServiceSummary is the evaluated view of one service.
type ServiceSummary struct {
	Service    ServiceRecord
	Template   TemplateKey
	Narrative  string
	Actionable bool
	// Selection is the 1-based index among actionable services, 0 otherwise.
	Selection  int
	DueDate    *time.Time
	CutoffDate *time.Time
}

// EvaluationResult is the tagged outcome of an evaluation. Service is set for
// ResultSingle; Count and Summaries for ResultMultiple.
type EvaluationResult struct {
	Kind           ResultKind
	Service        *ServiceSummary
	Count          int
	Summaries      []ServiceSummary
	Narrative      string
	Recommendation Recommendation
}

// DueDateLookup returns the resolved due date for a service. The service
// layer resolves dates ahead of evaluation so that Evaluate stays pure.
type DueDateLookup func(record ServiceRecord) DueDateResolution

// Evaluator turns a subscriber's records into an EvaluationResult.
type Evaluator struct {
	Renderer Renderer
}

// NewEvaluator returns an evaluator using the default Spanish wording.
func NewEvaluator() Evaluator {
	return Evaluator{Renderer: SpanishRenderer{}}
}

// Evaluate is NewEvaluator().Evaluate.
func Evaluate(records []ServiceRecord, dueDates DueDateLookup) EvaluationResult {
	return NewEvaluator().Evaluate(records, dueDates)
}

// Evaluate classifies records and builds the single, multiple or not-found
// result. dueDates is consulted only for actionable services; nil falls back
// to RecordDueDate.
func (e Evaluator) Evaluate(records []ServiceRecord, dueDates DueDateLookup) EvaluationResult {
	classification := Classify(records)
	if classification.NotFound() {
		return EvaluationResult{Kind: ResultNotFound}
	}

	if len(classification.ActiveOrSuspended) == 1 {
		summary := e.summarize(classification.ActiveOrSuspended[0], dueDates)
		if summary.Actionable {
			summary.Selection = 1
		}
		recommendation := RecommendClose
		if summary.Actionable {
			recommendation = RecommendRequestProofOfPayment
		}
		return EvaluationResult{
			Kind:           ResultSingle,
			Service:        &summary,
			Narrative:      joinSentences(summary.Narrative, e.Renderer.Closing(recommendation)),
			Recommendation: recommendation,
		}
	}

	summaries := make([]ServiceSummary, 0, len(classification.ActiveOrSuspended))
	selection := 0
	for _, record := range classification.ActiveOrSuspended {
		summary := e.summarize(record, dueDates)
		if summary.Actionable {
			selection++
			summary.Selection = selection
		}
		summaries = append(summaries, summary)
	}

	recommendation := RecommendClose
	if len(classification.Actionable) > 0 {
		recommendation = RecommendRequestProofOfPayment
	}

	lines := make([]string, 0, len(summaries)+2)
	lines = append(lines, e.Renderer.Render(TemplateMultipleHeader, TemplateVars{Count: len(summaries)}))
	for _, summary := range summaries {
		bullet := "-"
		if summary.Selection > 0 {
			bullet = fmt.Sprintf("%d.", summary.Selection)
		}
		lines = append(lines, bullet+" "+summary.Narrative)
	}
	if closing := e.Renderer.Closing(recommendation); closing != "" {
		lines = append(lines, closing)
	}

	return EvaluationResult{
		Kind:           ResultMultiple,
		Count:          len(summaries),
		Summaries:      summaries,
		Narrative:      strings.Join(lines, "\n"),
		Recommendation: recommendation,
	}
}

func (e Evaluator) summarize(record ServiceRecord, dueDates DueDateLookup) ServiceSummary {
	summary := ServiceSummary{
		Service:    record,
		Actionable: record.IsActionable(),
	}

	switch {
	case record.Status == StatusSuspended:
		summary.Template = TemplateSuspended
	case record.HasDebt():
		summary.Template = TemplateActiveDebt
	default:
		summary.Template = TemplateActiveNoDebt
	}

	if summary.Actionable {
		if dueDates == nil {
			dueDates = RecordDueDate
		}
		resolution := dueDates(record)
		if resolution.Known() {
			due := resolution.Date
			cutoff := CutoffFor(due)
			summary.DueDate = &due
			summary.CutoffDate = &cutoff
		}
	}

	summary.Narrative = e.Renderer.Render(summary.Template, TemplateVars{
		Name:               record.DisplayName(),
		TotalDue:           record.Billing.TotalDue,
		UnpaidInvoiceCount: record.Billing.UnpaidInvoiceCount,
		DueDate:            summary.DueDate,
		CutoffDate:         summary.CutoffDate,
	})
	return summary
}

func joinSentences(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}
