package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/iagents/core/store"
)

const defaultHistoryLimit = 10

// retrieveContext builds the current-pair and cross-contact chat-history
// sections for the next prompt. Vanilla/Think use direct SQL (families 1 &
// 2); Memory overrides both channels with LLM-parameterized keyword-
// windowed retrieval (families 3 & 4), optionally augmented with the
// vector memory and the document index (spec §4.5).
func (a *Agent) retrieveContext(ctx context.Context, contact string, dialogue []string) (current, cross string, err error) {
	if a.Variant < Memory {
		rows, err := a.Store.CurrentPairHistory(ctx, a.Master, contact, defaultHistoryLimit)
		if err != nil {
			return "", "", &Error{Operation: "retrieve_current_pair", Message: "current-pair history query failed", Err: err}
		}
		current = store.Render(rows)

		crossRows, err := a.Store.CrossContactHistory(ctx, a.Master, contact, defaultHistoryLimit)
		if err != nil {
			return "", "", &Error{Operation: "retrieve_cross_contact", Message: "cross-contact history query failed", Err: err}
		}
		cross = store.Render(crossRows)
		return current, cross, nil
	}

	current, err = a.memoryCurrentPairContext(ctx, contact, dialogue)
	if err != nil {
		return "", "", err
	}
	cross, err = a.memoryCrossContactContext(ctx, contact, dialogue)
	if err != nil {
		return "", "", err
	}
	return current, cross, nil
}

type sqlReactParams struct {
	Keyword string `json:"keyword"`
	Window  int    `json:"window"`
	Limit   int    `json:"limit"`
}

var sqlReactSchema = map[string]interface{}{"keyword": "ring/alice/steal", "window": float64(3), "limit": float64(10)}

var keywordSplit = regexp.MustCompile(`[/\s'"]+`)

// keywordSet splits raw on "/ \s ' \"", lower-cases, and subtracts
// stopwords (spec §4.3 Design rule).
func (a *Agent) keywordSet(raw string) []string {
	parts := keywordSplit.Split(strings.ToLower(raw), -1)
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, stop := a.Stopwords[p]; stop {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// askSQLParams runs the reactive sql_react query and reforms it to
// {keyword, window, limit}.
func (a *Agent) askSQLParams(ctx context.Context, contact, condition string, m memo, dialogue []string) (sqlReactParams, error) {
	text, err := a.Assembler.Render("sql_react", map[string]string{
		"condition":            condition,
		"example_json":         fmt.Sprintf(`{"keyword": "ring/alice/steal", "window": 3, "limit": 10}`),
		"previous_params":      m.params,
		"previous_sql_result":  m.result,
		"agent_communication":  strings.Join(dialogue, "\n"),
		"task":                 a.Task,
	})
	if err != nil {
		return sqlReactParams{}, err
	}
	response, err := a.Backend.Query(ctx, text)
	if err != nil {
		return sqlReactParams{}, &Error{Operation: "sql_react", Message: "failed to generate sql retrieval parameters", Err: err}
	}
	a.recordEvent(fmt.Sprintf("[generate sql query by %s]", a.Master), text, response)

	reformed := a.Reformatter.Reform(ctx, response, sqlReactSchema)
	var params sqlReactParams
	if err := json.Unmarshal([]byte(reformed), &params); err != nil {
		return sqlReactParams{}, nil //nolint:nilerr // malformed params legally yield an empty retrieval, spec §4.3 "Failure"
	}
	if params.Window <= 0 {
		params.Window = 1
	}
	if params.Limit <= 0 {
		params.Limit = defaultHistoryLimit
	}
	return params, nil
}

func (a *Agent) memoryCurrentPairContext(ctx context.Context, contact string, dialogue []string) (string, error) {
	params, err := a.askSQLParams(ctx, contact,
		fmt.Sprintf("current session (between %s and %s)", a.Master, contact),
		a.currentMemo, dialogue)
	if err != nil {
		return "", err
	}

	var rendered string
	if params.Keyword != "" {
		var rows []store.ChatRow
		for _, kw := range a.keywordSet(params.Keyword) {
			r, err := a.Store.KeywordContextCurrentPair(ctx, a.Master, contact, kw, params.Window, params.Limit)
			if err != nil {
				return "", &Error{Operation: "keyword_current_pair", Message: "keyword-context current-pair retrieval failed", Err: err}
			}
			rows = append(rows, r...)
		}
		if len(rows) > 30 {
			rows = rows[:30]
		}
		rendered = store.Render(rows)
	}

	a.currentMemo = memo{params: fmt.Sprintf("%+v", params), result: rendered}
	a.recordEvent(fmt.Sprintf("[Distinct Memory (with current contact) Retrieved results of %s]", a.Master), "", rendered)
	return rendered, nil
}

func (a *Agent) memoryCrossContactContext(ctx context.Context, contact string, dialogue []string) (string, error) {
	var b strings.Builder
	b.WriteString("<context messages related to task starts>\n")

	params, err := a.askSQLParams(ctx, contact,
		fmt.Sprintf("sessions among %s and %s's other friends (except %s)", a.Master, a.Master, contact),
		a.crossMemo, dialogue)
	if err != nil {
		return "", err
	}

	var rendered string
	if params.Keyword != "" {
		var rows []store.ChatRow
		for _, kw := range a.keywordSet(params.Keyword) {
			r, err := a.Store.KeywordContextCrossContact(ctx, a.Master, contact, kw, params.Window, params.Limit)
			if err != nil {
				return "", &Error{Operation: "keyword_cross_contact", Message: "keyword-context cross-contact retrieval failed", Err: err}
			}
			rows = append(rows, r...)
		}
		if len(rows) > 30 {
			rows = rows[:30]
		}
		rendered = store.Render(rows)
	}
	b.WriteString(rendered)
	b.WriteString("\n<context messages related to task ends>\n")
	a.crossMemo = memo{params: fmt.Sprintf("%+v", params), result: rendered}
	a.recordEvent(fmt.Sprintf("[Distinct Memory Retrieved results of %s]", a.Master), "", rendered)

	if a.VecMemory != nil {
		fuzzy, err := a.memoryFuzzyContext(ctx, contact, dialogue)
		if err != nil {
			return "", err
		}
		b.WriteString(fuzzy)
	}

	if a.DocIndex != nil {
		doc, err := a.DocIndex.Query(ctx, a.Task, 3)
		if err != nil {
			return "", &Error{Operation: "doc_index_query", Message: "document index retrieval failed", Err: err}
		}
		b.WriteString("<file information related to task starts>\n")
		b.WriteString(doc)
		b.WriteString("\n<file information related to task ends>\n")
		a.recordEvent(fmt.Sprintf("[Llama Index Memory Retrieved results of %s]", a.Master), a.Task, doc)
	}

	return b.String(), nil
}

type faissReactParams struct {
	Query string `json:"query"`
	TopK  int    `json:"topk"`
}

var faissReactSchema = map[string]interface{}{"query": "task summary", "topk": float64(3)}

func (a *Agent) memoryFuzzyContext(ctx context.Context, contact string, dialogue []string) (string, error) {
	text, err := a.Assembler.Render("faiss_react", map[string]string{
		"example_json":          fmt.Sprintf(`{"query": "%s", "topk": 3}`, a.Task),
		"task":                  a.Task,
		"previous_params":       a.faissMemo.params,
		"previous_faiss_result": a.faissMemo.result,
		"agent_communication":   strings.Join(dialogue, "\n"),
	})
	if err != nil {
		return "", err
	}
	response, err := a.Backend.Query(ctx, text)
	if err != nil {
		return "", &Error{Operation: "faiss_react", Message: "failed to generate fuzzy memory parameters", Err: err}
	}
	a.recordEvent(fmt.Sprintf("[faiss query prompt to %s]", a.Master), text, response)

	reformed := a.Reformatter.Reform(ctx, response, faissReactSchema)
	var params faissReactParams
	result := "<context summary related to task starts>\n"
	if err := json.Unmarshal([]byte(reformed), &params); err == nil {
		if params.TopK < 1 {
			params.TopK = 3
		}
		_, texts, err := a.VecMemory.Query(ctx, params.Query, params.TopK)
		if err != nil {
			return "", &Error{Operation: "fuzzy_memory_query", Message: "fuzzy memory query failed", Err: err}
		}
		joined := strings.Join(texts, "\n")
		result += "\n" + joined
		a.faissMemo = memo{params: fmt.Sprintf("%+v", params), result: joined}
		a.recordEvent(fmt.Sprintf("[Fuzzy Memory Retrieved results of %s]", a.Master), "", joined)
	}
	result += "\n<context summary related to task ends>\n"
	return result, nil
}
