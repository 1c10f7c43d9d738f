// Package jsonfmt implements the JSON Reformatter (C1): coercing free-form
// model output to a required schema via a bounded retry loop. Grounded on
// iagents/tool.py's JsonFormatTool (json_check/json_reformat/
// json_reformat_woreference), enriched with a json-repair first pass the
// original tool did not have.
package jsonfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// Querier is the minimal capability jsonfmt needs from an LLM backend: a
// single prompt/response round trip. Satisfied by llms.Backend.Query.
type Querier func(ctx context.Context, prompt string) (string, error)

// TemplateRenderer renders a named, externally-loaded template with
// substitution variables. Templates are data, never inlined (spec §4.4/§9
// design note); jsonfmt depends only on this narrow interface so it never
// needs to import the prompt package's concrete template store.
type TemplateRenderer func(templateName string, vars map[string]string) (string, error)

// EventRecorder is the minimal logging capability jsonfmt needs; satisfied
// by *eventlog.Log.
type EventRecorder func(instruction, query, response string)

// Reformatter runs the bounded reformat retry loop.
type Reformatter struct {
	Query        Querier
	Render       TemplateRenderer
	Log          EventRecorder
	MaxRetries   int // spec §4.1 default 5 (max_tool_retry_times)
}

func New(query Querier, render TemplateRenderer, log EventRecorder, maxRetries int) *Reformatter {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Reformatter{Query: query, Render: render, Log: log, MaxRetries: maxRetries}
}

// clean strips code fences and null/None tokens, mirroring json_reformat's
// per-iteration cleanup before the json_check gate.
func clean(text string) string {
	text = strings.ReplaceAll(text, "null", `"Error"`)
	text = strings.ReplaceAll(text, "None", `"Error"`)
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return text
}

// check verifies text parses as a JSON object whose keys are exactly the
// schema keys and whose values share the schema's runtime types — spec
// invariant #5 ("mapping whose keys are exactly the schema keys").
func check(text string, schema map[string]interface{}) bool {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return false
	}
	if len(schema) == 0 {
		return true
	}
	if len(parsed) != len(schema) {
		return false
	}
	for key, example := range schema {
		val, ok := parsed[key]
		if !ok {
			return false
		}
		if reflect.TypeOf(val) != reflect.TypeOf(example) {
			return false
		}
	}
	return true
}

// Reform coerces text to match schema, retrying up to MaxRetries times via
// the "json_reformat" template. It never returns an error: on exhaustion it
// degrades to schema rendered as text (spec §4.1 "Never raises").
func (r *Reformatter) Reform(ctx context.Context, text string, schema map[string]interface{}) string {
	if text == "" {
		return renderSchema(schema)
	}

	schemaStr := renderSchema(schema)

	if repaired, err := jsonrepair.RepairJSON(text); err == nil {
		text = repaired
	}

	for attempt := 1; attempt <= r.MaxRetries; attempt++ {
		text = clean(text)
		if check(text, schema) {
			return text
		}

		prompt, err := r.Render("json_reformat", map[string]string{
			"text":        text,
			"json_format": schemaStr,
		})
		if err != nil {
			break
		}

		response, err := r.Query(ctx, prompt)
		if r.Log != nil {
			r.Log(fmt.Sprintf("Trial %d. on reformatting json text", attempt), prompt, response)
		}
		if err != nil {
			break
		}
		text = response
	}

	text = clean(text)
	if check(text, schema) {
		return text
	}
	return schemaStr
}

// ReformFree is the reference-free variant: any JSON object is accepted,
// using the "json_reformat_woreference" template. Used by MindFillTool's
// fill_mind to parse the free-form {key: value} update map.
func (r *Reformatter) ReformFree(ctx context.Context, text string) string {
	if text == "" {
		return "{}"
	}

	if repaired, err := jsonrepair.RepairJSON(text); err == nil {
		text = repaired
	}

	for attempt := 1; attempt <= r.MaxRetries; attempt++ {
		text = clean(text)
		if check(text, nil) {
			return text
		}

		prompt, err := r.Render("json_reformat_woreference", map[string]string{"text": text})
		if err != nil {
			break
		}

		response, err := r.Query(ctx, prompt)
		if r.Log != nil {
			r.Log(fmt.Sprintf("Trial %d on reformatting json text", attempt), prompt, response)
		}
		if err != nil {
			break
		}
		text = response
	}

	text = clean(text)
	if check(text, nil) {
		return text
	}
	return "{}"
}

func renderSchema(schema map[string]interface{}) string {
	raw, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
