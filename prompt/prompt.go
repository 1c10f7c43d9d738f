// Package prompt implements the Prompt Assembler (C4): composing the five
// labeled prompt segments (role, chat_history, task, agent_chat_history,
// return_format) plus the return-format-with-plan variant and the Plan
// init/mark/update blocks. Grounded on iagents/agent.py's assemble_prompt
// and assemble_prompt_think, which load prompts/system_prompt.json and
// prompts/tool_prompt.json at construction time and interpolate named
// placeholders — never inline template text in code.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Assembler holds the two on-disk template documents named by spec §4.9's
// template table: system_prompt.json (role/chat_history/task/
// agent_chat_history/return_format/return_format_withinfonav) and
// tool_prompt.json (the remaining named templates used by C1-C3).
type Assembler struct {
	system map[string][]string
	tool   map[string][]string
}

// Load reads system_prompt.json and tool_prompt.json from dir.
func Load(dir string) (*Assembler, error) {
	system, err := loadTemplateFile(filepath.Join(dir, "system_prompt.json"))
	if err != nil {
		return nil, err
	}
	tool, err := loadTemplateFile(filepath.Join(dir, "tool_prompt.json"))
	if err != nil {
		return nil, err
	}
	return &Assembler{system: system, tool: tool}, nil
}

func loadTemplateFile(path string) (map[string][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt template file %s: %w", path, err)
	}
	var templates map[string][]string
	if err := json.Unmarshal(raw, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt template file %s: %w", path, err)
	}
	return templates, nil
}

// interpolate substitutes "{name}" placeholders with vars[name], mirroring
// Python's str.format(**vars) semantics the original templates rely on.
func interpolate(lines []string, vars map[string]string) string {
	text := strings.Join(lines, "\n")
	for k, v := range vars {
		text = strings.ReplaceAll(text, "{"+k+"}", v)
	}
	return text
}

func (a *Assembler) systemSegment(name string, vars map[string]string) string {
	return interpolate(a.system[name], vars)
}

// Render looks up a named tool_prompt template and interpolates vars,
// satisfying jsonfmt.TemplateRenderer and facts' reformatter dependency.
func (a *Assembler) Render(templateName string, vars map[string]string) (string, error) {
	lines, ok := a.tool[templateName]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", templateName)
	}
	return interpolate(lines, vars), nil
}
