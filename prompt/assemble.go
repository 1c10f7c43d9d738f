package prompt

// Params carries the values every segment assembly needs. Not every field
// is used by every method; callers fill only what a given call requires.
type Params struct {
	Master             string
	Contact            string
	Task               string
	CurrentChatHistory string
	OtherChatHistory   string
	AgentChatHistory   []string
	AgentProfilePrompt string // users.system_prompt column, §11 supplemented segment zero
	Plan               string
	KnownFacts         string
	UnknownFacts       string
}

func (a *Assembler) roleSegment(p Params) string {
	return a.systemSegment("role", map[string]string{"master": p.Master, "contact": p.Contact})
}

func (a *Assembler) chatHistorySegment(p Params) string {
	return a.systemSegment("chat_history", map[string]string{
		"master":               p.Master,
		"contact":              p.Contact,
		"current_chat_history": p.CurrentChatHistory,
		"other_chat_history":   p.OtherChatHistory,
	})
}

func (a *Assembler) taskSegment(p Params) string {
	return a.systemSegment("task", map[string]string{"master": p.Master, "contact": p.Contact, "task": p.Task})
}

func (a *Assembler) agentChatHistorySegment(p Params) string {
	return a.systemSegment("agent_chat_history", map[string]string{
		"contact":            p.Contact,
		"master":             p.Master,
		"agent_chat_history": joinLines(p.AgentChatHistory),
	})
}

func (a *Assembler) returnFormatSegment(p Params) string {
	return a.systemSegment("return_format", map[string]string{"contact": p.Contact})
}

func (a *Assembler) returnFormatWithPlanSegment(p Params) string {
	return a.systemSegment("return_format_withinfonav", map[string]string{
		"infonav":       p.Plan,
		"unknown_facts": p.UnknownFacts,
	})
}

func joinLines(lines []string) string {
	text := ""
	for i, l := range lines {
		if i > 0 {
			text += "\n"
		}
		text += l
	}
	return text
}

// joinSegments concatenates segments with newlines, no profile prepend.
func joinSegments(segments ...string) string {
	text := ""
	for i, s := range segments {
		if i > 0 {
			text += "\n"
		}
		text += s
	}
	return text
}

// prependProfile prepends the optional segment-zero agent profile prompt
// (§11 supplemented feature) ahead of every assembled prompt, when set.
func prependProfile(p Params, segments ...string) string {
	all := segments
	if p.AgentProfilePrompt != "" {
		all = append([]string{p.AgentProfilePrompt}, segments...)
	}
	text := ""
	for i, s := range all {
		if i > 0 {
			text += "\n"
		}
		text += s
	}
	return text
}

// Assemble composes the Vanilla/Memory five-segment prompt (spec §4.4):
// role, chat_history, task, agent_chat_history, return_format.
func (a *Assembler) Assemble(p Params) string {
	return prependProfile(p,
		a.roleSegment(p),
		a.chatHistorySegment(p),
		a.taskSegment(p),
		a.agentChatHistorySegment(p),
		a.returnFormatSegment(p),
	)
}

// AssembleWithPlan composes the Think/Memory variant where segment (5) is
// replaced by the return-format-with-plan variant.
func (a *Assembler) AssembleWithPlan(p Params) string {
	return prependProfile(p,
		a.roleSegment(p),
		a.chatHistorySegment(p),
		a.taskSegment(p),
		a.agentChatHistorySegment(p),
		a.returnFormatWithPlanSegment(p),
	)
}

// PlanInit composes the prompt for the INIT Plan template (DRAFT → initial
// plan text), mirroring assemble_prompt_think's infonav_status == 0 branch.
// Unlike Assemble/AssembleWithPlan, the Plan-maintenance templates never
// carry the agent profile segment (assemble_prompt_think never includes
// agent_profile_prompt — only assemble_prompt does, spec SPEC_FULL §11).
func (a *Assembler) PlanInit(p Params) string {
	init := interpolate(a.tool["infonav_init"], map[string]string{"contact": p.Contact})
	return joinSegments(
		a.roleSegment(p),
		a.taskSegment(p),
		init,
	)
}

// PlanMark composes the prompt for the MARK Plan template (DRAFT plan text
// → bracket-annotated plan), mirroring the infonav_status == 1 branch.
func (a *Assembler) PlanMark(p Params) string {
	mark := interpolate(a.tool["infonav_mark"], map[string]string{"task": p.Task, "infonav": p.Plan})
	return joinSegments(
		a.roleSegment(p),
		mark,
	)
}

// PlanUpdate composes the prompt for the UPDATE Plan template (plan, known,
// unknown, dialogue → JSON of newly learned facts), mirroring the
// infonav_status >= 2 branch.
func (a *Assembler) PlanUpdate(p Params) string {
	update := interpolate(a.tool["infonav_update"], map[string]string{
		"infonav":       p.Plan,
		"known_facts":   p.KnownFacts,
		"unknown_facts": p.UnknownFacts,
	})
	return joinSegments(
		a.roleSegment(p),
		a.taskSegment(p),
		a.agentChatHistorySegment(p),
		update,
	)
}
