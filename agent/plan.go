package agent

import (
	"context"
	"fmt"

	"github.com/iagents/core/prompt"
)

// advancePlan runs the Plan (InfoNav) state machine, mirroring
// assemble_prompt_think's infonav_status progression (spec §4.5 Think steps
// 1-3). On the agent's very first turn (status DRAFT) it runs INIT and MARK
// back-to-back, reaching UPDATING already by turn 2 — iagents/agent.py:303-318
// does both calls on the first turn ("if self.infonav_status < 2: do INIT;
// do MARK; set_unknown_facts") rather than spacing them one per turn, so
// that a two-turn Communication can still reach UPDATE. Every later turn
// runs exactly one step: MARKED -> call MARK again only if INIT hasn't also
// marked yet (never true after the first turn); UPDATING -> call UPDATE,
// merge newly learned facts into Plan via the Fact Registry.
func (a *Agent) advancePlan(ctx context.Context, contact string, dialogue []string) error {
	params := func() prompt.Params {
		return prompt.Params{
			Master:           a.Master,
			Contact:          contact,
			Task:             a.Task,
			AgentChatHistory: dialogue,
			Plan:             a.plan,
			KnownFacts:       a.Facts.RenderKnown(),
			UnknownFacts:     a.Facts.RenderUnknown(),
		}
	}

	if a.planStatus == Draft {
		promptText := a.Assembler.PlanInit(params())
		response, err := a.Backend.Query(ctx, promptText)
		if err != nil {
			return fmt.Errorf("failed to initialize plan: %w", err)
		}
		a.recordEvent(fmt.Sprintf("[InfoNav Init by %s]", a.Master), promptText, response)
		a.plan = response
		a.planStatus = Marked
	}

	switch a.planStatus {
	case Marked:
		promptText := a.Assembler.PlanMark(params())
		response, err := a.Backend.Query(ctx, promptText)
		if err != nil {
			return fmt.Errorf("failed to mark plan: %w", err)
		}
		a.recordEvent(fmt.Sprintf("[InfoNav Mark by %s]", a.Master), promptText, response)
		a.plan = response
		a.Facts.SetUnknownFromPlan(a.plan)
		a.planStatus = Updating

	case Updating:
		promptText := a.Assembler.PlanUpdate(params())
		response, err := a.Backend.Query(ctx, promptText)
		if err != nil {
			return fmt.Errorf("failed to request plan update: %w", err)
		}
		a.recordEvent(fmt.Sprintf("[InfoNav Update by %s]", a.Master), promptText, response)
		a.plan = a.Facts.MergeUpdates(ctx, a.Reformatter, a.plan, response)
	}

	return nil
}
