package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/iagents/core/agent"
)

const noneFriend = "None"

// runEscalationRound lets each side raise one new sub-Communication with a
// friend at round 0, ahead of that round's normal instructor/assistant
// exchange (spec §4.6 "Multi-Party escalation"). Grounded on
// MultiPartyCommunication.communicate()'s round_index == 1 branch.
func (c *Communication) runEscalationRound(ctx context.Context) error {
	if err := c.raiseNewCommunication(ctx, c.instructor, c.assistant); err != nil {
		return err
	}
	return c.raiseNewCommunication(ctx, c.assistant, c.instructor)
}

// raiseNewCommunication has escalator pick a friend (excluding other and
// itself), run one nested plain Communication with that friend, and fold
// the nested conclusion back into the outer Dialogue History as a single
// synthetic utterance. The nested Communication is always non-multi-party:
// this is the "exactly one level of recursion" invariant (spec §4.6).
func (c *Communication) raiseNewCommunication(ctx context.Context, escalator, other *agent.Agent) error {
	friends, err := c.store.FriendsOfMaster(ctx, escalator.Master)
	if err != nil {
		return &Error{Stage: "escalation", Message: fmt.Sprintf("failed to list %s's friends", escalator.Master), Err: err}
	}
	friends = excludeNames(friends, escalator.Master, other.Master)

	chosen, err := escalator.ChooseEscalationTarget(ctx, other.Master, friends)
	if err != nil {
		return &Error{Stage: "escalation", Message: "target selection failed", Err: err}
	}
	if chosen == "" {
		c.history = append(c.history, fmt.Sprintf("Discussion with %s's Agents: %s", noneFriend, noneFriend))
		c.note("Failed to find third-party for %s", escalator.Master)
		return nil
	}

	nestedInstructor := escalator.CloneForMaster(escalator.Master)
	nestedAssistant := escalator.CloneForMaster(chosen)

	nested, err := New(nestedInstructor, nestedAssistant, c.maxRounds, c.store, c.log,
		WithConsensus(true), WithOffline(c.offline))
	if err != nil {
		return &Error{Stage: "escalation", Message: "nested communication init failed", Err: err}
	}

	conclusion, err := nested.Communicate(ctx)
	if err != nil {
		return &Error{Stage: "escalation", Message: fmt.Sprintf("nested communication with %s failed", chosen), Err: err}
	}

	c.history = append(c.history, fmt.Sprintf("Discussion with %s's Agents: %s", chosen, conclusion))
	return nil
}

func excludeNames(names []string, excluded ...string) []string {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[strings.ToLower(e)] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := skip[strings.ToLower(n)]; ok {
			continue
		}
		out = append(out, n)
	}
	return out
}
