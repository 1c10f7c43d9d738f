package prompt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func loadTestAssembler(t *testing.T) *Assembler {
	t.Helper()
	a, err := Load(filepath.Join("..", "prompts"))
	require.NoError(t, err)
	return a
}

func TestAssemble_InterpolatesAllFiveSegments(t *testing.T) {
	a := loadTestAssembler(t)
	out := a.Assemble(Params{
		Master:             "Alice",
		Contact:            "Bob",
		Task:               "find a restaurant",
		CurrentChatHistory: "from Alice to Bob: hi",
		OtherChatHistory:   "",
		AgentChatHistory:   []string{"from Alice's Agent to Bob's Agent: hello"},
	})
	require.Contains(t, out, "Alice")
	require.Contains(t, out, "Bob")
	require.Contains(t, out, "find a restaurant")
	require.Contains(t, out, "hello")
}

func TestAssembleWithPlan_EmbedsPlanAndUnknownFacts(t *testing.T) {
	a := loadTestAssembler(t)
	out := a.AssembleWithPlan(Params{
		Master:       "Alice",
		Contact:      "Bob",
		Task:         "find a restaurant",
		Plan:         "1. [cuisine] 2. [budget]",
		UnknownFacts: "unknown fact: cuisine\nunknown fact: budget",
	})
	require.Contains(t, out, "[cuisine]")
	require.Contains(t, out, "unknown fact: budget")
}

func TestAgentProfilePrompt_PrependedWhenSet(t *testing.T) {
	a := loadTestAssembler(t)
	out := a.Assemble(Params{Master: "Alice", Contact: "Bob", Task: "t", AgentProfilePrompt: "Alice is a concise assistant."})
	require.True(t, len(out) > 0)
	require.Contains(t, out, "Alice is a concise assistant.")
}

func TestRender_ToolTemplateSubstitutesVars(t *testing.T) {
	a := loadTestAssembler(t)
	out, err := a.Render("json_reformat", map[string]string{"text": "{bad json", "json_format": `{"keyword":"x"}`})
	require.NoError(t, err)
	require.Contains(t, out, "{bad json")
	require.Contains(t, out, `{"keyword":"x"}`)
}

func TestRender_UnknownTemplateErrors(t *testing.T) {
	a := loadTestAssembler(t)
	_, err := a.Render("does_not_exist", nil)
	require.Error(t, err)
}
