package turn

import (
	"fmt"
	"strings"

	"github.com/JithuMon10/TITAN-Forge-IDE/internal/contextbundle"
	"github.com/JithuMon10/TITAN-Forge-IDE/internal/session"
)

const systemInstructions = `You are a coding assistant embedded in an editor.
Answer using the workspace files provided below. Be direct and concrete.
When asked what a program prints, give the literal output.
When asked to change code, show the changed code.`

// historyWindow bounds how many recent messages ride along in the prompt.
const historyWindow = 12

// composePrompt builds the full prompt: system instructions, the context
// bundle wrapped in instruction markers, trimmed history, then the new
// user message.
func composePrompt(bundle *contextbundle.Bundle, history []session.Message, userText string) string {
	var sb strings.Builder

	sb.WriteString("[SYSTEM]\n")
	sb.WriteString(systemInstructions)
	sb.WriteString("\n")

	if len(bundle.Files) > 0 {
		sb.WriteString("\nWorkspace files:\n")
		for _, f := range bundle.Files {
			fmt.Fprintf(&sb, "\n--- %s", f.Path)
			if f.Truncated {
				sb.WriteString(" (truncated)")
			}
			sb.WriteString(" ---\n")
			sb.WriteString(f.Text)
			if !strings.HasSuffix(f.Text, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	sb.WriteString("[/SYSTEM]\n")

	msgs := history
	if len(msgs) > historyWindow {
		msgs = msgs[len(msgs)-historyWindow:]
	}
	for _, m := range msgs {
		fmt.Fprintf(&sb, "\n%s: %s\n", m.Role, m.Content)
	}

	fmt.Fprintf(&sb, "\nuser: %s\nassistant: ", userText)
	return sb.String()
}

var literalOutputCues = []string{
	"exact output", "literal output", "what does it print",
	"what will it print", "what is printed", "output of the program",
	"what does this print", "program output",
}

// validateReply checks the answer against what the user literally asked
// for. It returns a corrective directive when a re-prompt is warranted,
// empty when the reply passes.
func validateReply(userText, reply string) string {
	lower := strings.ToLower(userText)
	wantsLiteral := false
	for _, cue := range literalOutputCues {
		if strings.Contains(lower, cue) {
			wantsLiteral = true
			break
		}
	}
	if !wantsLiteral {
		return ""
	}

	// A literal-output answer carries a code fence; prose without one is
	// an explanation.
	if strings.Contains(reply, "```") {
		return ""
	}
	return "Respond with the literal program output only, inside a fenced code block, with no explanation."
}
