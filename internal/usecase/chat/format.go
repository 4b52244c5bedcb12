package chat

import "strings"

var controlTokens = strings.NewReplacer(
	"<|start_header_id|>", "",
	"<|end_header_id|>", "",
)

// CleanReply strips chat-template header tokens some models leak into replies.
func CleanReply(reply string) string {
	return strings.TrimSpace(controlTokens.Replace(reply))
}

// FormatTurn renders one exchange as appended to the transcript.
func FormatTurn(assistant, question, answer string) string {
	return "\nUser: " + question + "\n" + assistant + ": " + answer
}
