package dispatch

import "github.com/ncklrs/agentstream/stream"

// sessionCost extracts the spend a result event reports for its turn.
// Claude result records carry total_cost_usd; Codex streams report token
// usage but no dollar figure, so they contribute nothing here.
func sessionCost(ev *stream.Event) float64 {
	if ev.Source != stream.SourceClaude || ev.Type != "result" {
		return 0
	}
	return ev.Payload.Float("total_cost_usd")
}
