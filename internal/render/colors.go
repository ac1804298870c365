package render

import "runrelay/internal/workflow"

// Embed colors.
const (
	ColorSuccess        = 0x23cb1d
	ColorFailure        = 0xe02424
	ColorActionRequired = 0xf28c28
	ColorNeutral        = 0x95a5a6
	ColorDefault        = 0xe1d71a
)

var conclusionColors = map[workflow.Conclusion]int{
	workflow.ConclusionSuccess:        ColorSuccess,
	workflow.ConclusionFailure:        ColorFailure,
	workflow.ConclusionTimedOut:       ColorFailure,
	workflow.ConclusionStartupFailure: ColorFailure,
	workflow.ConclusionActionRequired: ColorActionRequired,
	workflow.ConclusionCancelled:      ColorNeutral,
	workflow.ConclusionSkipped:        ColorNeutral,
	workflow.ConclusionNeutral:        ColorNeutral,
	workflow.ConclusionStale:          ColorNeutral,
}

// Color picks the embed color for an outcome. Pending runs and conclusions
// GitHub may add later get ColorDefault.
func Color(o workflow.Outcome) int {
	switch v := o.(type) {
	case workflow.Completed:
		if c, ok := conclusionColors[v.Conclusion]; ok {
			return c
		}
		return ColorDefault
	case workflow.Pending:
		return ColorDefault
	default:
		return ColorDefault
	}
}
