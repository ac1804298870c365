// Package render turns a workflow event into the Discord message body.
//
// Render is pure: the same event always yields the same payload.
package render

import (
	"fmt"
	"strings"
	"time"

	"runrelay/internal/transport"
	"runrelay/internal/workflow"
)

const embedType = "rich"

// Render builds the single-embed payload for ev.
func Render(ev workflow.Event) transport.Payload {
	e := transport.Embed{
		Type:  embedType,
		Title: title(ev),
		URL:   ev.HTMLURL,
		Color: Color(ev.Outcome),
	}
	if ev.Actor.Login != "" {
		e.Author = &transport.EmbedAuthor{
			Name:    ev.Actor.Login,
			URL:     ev.Actor.HTMLURL,
			IconURL: ev.Actor.AvatarURL,
		}
	}
	if ev.Repository != "" {
		e.Footer = &transport.EmbedFooter{Text: ev.Repository}
	}
	if !ev.UpdatedAt.IsZero() {
		e.Timestamp = ev.UpdatedAt.UTC().Format(time.RFC3339)
	}
	e.Fields = fields(ev)

	return transport.Payload{
		Content: "",
		TTS:     false,
		Embeds:  []transport.Embed{e},
	}
}

func title(ev workflow.Event) string {
	return fmt.Sprintf("[%s] Workflow %s triggered by %s is %s on branch %s",
		orUnknown(ev.Repository),
		orUnknown(ev.Name),
		orUnknown(ev.Actor.Login),
		orUnknown(string(ev.Status)),
		orUnknown(ev.Branch),
	)
}

// StatusText is the human form of the outcome, e.g. "In Progress" or
// "Completed (Failure)".
func StatusText(o workflow.Outcome) string {
	switch v := o.(type) {
	case workflow.Completed:
		return fmt.Sprintf("%s (%s)", humanize(string(workflow.StatusCompleted)), humanize(string(v.Conclusion)))
	case workflow.Pending:
		return humanize(string(v.Status))
	default:
		return ""
	}
}

func fields(ev workflow.Event) []transport.EmbedField {
	var out []transport.EmbedField
	add := func(name, value string, inline bool) {
		if strings.TrimSpace(value) == "" {
			return
		}
		out = append(out, transport.EmbedField{Name: name, Value: value, Inline: inline})
	}

	add("Status", StatusText(ev.Outcome), true)
	add("Commit", commitLink(ev), true)
	if ev.Trigger != "" {
		add("Trigger", "`"+ev.Trigger+"`", true)
	}
	add("Started", relativeTime(ev.StartedAt), true)
	add("Updated", relativeTime(ev.UpdatedAt), true)
	add("Run", runLabel(ev), true)
	return out
}

func commitLink(ev workflow.Event) string {
	if ev.HeadSHA == "" {
		return ""
	}
	short := shortSHA(ev.HeadSHA)
	if ev.RepositoryURL == "" {
		return "`" + short + "`"
	}
	return fmt.Sprintf("[%s](%s/commit/%s)", short, strings.TrimSuffix(ev.RepositoryURL, "/"), ev.HeadSHA)
}

func runLabel(ev workflow.Event) string {
	if ev.RunNumber <= 0 {
		return ""
	}
	if ev.RunAttempt > 1 {
		return fmt.Sprintf("#%d (attempt %d)", ev.RunNumber, ev.RunAttempt)
	}
	return fmt.Sprintf("#%d", ev.RunNumber)
}
