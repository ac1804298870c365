package render

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runrelay/internal/transport"
	"runrelay/internal/workflow"
)

func sampleEvent() workflow.Event {
	return workflow.Event{
		RunID:         "9876543210",
		Action:        workflow.ActionCompleted,
		Outcome:       workflow.Completed{Conclusion: workflow.ConclusionFailure},
		Status:        workflow.StatusCompleted,
		Conclusion:    workflow.ConclusionFailure,
		Repository:    "octo-org/hello-world",
		RepositoryURL: "https://github.com/octo-org/hello-world",
		Name:          "CI",
		RunNumber:     314,
		RunAttempt:    2,
		Branch:        "main",
		HeadSHA:       "4f9c2d1e8b7a6c5d4e3f2a1b0c9d8e7f6a5b4c3d",
		Trigger:       "push",
		Actor: workflow.Actor{
			Login:     "octocat",
			HTMLURL:   "https://github.com/octocat",
			AvatarURL: "https://avatars.githubusercontent.com/u/583231",
		},
		HTMLURL:   "https://github.com/octo-org/hello-world/actions/runs/9876543210",
		StartedAt: time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 10, 16, 9, 34, 12, 0, time.UTC),
	}
}

func fieldMap(e transport.Embed) map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Name] = f.Value
	}
	return m
}

func TestRenderEmbed(t *testing.T) {
	p := Render(sampleEvent())

	assert.Equal(t, "", p.Content)
	assert.False(t, p.TTS)
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]

	assert.Equal(t, "rich", e.Type)
	assert.Equal(t, "[octo-org/hello-world] Workflow CI triggered by octocat is completed on branch main", e.Title)
	assert.Equal(t, "https://github.com/octo-org/hello-world/actions/runs/9876543210", e.URL)
	assert.Equal(t, ColorFailure, e.Color)
	assert.Equal(t, "2026-10-16T09:34:12Z", e.Timestamp)
	require.NotNil(t, e.Author)
	assert.Equal(t, "octocat", e.Author.Name)
	assert.Equal(t, "https://avatars.githubusercontent.com/u/583231", e.Author.IconURL)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "octo-org/hello-world", e.Footer.Text)

	f := fieldMap(e)
	assert.Equal(t, "Completed (Failure)", f["Status"])
	assert.Equal(t, "[4f9c2d1](https://github.com/octo-org/hello-world/commit/4f9c2d1e8b7a6c5d4e3f2a1b0c9d8e7f6a5b4c3d)", f["Commit"])
	assert.Equal(t, "`push`", f["Trigger"])
	assert.Equal(t, "<t:1792143000:R>", f["Started"])
	assert.Equal(t, "#314 (attempt 2)", f["Run"])
}

func TestRenderIsDeterministic(t *testing.T) {
	ev := sampleEvent()
	a, err := json.Marshal(Render(ev))
	require.NoError(t, err)
	b, err := json.Marshal(Render(ev))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestRenderOmitsEmptyValues(t *testing.T) {
	p := Render(workflow.Event{
		RunID:   "1",
		Action:  workflow.ActionRequested,
		Outcome: workflow.Pending{Status: workflow.StatusQueued},
		Status:  workflow.StatusQueued,
	})
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]

	assert.Equal(t, "[unknown] Workflow unknown triggered by unknown is queued on branch unknown", e.Title)
	assert.Nil(t, e.Author)
	assert.Nil(t, e.Footer)
	assert.Empty(t, e.Timestamp)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "Status", e.Fields[0].Name)
	assert.Equal(t, "Queued", e.Fields[0].Value)
}

func TestRunLabelFirstAttempt(t *testing.T) {
	ev := sampleEvent()
	ev.RunAttempt = 1
	assert.Equal(t, "#314", fieldMap(Render(ev).Embeds[0])["Run"])
}

func TestColor(t *testing.T) {
	tests := []struct {
		name string
		in   workflow.Outcome
		want int
	}{
		{"success", workflow.Completed{Conclusion: workflow.ConclusionSuccess}, ColorSuccess},
		{"failure", workflow.Completed{Conclusion: workflow.ConclusionFailure}, ColorFailure},
		{"timed out", workflow.Completed{Conclusion: workflow.ConclusionTimedOut}, ColorFailure},
		{"startup failure", workflow.Completed{Conclusion: workflow.ConclusionStartupFailure}, ColorFailure},
		{"action required", workflow.Completed{Conclusion: workflow.ConclusionActionRequired}, ColorActionRequired},
		{"cancelled", workflow.Completed{Conclusion: workflow.ConclusionCancelled}, ColorNeutral},
		{"skipped", workflow.Completed{Conclusion: workflow.ConclusionSkipped}, ColorNeutral},
		{"neutral", workflow.Completed{Conclusion: workflow.ConclusionNeutral}, ColorNeutral},
		{"stale", workflow.Completed{Conclusion: workflow.ConclusionStale}, ColorNeutral},
		{"unknown conclusion", workflow.Completed{Conclusion: "exploded"}, ColorDefault},
		{"queued", workflow.Pending{Status: workflow.StatusQueued}, ColorDefault},
		{"in progress", workflow.Pending{Status: workflow.StatusInProgress}, ColorDefault},
		{"nil", nil, ColorDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Color(tt.in))
		})
	}
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "In Progress", StatusText(workflow.Pending{Status: workflow.StatusInProgress}))
	assert.Equal(t, "Completed (Action Required)", StatusText(workflow.Completed{Conclusion: workflow.ConclusionActionRequired}))
	assert.Equal(t, "", StatusText(nil))
}
