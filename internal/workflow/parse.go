package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed         = errors.New("malformed or missing JSON")
	ErrUnsupportedAction = errors.New("unsupported workflow_run action")
)

// wire types mirror the subset of GitHub's workflow_run payload we display.
type wirePayload struct {
	Action      string          `json:"action"`
	WorkflowRun *wireRun        `json:"workflow_run"`
	Repository  *wireRepository `json:"repository"`
}

type wireRun struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	DisplayTitle string      `json:"display_title"`
	RunNumber    int64       `json:"run_number"`
	RunAttempt   int64       `json:"run_attempt"`
	Event        string      `json:"event"`
	Status       string      `json:"status"`
	Conclusion   *string     `json:"conclusion"`
	HeadBranch   string      `json:"head_branch"`
	HeadSHA      string      `json:"head_sha"`
	HTMLURL      string      `json:"html_url"`
	Actor        *wireUser   `json:"actor"`
	RunStartedAt *time.Time  `json:"run_started_at"`
	CreatedAt    *time.Time  `json:"created_at"`
	UpdatedAt    *time.Time  `json:"updated_at"`
}

type wireRepository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

type wireUser struct {
	Login     string `json:"login"`
	HTMLURL   string `json:"html_url"`
	AvatarURL string `json:"avatar_url"`
}

// Parse decodes a workflow_run webhook body and validates its shape.
//
// Errors wrap ErrMalformed (not JSON, missing workflow_run or its id) or
// ErrUnsupportedAction (action outside requested/in_progress/completed).
func Parse(body []byte) (Event, error) {
	var p wirePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.WorkflowRun == nil {
		return Event{}, fmt.Errorf("%w: workflow_run missing", ErrMalformed)
	}
	id := strings.TrimSpace(p.WorkflowRun.ID.String())
	if id == "" {
		return Event{}, fmt.Errorf("%w: workflow_run.id missing", ErrMalformed)
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return Event{}, fmt.Errorf("%w: workflow_run.id %q is not an integer", ErrMalformed, id)
	}
	if strings.TrimSpace(p.Action) == "" {
		return Event{}, fmt.Errorf("%w: action missing", ErrMalformed)
	}
	action := Action(p.Action)
	if !action.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, p.Action)
	}

	run := p.WorkflowRun
	ev := Event{
		RunID:      id,
		Action:     action,
		Status:     Status(run.Status),
		Name:       run.Name,
		RunNumber:  run.RunNumber,
		RunAttempt: run.RunAttempt,
		Branch:     run.HeadBranch,
		HeadSHA:    run.HeadSHA,
		Trigger:    run.Event,
		HTMLURL:    run.HTMLURL,
		StartedAt:  deref(run.RunStartedAt),
		CreatedAt:  deref(run.CreatedAt),
		UpdatedAt:  deref(run.UpdatedAt),
	}
	if ev.Name == "" {
		ev.Name = run.DisplayTitle
	}
	if run.Conclusion != nil {
		ev.Conclusion = Conclusion(*run.Conclusion)
	}
	if run.Actor != nil {
		ev.Actor = Actor{Login: run.Actor.Login, HTMLURL: run.Actor.HTMLURL, AvatarURL: run.Actor.AvatarURL}
	}
	if p.Repository != nil {
		ev.Repository = p.Repository.FullName
		ev.RepositoryURL = p.Repository.HTMLURL
	}
	ev.Outcome = outcomeOf(ev.Status, run.Conclusion)
	return ev, nil
}

func outcomeOf(status Status, conclusion *string) Outcome {
	if status == StatusCompleted && conclusion != nil {
		return Completed{Conclusion: Conclusion(*conclusion)}
	}
	return Pending{Status: status}
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
