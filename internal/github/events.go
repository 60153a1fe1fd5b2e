package github

import (
	"encoding/json"
	"fmt"
)

// Inbound deliveries are decoded once at the boundary into a tagged
// variant per (event, action) pair, so downstream handlers receive
// exhaustively-typed events instead of probing optional fields.

type Event interface {
	isEvent()
}

// IssueOpened triggers a funding call-to-action comment. No state
// mutation.
type IssueOpened struct {
	Repo           Repository
	IssueNumber    int
	Author         User
	InstallationID int64
}

// PullRequestChanged covers opened and edited PRs: the body is
// re-parsed for issue-closing references.
type PullRequestChanged struct {
	Repo           Repository
	PR             PullRequest
	Edited         bool
	InstallationID int64
}

// PullRequestMerged is the only event that triggers payout.
type PullRequestMerged struct {
	Repo           Repository
	PR             PullRequest
	InstallationID int64
}

// IssueCommentCreated may carry an administrative command.
type IssueCommentCreated struct {
	Repo           Repository
	IssueNumber    int
	Comment        Comment
	InstallationID int64
}

// Ignored marks a recognized delivery that requires no action (for
// example an unmerged PR close). Distinct from ErrUnhandled so the
// router can log it at debug level.
type Ignored struct {
	Event  string
	Action string
}

func (IssueOpened) isEvent()         {}
func (PullRequestChanged) isEvent()  {}
func (PullRequestMerged) isEvent()   {}
func (IssueCommentCreated) isEvent() {}
func (Ignored) isEvent()             {}

// ErrUnhandled reports an event/action pair outside the state machine.
// Deliveries carrying it are logged and acknowledged, never failed.
type ErrUnhandled struct {
	Event  string
	Action string
}

func (e *ErrUnhandled) Error() string {
	return fmt.Sprintf("unhandled webhook %s:%s", e.Event, e.Action)
}

// DecodeEvent parses a raw delivery into its typed variant. eventName
// comes from the X-GitHub-Event header.
func DecodeEvent(eventName string, body []byte) (Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", eventName, err)
	}

	switch eventName {
	case "issues":
		if p.Action == "opened" && p.Issue != nil {
			return IssueOpened{
				Repo:           p.Repository,
				IssueNumber:    p.Issue.Number,
				Author:         p.Issue.User,
				InstallationID: p.Installation.ID,
			}, nil
		}

	case "pull_request":
		if p.PullRequest == nil {
			break
		}
		switch p.Action {
		case "opened", "edited":
			return PullRequestChanged{
				Repo:           p.Repository,
				PR:             *p.PullRequest,
				Edited:         p.Action == "edited",
				InstallationID: p.Installation.ID,
			}, nil
		case "closed":
			if p.PullRequest.Merged {
				return PullRequestMerged{
					Repo:           p.Repository,
					PR:             *p.PullRequest,
					InstallationID: p.Installation.ID,
				}, nil
			}
			// Closed without merge: recognized, nothing to do.
			return Ignored{Event: eventName, Action: "closed_unmerged"}, nil
		}

	case "issue_comment":
		if p.Action == "created" && p.Issue != nil && p.Comment != nil {
			return IssueCommentCreated{
				Repo:           p.Repository,
				IssueNumber:    p.Issue.Number,
				Comment:        *p.Comment,
				InstallationID: p.Installation.ID,
			}, nil
		}
	}

	return nil, &ErrUnhandled{Event: eventName, Action: p.Action}
}
