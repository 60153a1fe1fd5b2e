package github

// Subset of the webhook payload the orchestrator consumes.

type Repository struct {
	FullName string `json:"full_name"`
	ID       int64  `json:"id"`
}

type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type Issue struct {
	Number int  `json:"number"`
	User   User `json:"user"`
}

type PullRequest struct {
	Number int    `json:"number"`
	Body   string `json:"body"`
	Merged bool   `json:"merged"`
	User   User   `json:"user"`
}

type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User User   `json:"user"`
}

type Installation struct {
	ID int64 `json:"id"`
}

type webhookPayload struct {
	Action       string       `json:"action"`
	Repository   Repository   `json:"repository"`
	Issue        *Issue       `json:"issue,omitempty"`
	PullRequest  *PullRequest `json:"pull_request,omitempty"`
	Comment      *Comment     `json:"comment,omitempty"`
	Installation Installation `json:"installation"`
}
