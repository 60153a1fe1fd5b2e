package dto

type WithdrawFeesRequest struct {
	Network string `json:"network"`
	To      string `json:"to"`
}

type SetFeeBpsRequest struct {
	Network string `json:"network"`
	FeeBps  int    `json:"fee_bps"`
}

type DeclareIntentRequest struct {
	RepoFullName     string `json:"repo_full_name"`
	RepoID           int64  `json:"repo_id"`
	IssueNumber      int    `json:"issue_number"`
	SponsorAddress   string `json:"sponsor_address"`
	SponsorAccountID int64  `json:"sponsor_account_id"`
	Network          string `json:"network"`
}

type RetryClaimRequest struct {
	ClaimID string `json:"claim_id"`
}
