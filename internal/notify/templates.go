package notify

import "fmt"

func renderComment(ev Event) string {
	switch ev.Kind {
	case KindFundingCTA:
		return fmt.Sprintf(
			"💰 This issue can carry a bounty. Sponsor it and the fix gets paid out automatically when a closing PR merges.\n\n[Fund this issue](%s)",
			ev.FundURL,
		)

	case KindBountyAnnounced:
		return fmt.Sprintf(
			"💰 A bounty of %s %s on %s is now live on this issue. Merge a PR that closes it and the payout happens automatically.\n\nFunding transaction: %s/tx/%s",
			ev.Amount, ev.TokenSymbol, ev.Network, ev.ExplorerURL, ev.TxHash,
		)

	case KindWalletRequired:
		return fmt.Sprintf(
			"@%s your PR references a bounty-backed issue (%s %s on %s). Link a payout wallet to receive it automatically when this PR merges: the bounty stays reserved for you meanwhile.",
			ev.AuthorLogin, ev.Amount, ev.TokenSymbol, ev.Network,
		)

	case KindClaimRegistered:
		return fmt.Sprintf(
			"✅ @%s this PR is registered against a %s %s bounty on %s. If it merges, the payout lands in your linked wallet automatically.",
			ev.AuthorLogin, ev.Amount, ev.TokenSymbol, ev.Network,
		)

	case KindBountyPaid:
		return fmt.Sprintf(
			"🎉 Bounty paid: %s %s sent to `%s` on %s.\n\nTransaction: %s/tx/%s",
			ev.Amount, ev.TokenSymbol, ev.Recipient, ev.Network, ev.ExplorerURL, ev.TxHash,
		)

	case KindSettlementFailed:
		return fmt.Sprintf(
			"⚠️ The bounty payout could not be completed (%s). The bounty remains open and the payout will be retried; no action needed from you.",
			ev.Reason,
		)

	case KindAllowlistRejected:
		return fmt.Sprintf(
			"⚠️ @%s your linked wallet `%s` is not on the allowlist configured for this bounty. The bounty remains open; contact the sponsor to be added.",
			ev.AuthorLogin, ev.Recipient,
		)

	case KindBountyRefunded:
		return fmt.Sprintf(
			"↩️ This bounty expired without a merged fix and %s %s was refunded to the sponsor `%s`.\n\nTransaction: %s/tx/%s",
			ev.Amount, ev.TokenSymbol, ev.Sponsor, ev.ExplorerURL, ev.TxHash,
		)
	}

	return ""
}
