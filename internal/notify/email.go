package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// EmailNotifier delivers maintainer alerts over plain SMTP. It exists
// behind the Notifier port so a hosted mail API can replace it without
// touching settlement code.
type EmailNotifier struct {
	smtpAddr string
	from     string
	to       []string
	log      *zap.Logger
}

// NewEmailNotifier returns nil when no SMTP address is configured;
// the dispatcher treats a nil sink as log-only alerting.
func NewEmailNotifier(smtpAddr, from string, to []string, log *zap.Logger) *EmailNotifier {
	if smtpAddr == "" || from == "" || len(to) == 0 {
		return nil
	}
	return &EmailNotifier{smtpAddr: smtpAddr, from: from, to: to, log: log}
}

func (n *EmailNotifier) Notify(_ context.Context, ev Event) error {
	subject, body := renderAlert(ev)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n\r\n", subject)
	msg.WriteString(body)

	return smtp.SendMail(n.smtpAddr, nil, n.from, n.to, []byte(msg.String()))
}

func renderAlert(ev Event) (subject, body string) {
	switch ev.Kind {
	case KindMaintainerDBSync:
		subject = fmt.Sprintf("[gitbounty] URGENT db sync failure, bounty %s", ev.BountyID)
		body = fmt.Sprintf(
			"On-chain action SUCCEEDED but the state write failed.\nFunds have moved; bookkeeping is inconsistent.\n\nBounty: %s\nNetwork: %s\nRecipient: %s\nTx: %s\nError: %s\n",
			ev.BountyID, ev.Network, ev.Recipient, ev.TxHash, ev.Reason,
		)
	case KindStuckClaims:
		subject = "[gitbounty] stuck pending claims"
		body = ev.Reason
	default:
		subject = fmt.Sprintf("[gitbounty] chain interaction failure, bounty %s", ev.BountyID)
		body = fmt.Sprintf(
			"Settlement attempt failed; the bounty remains open and retryable.\n\nBounty: %s\nNetwork: %s\nRecipient: %s\nError: %s\n",
			ev.BountyID, ev.Network, ev.Recipient, ev.Reason,
		)
	}
	return subject, body
}
