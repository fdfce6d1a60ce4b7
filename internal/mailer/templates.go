// AngelaMos | 2026
// templates.go

package mailer

import (
	"fmt"
	"html"
	"net/url"
)

// ConfirmationEmail builds the address-confirmation message. The link
// lands on the public app, which relays the token to the confirm endpoint.
func ConfirmationEmail(to, firstName, publicURL, tok string) Message {
	link := fmt.Sprintf(
		"%s/confirm-email?token=%s",
		publicURL,
		url.QueryEscape(tok),
	)

	body := fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Thanks for signing up for OpsDeck. Please confirm your email address
by clicking the link below. The link is valid for 24 hours.</p>
<p><a href="%s">Confirm your email</a></p>
<p>If you did not sign up, you can ignore this message.</p>
<p>&mdash; The OpsDeck Team</p>
</body></html>`,
		html.EscapeString(firstName),
		link,
	)

	return Message{
		To:      to,
		Subject: "Confirm your OpsDeck email address",
		HTML:    body,
	}
}

// WelcomeEmail builds the post-provisioning welcome message.
func WelcomeEmail(to, name, orgName, planName string) Message {
	body := fmt.Sprintf(`<html><body>
<p>Hi %s,</p>
<p>Your organization <strong>%s</strong> is ready on the
<strong>%s</strong> plan.</p>
<p>Log in to invite your team and start setting up your workspace.</p>
<p>&mdash; The OpsDeck Team</p>
</body></html>`,
		html.EscapeString(name),
		html.EscapeString(orgName),
		html.EscapeString(planName),
	)

	return Message{
		To:      to,
		Subject: "Welcome to OpsDeck",
		HTML:    body,
	}
}
