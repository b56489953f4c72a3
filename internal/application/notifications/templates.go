package notifications

import (
	"fmt"
	"html"
	"strings"
	"time"
)

func greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("<p>Hi %s,</p>", html.EscapeString(name))
}

func field(ev Event, key string) string {
	return html.EscapeString(ev.Fields[key])
}

// render returns the subject and inner HTML for ev.
func render(ev Event) (string, string, bool) {
	switch ev.Kind {
	case KindAcquisitionConfirmed:
		return "Your units are confirmed", greeting(ev.Name) + fmt.Sprintf(`
    <p>Your payment was verified and <strong>%s units</strong> of <strong>%s</strong> are now in your portfolio.</p>
    <p>Amount: NGN %s<br>Reference: %s</p>`,
			field(ev, "units"), field(ev, "property"), field(ev, "amount"), field(ev, "reference")), true
	case KindExitRequested:
		return "We received your exit request", greeting(ev.Name) + fmt.Sprintf(`
    <p>Your request to sell back <strong>%s units</strong> is pending review.</p>
    <p>Estimated payout: NGN %s</p>`,
			field(ev, "units"), field(ev, "amount")), true
	case KindExitApproved:
		return "Your exit request was approved", greeting(ev.Name) + fmt.Sprintf(`
    <p>Your exit of <strong>%s units</strong> was approved. A payout of NGN %s is on its way to your bank account.</p>`,
			field(ev, "units"), field(ev, "amount")), true
	case KindExitRejected:
		return "Your exit request was not approved", greeting(ev.Name) + fmt.Sprintf(`
    <p>Your exit of <strong>%s units</strong> was not approved and the units are back in your portfolio.</p>
    <p>Reason: %s</p>`,
			field(ev, "units"), field(ev, "reason")), true
	case KindExitCancelled:
		return "Your exit request was cancelled", greeting(ev.Name) + fmt.Sprintf(`
    <p>You cancelled your exit of <strong>%s units</strong>. They are back in your portfolio.</p>`,
			field(ev, "units")), true
	case KindDistribution:
		return "You received a distribution", greeting(ev.Name) + fmt.Sprintf(`
    <p>NGN %s from <strong>%s</strong> was credited for your %s units.</p>`,
			field(ev, "amount"), field(ev, "property"), field(ev, "units")), true
	}
	return "", "", false
}

// EmailLayout wraps content in the shared notification shell.
func EmailLayout(contentHTML string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="UTF-8">`)
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0"><title>PropShare</title></head>`)
	b.WriteString(`<body style="margin:0;padding:40px 0;background-color:#F3F4F6;font-family:-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;color:#1F2937;">`)
	b.WriteString(`<table role="presentation" width="600" align="center" style="background-color:#FFFFFF;border-radius:8px;">`)
	b.WriteString(`<tr><td style="padding:40px 48px;font-size:16px;line-height:1.6;">`)
	b.WriteString(contentHTML)
	b.WriteString(`<p>The PropShare Team</p></td></tr>`)
	fmt.Fprintf(&b, `<tr><td align="center" style="padding:24px;font-size:13px;color:#6B7280;">&copy; %d PropShare. Questions? <a href="mailto:support@propshare.ng">support@propshare.ng</a></td></tr>`, time.Now().Year())
	b.WriteString(`</table></body></html>`)
	return b.String()
}
