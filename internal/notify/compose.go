package notify

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Shivanand-hulikatti/sled-race-registration/internal/model"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/registration"
	"github.com/Shivanand-hulikatti/sled-race-registration/internal/selection"
)

const timestampLayout = "January 2, 2006 at 3:04:05 PM"

// Raw HTML in the markdown source is escaped, so user-entered names cannot
// inject markup into the email.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Table),
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Composer renders the email contract for registrations and contact messages.
type Composer struct {
	From        string
	ContactFrom string
	AdminTo     string
	ContactTo   string
	SiteURL     string
	Location    *time.Location
}

// FormatMoney renders minor units as dollars: "$50", or "$50.00" with
// decimals. Fractional amounts always show cents.
func FormatMoney(cents int64, withDecimals bool) string {
	neg := ""
	if cents < 0 {
		neg = "-"
		cents = -cents
	}
	dollars := printer.Sprintf("%d", cents/100)
	rem := cents % 100
	if !withDecimals && rem == 0 {
		return neg + "$" + dollars
	}
	return fmt.Sprintf("%s$%s.%02d", neg, dollars, rem)
}

// FormatTimestamp renders t like "October 18th, 2026 at 3:04:05 PM".
func (c *Composer) FormatTimestamp(t time.Time) string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	s := t.Format(timestampLayout)
	day := strconv.Itoa(t.Day())
	return strings.Replace(s, " "+day+",", " "+day+ordinalSuffix(t.Day())+",", 1)
}

func ordinalSuffix(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

type raceLine struct {
	Name  string
	Price int64
}

func raceLines(reg *model.Registration, ev *model.Event) []raceLine {
	races := selection.ResolveRaces(ev.Races, reg.Races)
	lines := make([]raceLine, 0, len(races))
	for _, r := range races {
		lines = append(lines, raceLine{Name: r.Name(), Price: r.Price})
	}
	return lines
}

func genderLabel(g string) string {
	if g == model.GenderFemale {
		return "Female"
	}
	return "Male"
}

func plural(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}

// details writes the registration block shared by the registrant and admin
// emails.
func (c *Composer) details(b *strings.Builder, reg *model.Registration, ev *model.Event, paymentLabel string) {
	fmt.Fprintf(b, "Registration ID: %s\n", reg.ID)
	fmt.Fprintf(b, "%s: %s\n", paymentLabel, reg.StripeID)
	fmt.Fprintf(b, "Timestamp: %s\n\n", c.FormatTimestamp(reg.CreatedAt))
	fmt.Fprintf(b, "Name: %s\n", reg.FullName())
	fmt.Fprintf(b, "Email: %s\n", reg.Email)
	fmt.Fprintf(b, "Phone: %s\n", registration.FormatPhone(reg.Phone))
	fmt.Fprintf(b, "Hometown: %s, %s\n", reg.City, reg.State)
	fmt.Fprintf(b, "Age: %d\n", reg.Age)
	fmt.Fprintf(b, "Gender: %s\n", genderLabel(reg.Gender))
	if g := reg.GuardianName(); g != "" {
		fmt.Fprintf(b, "Guardian: %s\n", g)
	}

	fmt.Fprintf(b, "\nRace%s:\n", plural(len(reg.Races)))
	for _, r := range raceLines(reg, ev) {
		fmt.Fprintf(b, "%s (%s)\n", r.Name, FormatMoney(r.Price, false))
	}

	fmt.Fprintf(b, "\nSubtotal: %s\n", FormatMoney(reg.Summary.Subtotal, false))
	fmt.Fprintf(b, "Trail fee: %s\n", FormatMoney(reg.Summary.TrailFee, false))
	if reg.Summary.ISDRAFee > 0 {
		fmt.Fprintf(b, "ISDRA fee: %s\n", FormatMoney(reg.Summary.ISDRAFee, false))
	}
	fmt.Fprintf(b, "Total: %s", FormatMoney(reg.Summary.Total, false))
}

// Confirmation is the email sent to the registrant.
func (c *Composer) Confirmation(reg *model.Registration, ev *model.Event) (Message, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", reg.FirstName)
	fmt.Fprintf(&b, "You have successfully registered for the %d %s. Below you will see your registration details.\n\n\n",
		ev.Year(), ev.Name)
	b.WriteString("Registration Details:\n\n")
	c.details(&b, reg, ev, "Payment ID")
	text := b.String()

	html, err := c.confirmationHTML(reg, ev)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:      []string{reg.Email},
		From:    c.From,
		Subject: fmt.Sprintf("%d %s Registration (#%s)", ev.Year(), ev.Name, reg.ID),
		Text:    text,
		HTML:    html,
	}, nil
}

// AdminNotification is the plain-text email sent to the event administrator.
func (c *Composer) AdminNotification(reg *model.Registration, ev *model.Event) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s Registration\n\n", ev.Year(), ev.Name)
	c.details(&b, reg, ev, "Stripe ID")

	return Message{
		To:      []string{c.AdminTo},
		From:    c.From,
		Subject: fmt.Sprintf("%d %s Registration Notification (#%s)", ev.Year(), ev.Name, reg.ID),
		Text:    b.String(),
	}
}

// ConfirmationURL links to the web confirmation view of a registration.
func (c *Composer) ConfirmationURL(tag model.EventTag, id string) string {
	return fmt.Sprintf("%s/event/%s/confirmation?id=%s", strings.TrimRight(c.SiteURL, "/"), tag, id)
}

func (c *Composer) confirmationHTML(reg *model.Registration, ev *model.Event) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %d %s Registration\n\n", ev.Year(), ev.Name)
	fmt.Fprintf(&md, "## #%s\n\n", reg.ID)
	fmt.Fprintf(&md, "Hi %s,\n\n", mdEscape(reg.FirstName))
	fmt.Fprintf(&md, "This is confirmation for your %d %s registration.\n\n", ev.Year(), ev.Name)

	md.WriteString("### Participant details\n\n")
	fmt.Fprintf(&md, "%s %s\n", mdEscape(reg.FirstName), mdEscape(reg.LastName))
	fmt.Fprintf(&md, "%s, %s\n", mdEscape(reg.City), mdEscape(reg.State))
	fmt.Fprintf(&md, "%s\n", mdEscape(reg.Email))
	fmt.Fprintf(&md, "%s\n", registration.FormatPhone(reg.Phone))
	fmt.Fprintf(&md, "%s - %d\n", genderLabel(reg.Gender), reg.Age)
	if g := reg.GuardianName(); g != "" {
		fmt.Fprintf(&md, "%s\n", mdEscape(g))
	}

	fmt.Fprintf(&md, "\n### Race%s\n\n", plural(len(reg.Races)))
	for _, r := range raceLines(reg, ev) {
		fmt.Fprintf(&md, "- %s (%s)\n", mdEscape(r.Name), FormatMoney(r.Price, false))
	}

	md.WriteString("\n| | |\n|---|---:|\n")
	fmt.Fprintf(&md, "| Subtotal | %s |\n", FormatMoney(reg.Summary.Subtotal, true))
	fmt.Fprintf(&md, "| Trail fee | %s |\n", FormatMoney(reg.Summary.TrailFee, true))
	if reg.Summary.ISDRAFee > 0 {
		fmt.Fprintf(&md, "| ISDRA fee | %s |\n", FormatMoney(reg.Summary.ISDRAFee, true))
	}
	fmt.Fprintf(&md, "| **Total** | **%s** |\n\n", FormatMoney(reg.Summary.Total, true))

	fmt.Fprintf(&md, "[View your registration in the browser](%s)\n", c.ConfirmationURL(ev.Tag, reg.ID))

	var body bytes.Buffer
	if err := mdRenderer.Convert([]byte(md.String()), &body); err != nil {
		return "", fmt.Errorf("render confirmation html: %w", err)
	}

	var doc strings.Builder
	fmt.Fprintf(&doc, "<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\" />\n<title>%d %s Registration</title>\n</head>\n<body>\n",
		ev.Year(), htmlEscaper.Replace(ev.Name))
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}

// ContactEmail forwards a contact form submission to the organisers.
func (c *Composer) ContactEmail(m model.ContactMessage) Message {
	var b strings.Builder
	b.WriteString("3D Mushing Events Contact Form Message\n\n")
	fmt.Fprintf(&b, "ID: %s\n", m.ID)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", c.FormatTimestamp(m.SentAt))
	fmt.Fprintf(&b, "Name: %s\n", m.Name)
	fmt.Fprintf(&b, "Email: %s\n", m.Email)
	fmt.Fprintf(&b, "Phone: %s\n\n", m.Phone)
	fmt.Fprintf(&b, "Message:\n%s\n\n\n", m.Message)
	b.WriteString("*This message was sent from the contact form on 3dmushingevents.com.")

	return Message{
		To:      []string{c.ContactTo},
		From:    c.ContactFrom,
		ReplyTo: m.Email,
		Subject: fmt.Sprintf("Contact form message (#%s)", m.ID),
		Text:    b.String(),
	}
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;")

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`,
	"#", `\#`, "|", `\|`, "<", "&lt;", ">", "&gt;",
)

func mdEscape(s string) string {
	return mdEscaper.Replace(s)
}
