package output

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"

	"market-news-lab/internal/domain"
)

const (
	defaultSMTPPort = 587

	// emailMaxTickers and emailMaxItemsPerTicker keep the HTML body
	// readable in a mail client; the full digest always goes out on
	// the other channels.
	emailMaxTickers        = 10
	emailMaxItemsPerTicker = 3
	emailTitleLimit        = 60
)

// sendFunc has the smtp.SendMail shape so delivery is swappable in
// tests and for the implicit-TLS path.
type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Email sends the digest as a multipart/alternative message, HTML with
// a markdown fallback part.
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       []string
	send     sendFunc
}

// NewEmail creates the email output channel. The sender address is the
// SMTP user. Port 465 uses implicit TLS; anything else goes through
// smtp.SendMail, which upgrades with STARTTLS when the server offers it.
func NewEmail(cfg Config) (Output, error) {
	if cfg.SMTPHost == "" || cfg.SMTPUser == "" || cfg.SMTPPassword == "" || cfg.EmailTo == "" {
		return nil, fmt.Errorf("email output requires smtp host, user, password, and a recipient")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	var to []string
	for _, addr := range strings.Split(cfg.EmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("email output requires at least one recipient")
	}
	e := &Email{
		host:     cfg.SMTPHost,
		port:     port,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPUser,
		to:       to,
	}
	if port == 465 {
		e.send = sendImplicitTLS
	} else {
		e.send = smtp.SendMail
	}
	return e, nil
}

// Name implements Output.
func (e *Email) Name() string { return "email" }

// Deliver implements Output. The reference is the recipient list.
func (e *Email) Deliver(_ context.Context, digest *domain.Digest) (string, error) {
	addr := net.JoinHostPort(e.host, fmt.Sprintf("%d", e.port))
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	if err := e.send(addr, auth, e.from, e.to, e.message(digest)); err != nil {
		return "", fmt.Errorf("send digest email: %w", err)
	}
	return strings.Join(e.to, ","), nil
}

func (e *Email) message(digest *domain.Digest) []byte {
	boundary := "digest-" + shortRunID(digest.RunID)

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.to, ", "))
	fmt.Fprintf(&b, "Subject: Market News Digest - %s\r\n", digest.GeneratedAt.UTC().Format("2006-01-02"))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(wrapBase64(RenderMarkdown(digest)))

	fmt.Fprintf(&b, "\r\n--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
	b.WriteString(wrapBase64(RenderHTML(digest)))

	fmt.Fprintf(&b, "\r\n--%s--\r\n", boundary)
	return b.Bytes()
}

// sendImplicitTLS is the port-465 path: the TLS handshake happens
// before any SMTP traffic instead of via STARTTLS.
func sendImplicitTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// wrapBase64 encodes s with the 76-column line wrapping MIME wants.
func wrapBase64(s string) string {
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	var b strings.Builder
	for len(enc) > 76 {
		b.WriteString(enc[:76])
		b.WriteString("\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc)
	return b.String()
}

// RenderHTML renders the digest as a self-contained inline-styled HTML
// document for mail clients.
func RenderHTML(digest *domain.Digest) string {
	var b strings.Builder

	b.WriteString(`<div style="font-family: -apple-system, Arial, sans-serif; max-width: 680px; margin: 0 auto;">`)
	fmt.Fprintf(&b, `<h1 style="font-size: 20px;">Market News Digest %s</h1>`,
		digest.GeneratedAt.UTC().Format("2006-01-02"))

	bullish, bearish, neutral := sentimentCounts(digest)
	label, color := overallSentiment(bullish, bearish)
	fmt.Fprintf(&b, `<div style="background: %s; color: #fff; padding: 10px 14px; border-radius: 6px; margin: 12px 0;">`, color)
	fmt.Fprintf(&b, `<strong>%s</strong> &middot; %d bullish / %d bearish / %d neutral</div>`,
		label, bullish, bearish, neutral)

	tickers := digestTickers(digest)
	if len(tickers) > emailMaxTickers {
		tickers = tickers[:emailMaxTickers]
	}
	for _, ticker := range tickers {
		items := digest.ItemsForTicker(ticker)
		if len(items) == 0 {
			continue
		}
		writeTickerCard(&b, digest, ticker, items)
	}

	c := digest.Counters
	fmt.Fprintf(&b, `<p style="color: #6c757d; font-size: 12px; border-top: 1px solid #dee2e6; padding-top: 8px;">`+
		`Collected %d, kept %d after dedup, analyzed %d (%d failed).</p>`,
		c.RawCollected, c.AfterDedup, c.AnalyzedSuccess, c.AnalyzedFailed)
	b.WriteString(`</div>`)
	return b.String()
}

func writeTickerCard(b *strings.Builder, digest *domain.Digest, ticker string, items []domain.DigestItem) {
	var up, down int
	for _, item := range items {
		switch direction(item) {
		case domain.ImpactBullish:
			up++
		case domain.ImpactBearish:
			down++
		}
	}
	border := "#6c757d"
	if up > down {
		border = "#28a745"
	} else if down > up {
		border = "#dc3545"
	}

	fmt.Fprintf(b, `<div style="border-left: 4px solid %s; background: #f8f9fa; padding: 10px 14px; margin: 10px 0; border-radius: 4px;">`, border)
	fmt.Fprintf(b, `<h2 style="font-size: 16px; margin: 0 0 6px;">%s <span style="color: #6c757d; font-weight: normal;">(%d item(s))</span></h2>`,
		html.EscapeString(ticker), len(items))

	if summary := summaryFor(digest, ticker); summary != nil && summary.Assessment != "" {
		fmt.Fprintf(b, `<p style="margin: 4px 0;">%s</p>`, html.EscapeString(summary.Assessment))
	}

	shown := items
	if len(shown) > emailMaxItemsPerTicker {
		shown = shown[:emailMaxItemsPerTicker]
	}
	b.WriteString(`<ul style="margin: 6px 0; padding-left: 18px;">`)
	for _, item := range shown {
		fmt.Fprintf(b, `<li style="margin: 3px 0;">%s <a href="%s" style="color: #212529;">%s</a></li>`,
			directionIcon(direction(item)),
			html.EscapeString(item.News.CanonicalURL),
			html.EscapeString(clipTitle(item.News.Title)))
	}
	b.WriteString(`</ul>`)
	if hidden := len(items) - len(shown); hidden > 0 {
		fmt.Fprintf(b, `<p style="color: #6c757d; font-size: 12px; margin: 2px 0;">and %d more</p>`, hidden)
	}
	b.WriteString(`</div>`)
}

// sentimentCounts tallies analyzed items over the whole digest.
// Unanalyzed items count as neutral.
func sentimentCounts(digest *domain.Digest) (bullish, bearish, neutral int) {
	for _, item := range digest.Items {
		switch direction(item) {
		case domain.ImpactBullish:
			bullish++
		case domain.ImpactBearish:
			bearish++
		default:
			neutral++
		}
	}
	return bullish, bearish, neutral
}

// overallSentiment calls the day only when one side clearly dominates:
// more than double the other.
func overallSentiment(bullish, bearish int) (label, color string) {
	switch {
	case bullish > bearish*2:
		return "BULLISH", "#28a745"
	case bearish > bullish*2:
		return "BEARISH", "#dc3545"
	default:
		return "NEUTRAL", "#6c757d"
	}
}

func direction(item domain.DigestItem) domain.ImpactDirection {
	if item.Analysis == nil {
		return domain.ImpactNeutral
	}
	return item.Analysis.ImpactDirection
}

func directionIcon(d domain.ImpactDirection) string {
	switch d {
	case domain.ImpactBullish:
		return "&#9650;"
	case domain.ImpactBearish:
		return "&#9660;"
	default:
		return "&#8226;"
	}
}

func clipTitle(title string) string {
	r := []rune(title)
	if len(r) <= emailTitleLimit {
		return title
	}
	return string(r[:emailTitleLimit]) + "..."
}

// Verify interface compliance at compile time.
var _ Output = (*Email)(nil)
