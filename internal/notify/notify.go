// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify posts run summaries to a Feishu (Lark) bot webhook as
// interactive cards.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/daily-papers/internal/httputil"
	"github.com/pdiddy/daily-papers/pkg/types"
)

const defaultMaxPapers = 50

// ErrNoWebhook is returned by Send when no webhook URL is configured.
var ErrNoWebhook = errors.New("no Feishu webhook configured")

// Status selects the card header color.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusInfo    Status = "info"
)

// Template returns the Feishu header template for s.
func (s Status) Template() string {
	switch strings.ToLower(string(s)) {
	case "success", "ok", "pass":
		return "green"
	case "failed", "error", "fail":
		return "red"
	default:
		return "blue"
	}
}

// Message is one notification.
type Message struct {
	Title   string
	Content string // lark_md
	Status  Status
}

// WebhookError reports a webhook that answered with a non-zero code.
type WebhookError struct {
	StatusCode int
	Code       int
	Msg        string
}

func (e *WebhookError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("feishu webhook: code %d: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("feishu webhook: HTTP %d: %s", e.StatusCode, e.Msg)
}

// Notifier sends cards to one webhook.
type Notifier struct {
	Webhook   string
	Client    *http.Client
	Policy    httputil.Policy
	MaxPapers int

	now func() time.Time
}

// New returns a Notifier for cfg. A nil client gets one with cfg.Timeout
// (default 10s).
func New(cfg types.NotifyConfig, client *http.Client) *Notifier {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	maxPapers := cfg.MaxPapers
	if maxPapers <= 0 {
		maxPapers = defaultMaxPapers
	}
	return &Notifier{
		Webhook:   cfg.Webhook,
		Client:    client,
		Policy:    httputil.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
		MaxPapers: maxPapers,
		now:       time.Now,
	}
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool { return n.Webhook != "" }

type card struct {
	MsgType string   `json:"msg_type"`
	Card    cardBody `json:"card"`
}

type cardBody struct {
	Config   cardConfig    `json:"config"`
	Header   cardHeader    `json:"header"`
	Elements []cardElement `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardElement struct {
	Tag      string     `json:"tag"`
	Text     *cardText  `json:"text,omitempty"`
	Elements []cardText `json:"elements,omitempty"`
}

type webhookResponse struct {
	Code          *int   `json:"code"`
	Msg           string `json:"msg"`
	StatusCode    *int   `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
}

func (n *Notifier) buildCard(m Message) card {
	now := n.now().Format("2006-01-02 15:04:05")
	return card{
		MsgType: "interactive",
		Card: cardBody{
			Config: cardConfig{WideScreenMode: true},
			Header: cardHeader{
				Title:    cardText{Tag: "plain_text", Content: m.Title},
				Template: m.Status.Template(),
			},
			Elements: []cardElement{
				{Tag: "div", Text: &cardText{Tag: "lark_md", Content: m.Content}},
				{Tag: "note", Elements: []cardText{{Tag: "plain_text", Content: "Time: " + now}}},
			},
		},
	}
}

// Send posts m. It returns ErrNoWebhook when the Notifier has no webhook.
func (n *Notifier) Send(ctx context.Context, m Message) error {
	if !n.Enabled() {
		return ErrNoWebhook
	}

	body, err := json.Marshal(n.buildCard(m))
	if err != nil {
		return fmt.Errorf("marshaling card: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, n.Client, req, n.Policy)
	if err != nil {
		return fmt.Errorf("posting to feishu: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("reading feishu response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &WebhookError{StatusCode: resp.StatusCode, Msg: strings.TrimSpace(string(data))}
	}

	var wr webhookResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return fmt.Errorf("decoding feishu response: %w", err)
	}
	switch {
	case wr.Code != nil && *wr.Code != 0:
		return &WebhookError{StatusCode: resp.StatusCode, Code: *wr.Code, Msg: wr.Msg}
	case wr.Code == nil && wr.StatusCode != nil && *wr.StatusCode != 0:
		return &WebhookError{StatusCode: resp.StatusCode, Code: *wr.StatusCode, Msg: wr.StatusMessage}
	}
	return nil
}

// DailyMessage summarizes the report for one date. At most maxPapers
// results are listed; zero or less uses the default of 50.
func DailyMessage(r *types.DailyReport, maxPapers int) Message {
	if maxPapers <= 0 {
		maxPapers = defaultMaxPapers
	}

	status := StatusInfo
	switch {
	case len(r.Failures) > 0 && len(r.Results) == 0:
		status = StatusFailed
	case len(r.Failures) == 0 && len(r.Results) > 0:
		status = StatusSuccess
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%d** papers analyzed, **%d** failed.\n", len(r.Results), len(r.Failures))
	for i, res := range r.Results {
		if i == maxPapers {
			fmt.Fprintf(&b, "\n...and %d more", len(r.Results)-maxPapers)
			break
		}
		title := res.Title
		if res.TitleTranslation != "" && res.TitleTranslation != res.Title {
			title += " / " + res.TitleTranslation
		}
		title = escapeMarkdown(title)
		if res.SourceURL != "" {
			fmt.Fprintf(&b, "\n%d. [%s] [%s](%s)", i+1, res.Category, title, linkTarget.Replace(res.SourceURL))
		} else {
			fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, res.Category, title)
		}
	}

	return Message{
		Title:   "AI Papers " + r.Date,
		Content: b.String(),
		Status:  status,
	}
}

// markdownEntities replaces the characters lark_md treats as markup with
// the HTML entities Feishu renders literally.
var markdownEntities = strings.NewReplacer(
	"&", "&amp;",
	"<", "&#60;",
	">", "&#62;",
	"*", "&#42;",
	"_", "&#95;",
	"~", "&#126;",
	"`", "&#96;",
	"[", "&#91;",
	"]", "&#93;",
	"(", "&#40;",
	")", "&#41;",
	"#", "&#35;",
	"|", "&#124;",
	"\\", "&#92;",
)

// escapeMarkdown makes s safe to embed as text in lark_md content.
func escapeMarkdown(s string) string {
	return markdownEntities.Replace(s)
}

// linkTarget percent-encodes the characters that would end a markdown
// link target early.
var linkTarget = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")

// NotifyDate sends the DailyMessage for r.
func (n *Notifier) NotifyDate(ctx context.Context, r *types.DailyReport) error {
	return n.Send(ctx, DailyMessage(r, n.MaxPapers))
}
