package output

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"market-news-lab/internal/domain"
	"market-news-lab/internal/ratelimit"
)

const (
	telegramBaseURL = "https://api.telegram.org"

	// telegramMessageLimit is the API cap on one message's text.
	telegramMessageLimit = 4096
)

// Telegram pushes the digest as one or more bot messages.
type Telegram struct {
	client   *ratelimit.Client
	botToken string
	chatID   string
	baseURL  string
}

// NewTelegram creates the telegram output channel.
func NewTelegram(cfg Config) (Output, error) {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == "" {
		return nil, fmt.Errorf("telegram output requires a bot token and a chat id")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("telegram output requires an http client")
	}
	return &Telegram{
		client:   cfg.Client,
		botToken: cfg.TelegramBotToken,
		chatID:   cfg.TelegramChatID,
		baseURL:  telegramBaseURL,
	}, nil
}

// Name implements Output.
func (t *Telegram) Name() string { return "telegram" }

type telegramResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Description string `json:"description"`
}

// Deliver implements Output. Long digests are split at line boundaries
// under the message cap. The reference is the last message id.
func (t *Telegram) Deliver(ctx context.Context, digest *domain.Digest) (string, error) {
	chunks := splitMessage(RenderMarkdown(digest), telegramMessageLimit)
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	var lastID int64
	for _, chunk := range chunks {
		body := map[string]any{
			"chat_id":                  t.chatID,
			"text":                     chunk,
			"disable_web_page_preview": true,
		}
		var resp telegramResponse
		if err := t.client.PostJSON(ctx, "telegram", url, nil, body, &resp); err != nil {
			return "", fmt.Errorf("send telegram message: %w", err)
		}
		if !resp.OK {
			return "", fmt.Errorf("telegram rejected message: %s", resp.Description)
		}
		lastID = resp.Result.MessageID
	}
	return strconv.FormatInt(lastID, 10), nil
}

// splitMessage chunks text under limit, preferring line boundaries.
// A single line over the limit is hard-split.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		// +1 for the newline that joins the line on.
		if current.Len() > 0 && current.Len()+len(line)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// Verify interface compliance at compile time.
var _ Output = (*Telegram)(nil)
