// Package telegram provides a client for sending target notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/bandarscope/internal/logger"
	"github.com/rewired-gh/bandarscope/internal/models"
)

// RecordLookup finds the latest stored record for a ticker.
type RecordLookup interface {
	LatestStockQuery(ctx context.Context, emiten string) (*models.StockQuery, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, lookup RecordLookup) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, lookup, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, lookup RecordLookup, msg *tgbotapi.Message) {
	text, ok := commandReply(ctx, lookup, msg.Command(), msg.CommandArguments())
	if !ok {
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdownV2
	if _, err := c.bot.Send(reply); err != nil {
		logger.Warn("Failed to reply to /%s: %v", msg.Command(), err)
	}
}

// commandReply builds the MarkdownV2 reply for a bot command. The boolean is
// false for commands the bot does not handle.
func commandReply(ctx context.Context, lookup RecordLookup, command, args string) (string, bool) {
	switch command {
	case "ping":
		return "Pong", true
	case "target":
		emiten := strings.ToUpper(strings.TrimSpace(args))
		if emiten == "" {
			return escapeMarkdownV2("Usage: /target EMITEN"), true
		}
		rec, err := lookup.LatestStockQuery(ctx, emiten)
		if err != nil {
			logger.Error("Failed to look up %s: %v", emiten, err)
			return escapeMarkdownV2("Failed to read stored targets for " + emiten), true
		}
		if rec == nil {
			return escapeMarkdownV2("No stored targets for " + emiten), true
		}
		return formatRecord(rec), true
	}
	return "", false
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendTargets sends the computed targets of a single-date result.
func (c *Client) SendTargets(ctx context.Context, r *models.Result) error {
	return c.sendMarkdownV2(ctx, formatResult(r))
}

// formatResult formats a computed result into a Telegram MarkdownV2 message.
func formatResult(r *models.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 *%s* targets for %s\n", escapeMarkdownV2(r.Input.Emiten), escapeMarkdownV2(r.Input.ToDate))
	if r.Sector != "" {
		fmt.Fprintf(&b, "🏷 %s\n", escapeMarkdownV2(r.Sector))
	}
	b.WriteString("\n")
	writeBody(&b, r.StockbitData, r.MarketData.MarketSnapshot, models.TargetMetrics{
		Fraksi:          r.MarketData.Fraksi,
		TotalPapan:      r.Calculated.TotalPapan,
		RataRataBidOfer: r.Calculated.RataRataBidOfer,
		A:               r.Calculated.A,
		P:               r.Calculated.P,
		TargetRealistis: r.Calculated.TargetRealistis,
		TargetMax:       r.Calculated.TargetMax,
	})
	return b.String()
}

// formatRecord formats a stored record for the /target command.
func formatRecord(q *models.StockQuery) string {
	var b strings.Builder
	period := q.ToDate
	if q.FromDate != q.ToDate {
		period = q.FromDate + " to " + q.ToDate
	}
	fmt.Fprintf(&b, "📦 *%s* stored targets for %s\n\n", escapeMarkdownV2(q.Emiten), escapeMarkdownV2(period))
	writeBody(&b, q.Broker(), q.Snapshot(), q.Targets())
	fmt.Fprintf(&b, "\n🕒 Saved %s", escapeMarkdownV2(q.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

func writeBody(b *strings.Builder, broker models.BrokerMetrics, snap models.MarketSnapshot, t models.TargetMetrics) {
	fmt.Fprintf(b, "Bandar: *%s* %s lot @ %s\n",
		escapeMarkdownV2(broker.Bandar), num(broker.BarangBandar), num(broker.RataRataBandar))
	fmt.Fprintf(b, "Harga: %s \\| Offer: %s \\| Bid: %s\n",
		num(snap.Harga), num(snap.OfferTeratas), num(snap.BidTerbawah))
	fmt.Fprintf(b, "Fraksi: %s \\| Papan: %s \\| Rata\\-rata bid/offer: %s\n",
		num(t.Fraksi), num(t.TotalPapan), num(t.RataRataBidOfer))
	fmt.Fprintf(b, "📈 Target realistis: *%s*\n", num(t.TargetRealistis))
	fmt.Fprintf(b, "🚀 Target max: *%s*\n", num(t.TargetMax))
}

func num(v float64) string {
	return escapeMarkdownV2(strconv.FormatFloat(v, 'f', -1, 64))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
