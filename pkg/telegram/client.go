package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/russross/blackfriday"

	"github.com/avdeev/taskchat/pkg/domain"
	"github.com/avdeev/taskchat/pkg/logger"
)

type client struct {
	token     string
	bot       *tgbotapi.BotAPI
	updatesCh tgbotapi.UpdatesChannel
}

func NewClient(token string) (*client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot api instance: %w", err)
	}

	slog.Info("authorized on telegram", "account", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	return &client{
		token:     token,
		bot:       bot,
		updatesCh: bot.GetUpdatesChan(u),
	}, nil
}

func (c *client) GetUpdates() tgbotapi.UpdatesChannel {
	return c.updatesCh
}

// SendText renders assistant markdown to Telegram HTML. If Telegram rejects
// the markup, the text is retried as plain text so the reply still arrives.
func (c *client) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, RenderHTML(text))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := c.bot.Send(msg); err != nil {
		slog.Warn("falling back to plain text reply", "chatID", chatID, logger.Err(err))
		plain := tgbotapi.NewMessage(chatID, text)
		if _, err := c.bot.Send(plain); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
	return nil
}

func (c *client) SendPhoto(chatID int64, attachment domain.Attachment) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  attachment.Name,
		Bytes: attachment.Data,
	})
	if _, err := c.bot.Send(photo); err != nil {
		return fmt.Errorf("sending photo: %w", err)
	}
	return nil
}

func (c *client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.token), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading file body: %w", err)
	}
	return data, nil
}

// telegramTagReplacer strips the block-level tags Telegram's HTML parse mode
// does not accept, keeping the inline formatting it does.
var telegramTagReplacer = strings.NewReplacer(
	"<p>", "", "</p>", "\n",
	"<h1>", "<b>", "</h1>", "</b>\n",
	"<h2>", "<b>", "</h2>", "</b>\n",
	"<h3>", "<b>", "</h3>", "</b>\n",
	"<ul>", "", "</ul>", "",
	"<ol>", "", "</ol>", "",
	"<li>", "• ", "</li>", "\n",
	"<hr>", "", "<hr/>", "",
	"<blockquote>", "", "</blockquote>", "",
	"<em>", "<i>", "</em>", "</i>",
	"<strong>", "<b>", "</strong>", "</b>",
)

func RenderHTML(markdown string) string {
	html := string(blackfriday.MarkdownBasic([]byte(markdown)))
	return strings.TrimSpace(telegramTagReplacer.Replace(html))
}
