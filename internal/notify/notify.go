// Package notify 运维告警通知
package notify

import (
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
)

// Notifier 通过 Telegram 给 Owner 发运维告警
//
// 未启用时所有方法都是空操作。
type Notifier struct {
	bot   *tele.Bot
	owner int64
}

// New 创建通知器
func New(cfg *config.TelegramConfig) (*Notifier, error) {
	if !cfg.Enabled {
		return &Notifier{}, nil
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	return &Notifier{bot: bot, owner: cfg.Owner}, nil
}

// SendToOwner 给 Owner 发消息
func (n *Notifier) SendToOwner(text string) {
	if n.bot == nil || n.owner == 0 {
		return
	}

	chat := &tele.Chat{ID: n.owner}
	if _, err := n.bot.Send(chat, text, tele.ModeMarkdown); err != nil {
		logger.Warn().Err(err).Msg("发送告警消息失败")
	}
}
