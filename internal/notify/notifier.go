// Package notify 把交易计划推送到外部渠道 (Telegram 或日志)
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sink 消息投递接口，投递失败返回 error，由调用方记录
type Sink interface {
	Send(ctx context.Context, text string) error
}

// LogNotifier 只写日志，未配置 Telegram 时使用
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, text string) error {
	n.logger.Info("Alert (no telegram configured)", zap.String("Text", text))
	return nil
}
