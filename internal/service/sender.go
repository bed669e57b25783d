package service

import (
	"context"

	"github.com/atinyakov/ResQWave/internal/logger"
	"github.com/atinyakov/ResQWave/internal/models"
	"go.uber.org/zap"
)

// LogSender delivers one-time codes by logging them. Development only.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender returns a LogSender writing to log.
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: logger.OrNop(log)}
}

// SendCode logs code for user.
func (s *LogSender) SendCode(_ context.Context, user models.FocalUser, code string) error {
	s.log.Info("one-time code issued",
		zap.String("user", user.ID),
		zap.String("email", user.Email),
		zap.String("phone", user.Phone),
		zap.String("code", code),
	)
	return nil
}
