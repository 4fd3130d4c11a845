package log

import (
	"context"

	"github.com/rs/zerolog"
)

// MigrationLogger routes goose's migration output through the context
// logger so schema changes land in the same stream as everything else.
// goose prints at a single level; anything short of fatal maps to info.
type MigrationLogger struct {
	log *zerolog.Logger
}

func NewMigrationLogger(ctx context.Context) *MigrationLogger {
	return &MigrationLogger{log: FromCtx(ctx)}
}

func (m *MigrationLogger) Printf(format string, args ...any) {
	m.log.Info().Msgf(format, args...)
}

func (m *MigrationLogger) Fatalf(format string, args ...any) {
	m.log.Fatal().Msgf(format, args...)
}
