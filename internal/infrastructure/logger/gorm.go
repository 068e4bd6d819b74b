package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold is the elapsed time past which a query is logged as slow
const slowQueryThreshold = 200 * time.Millisecond

// GormLogger adapts zap to GORM's logger interface. Record-not-found errors
// are not logged: the repositories translate them into domain errors.
type GormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel) *GormLogger {
	return &GormLogger{
		log:   log.Named("gorm"),
		level: level,
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

// Trace logs completed queries with the request and event IDs carried by the
// context, so identity-store writes correlate with the webhook delivery that
// caused them.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if eventID := GetEventID(ctx); eventID != "" {
		fields = append(fields, zap.String("event_id", eventID))
	}

	switch {
	case err != nil && l.level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) {
			return
		}
		fields = append(fields, zap.Error(err))
		l.log.Error("SQL error", fields...)
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		l.log.Warn(fmt.Sprintf("Slow SQL >= %v", slowQueryThreshold), fields...)
	case l.level >= gormlogger.Info:
		l.log.Debug("SQL query", fields...)
	}
}

// MapGormLogLevel maps the service log level onto GORM's
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
