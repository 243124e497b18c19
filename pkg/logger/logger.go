package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger initializes the structured logger with proper configuration
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	log := logrus.New()

	// Override with environment if not provided
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	// Set formatter based on environment
	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	log.SetOutput(os.Stdout)

	// Store global logger reference
	Logger = log

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

// WithAthleteContext creates a logger scoped to one athlete and metric
func WithAthleteContext(athlete, metric string) *logrus.Entry {
	fields := logrus.Fields{}
	if athlete != "" {
		fields["athlete"] = athlete
	}
	if metric != "" {
		fields["metric"] = metric
	}
	return GetLogger().WithFields(fields)
}

// WithModelContext creates a logger scoped to one model artifact
func WithModelContext(metric string, period int) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"metric": metric,
		"period": period,
	})
}

// WithProjectionContext creates a logger with full projection request context
func WithProjectionContext(athlete, metric string, period, cutoff, horizon int) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{
		"athlete": athlete,
		"metric":  metric,
		"period":  period,
		"cutoff":  cutoff,
		"horizon": horizon,
	})
}
