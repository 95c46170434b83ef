package util

import (
	"github.com/cognify-labs/cognify/backend/pkg/logger"
	"github.com/cognify-labs/cognify/backend/pkg/logger/console"
	jsonlog "github.com/cognify-labs/cognify/backend/pkg/logger/json"
)

// InitLogger wires the global logger from DEBUG and LOG_FORMAT (console|json).
func InitLogger(service string) {
	debug := GetEnvBool("DEBUG", false)

	switch GetEnvString("LOG_FORMAT", "console") {
	case "json":
		logger.Init(jsonlog.NewJSONLogger(jsonlog.JSONLoggerParams{
			Debug:   debug,
			Service: service,
		}))
	default:
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
			Debug:  debug,
			Prefix: service,
		}))
	}
}
