package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const ServiceName = "news-lens"

// 全局日志
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// main 调用 Init 之前也可用
func init() {
	Init("info", "text")
}

func Init(level, format string) {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Log = logger.WithFields(logrus.Fields{"service": ServiceName})
}

// Logger 返回底层 logger，测试里挂 hook 用
func Logger() *logrus.Logger {
	return logger
}
