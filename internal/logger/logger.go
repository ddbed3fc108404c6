package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// L 业务日志，默认输出到 stdout，Init 之后写入滚动文件
var L = newStdout()

var logDir = "./logs"

func newStdout() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{TimestampFormat: "2006-01-02 15:04:05", FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init 切换业务日志到 ./logs/app 下按天滚动
func Init(dir, level string) {
	if dir != "" {
		logDir = dir
	}
	l := NewLogger("app")
	if lv, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lv)
	}
	L = l
}

func NewLogger(logType string) *logrus.Logger {
	log := logrus.New()
	logPath := filepath.Join(logDir, logType)
	_ = os.MkdirAll(logPath, 0755)

	writer, err := rotatelogs.New(
		logPath+"/"+logType+".log.%Y-%m-%d",
		rotatelogs.WithLinkName(logPath+"/"+logType+".log"),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(7*24*time.Hour),
	)
	if err != nil {
		log.SetOutput(os.Stdout)
	} else {
		log.SetOutput(writer)
	}
	log.SetReportCaller(true)
	log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			// 自定义显示格式：函数名 + 文件路径
			funcName := f.Function
			fileLine := fmt.Sprintf("%s:%d", f.File, f.Line)
			return funcName, fileLine
		},
	})
	log.SetLevel(logrus.InfoLevel)

	return log
}
