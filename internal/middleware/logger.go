package middleware

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	appLogger *log.Logger
)

// InitLogger routes the standard logger to stdout and a rotating file in logDir
func InitLogger(logDir string) error {
	absLogDir, err := filepath.Abs(logDir)
	if err != nil {
		absLogDir = logDir
	}

	if err := os.MkdirAll(absLogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", absLogDir, err)
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(absLogDir, "socialhub.log"),
		MaxSize:    10, // MB
		MaxBackups: 30,
		MaxAge:     30, // days
		Compress:   true,
		LocalTime:  true,
	}

	out := io.MultiWriter(os.Stdout, logFile)
	appLogger = log.New(out, "", log.LstdFlags)

	// services log through the default logger
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags)

	appLogger.Printf("[INFO] Logger initialized, log file: %s", logFile.Filename)
	return nil
}

// LogInfo logs info level messages
func LogInfo(format string, v ...interface{}) {
	logf("[INFO] ", format, v...)
}

// LogError logs error level messages
func LogError(format string, v ...interface{}) {
	logf("[ERROR] ", format, v...)
}

// LogDebug logs debug level messages
func LogDebug(format string, v ...interface{}) {
	logf("[DEBUG] ", format, v...)
}

func logf(level, format string, v ...interface{}) {
	if appLogger != nil {
		appLogger.Printf(level+format, v...)
		return
	}
	log.Printf(level+format, v...)
}

// RequestLoggerMiddleware logs method, full URL, status and latency of every request
func RequestLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		fullURL := requestURL(c)

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		if statusCode >= 500 {
			LogError("%s %s | status=%d | latency=%v | ip=%s",
				c.Request.Method, fullURL, statusCode, latency, c.ClientIP())
		} else {
			LogInfo("%s %s | status=%d | latency=%v | ip=%s",
				c.Request.Method, fullURL, statusCode, latency, c.ClientIP())
		}
	}
}

// AuditLoggerMiddleware records who performed an account mutation. Request
// bodies are never logged since they carry passwords; the session token is masked.
func AuditLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		actor := "anonymous"
		if user := GetUser(c); user != nil {
			actor = user.ID
		}

		LogInfo("AUDIT %s %s | actor=%s | token=%s | content-type=%s | status=%d",
			c.Request.Method, requestURL(c), actor, maskToken(GetToken(c)),
			c.ContentType(), c.Writer.Status())
	}
}

func requestURL(c *gin.Context) string {
	if c.Request.URL.RawQuery != "" {
		return c.Request.URL.Path + "?" + c.Request.URL.RawQuery
	}
	return c.Request.URL.Path
}

// maskToken keeps the last 6 characters of a token
func maskToken(token string) string {
	if token == "" {
		return "-"
	}
	if len(token) <= 12 {
		return "***"
	}
	return "***" + token[len(token)-6:]
}
