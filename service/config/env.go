package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type envService struct {
}

// NewEnv returns a config service backed by environment variables with
// built-in defaults. Env vars are expected to be loaded by main (godotenv
// in dev mode).
func NewEnv() IService {
	return &envService{}
}

func (svc *envService) GetConfigFolder() string {
	// UC_CONFIG_HOME is set in production; fall back to the working folder
	// for development.
	if folder := os.Getenv("UC_CONFIG_HOME"); folder != "" {
		return folder
	}
	return "."
}

func (svc *envService) GetConfigFile() string {
	return filepath.Join(svc.GetConfigFolder(), "config.json")
}

func (svc *envService) GetDefaultRefreshRate() int {
	return envInt("CCTV_REFRESH_RATE", 10)
}

func (svc *envService) GetMaxConsecutiveFailures() int {
	return envInt("CCTV_MAX_FAILURES", 5)
}

func (svc *envService) GetSettleDelay() time.Duration {
	return time.Duration(envInt("CCTV_SETTLE_DELAY_MS", 100)) * time.Millisecond
}

func (svc *envService) GetErrorBackoff() time.Duration {
	return time.Duration(envInt("CCTV_ERROR_BACKOFF_SECS", 5)) * time.Second
}

func (svc *envService) GetConnectTimeout() time.Duration {
	return time.Duration(envInt("CCTV_CONNECT_TIMEOUT_SECS", 5)) * time.Second
}

func (svc *envService) GetRequestTimeout() time.Duration {
	return time.Duration(envInt("CCTV_REQUEST_TIMEOUT_SECS", 10)) * time.Second
}

func (svc *envService) GetMinImageBytes() int {
	// Rejects HTML error pages and placeholder bodies served with HTTP 200.
	return envInt("CCTV_MIN_IMAGE_BYTES", 1000)
}

func (svc *envService) GetMaxImageKB() int {
	return envInt("CCTV_MAX_IMAGE_KB", 80)
}

func (svc *envService) GetStatusServerAddress() string {
	if addr := os.Getenv("CCTV_STATUS_ADDR"); addr != "" {
		return addr
	}
	return ":8090"
}

func (svc *envService) GetMaxShutdownTime() int {
	return envInt("CCTV_MAX_SHUTDOWN_SECS", 5)
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
