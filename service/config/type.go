package config

import "time"

type IService interface {
	GetConfigFolder() string
	GetConfigFile() string
	GetDefaultRefreshRate() int
	GetMaxConsecutiveFailures() int
	GetSettleDelay() time.Duration
	GetErrorBackoff() time.Duration
	GetConnectTimeout() time.Duration
	GetRequestTimeout() time.Duration
	GetMinImageBytes() int
	GetMaxImageKB() int
	GetStatusServerAddress() string
	GetMaxShutdownTime() int
}
