package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionMonitorChannel returns the Redis PubSub channel name for a test session monitor
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID int) string {
	return fmt.Sprintf("session:%d:monitor", sessionID)
}

// MonitorChannel returns the Redis PubSub channel every session monitor event is mirrored to
func (r *CacheKeyStruct) MonitorChannel() string {
	return "sessions:monitor"
}

var CacheKey = NewCacheKeyStruct()
