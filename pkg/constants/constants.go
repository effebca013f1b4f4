// Package constants defines magic numbers and default values used throughout go-sahttp
package constants

import "time"

// Socket timeouts
const (
	DefaultConnTimeout    = 10 * time.Second
	DefaultDNSTimeout     = 5 * time.Second
	DefaultSendTimeout    = 200 * time.Millisecond
	DefaultReceiveTimeout = 3 * time.Second
)

// Transport sizing
const (
	DefaultReadSize = 4096
	DefaultPort     = 80
	DefaultTLSPort  = 443
)

// HTTP limits
const (
	MaxHeaderBytes      = 64 * 1024
	MaxContentLength    = 1024 * 1024 * 1024 * 1024 // 1TB
	DefaultMaxRedirects = 5
)

// Request defaults
const (
	DefaultUserAgent = "libsa"
	FormContentType  = "application/x-www-form-urlencoded;charset=UTF-8"
)

// Buffer limits
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024 // 4MB
)
