package consts

import "time"

// Timeouts for various operations
const (
	// Timeout5Seconds is used for persistence calls on the live path
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is the write deadline for outbound frames
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is used for graceful shutdown waits
	Timeout30Seconds = 30 * time.Second
	// Timeout60Seconds is the pong wait on client connections
	Timeout60Seconds = 60 * time.Second
)

// Buffer sizes
const (
	// SendBufferSize is the per-connection outbound frame buffer
	SendBufferSize = 256
	// MaxFrameSize is the maximum inbound frame size in bytes
	MaxFrameSize = 64 * 1024
)

// Protocol limits
const (
	// ThreadTitleMaxLen caps the auto-generated thread title length
	ThreadTitleMaxLen = 100
	// DefaultListLimit is the thread list page size when the client omits one
	DefaultListLimit = 50
)
