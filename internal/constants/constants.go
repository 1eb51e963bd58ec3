// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Attendance types, as stored by the ledger
const (
	// AttendanceCheckIn records an arrival. Check-ins never carry a check-out time.
	AttendanceCheckIn = "masuk"

	// AttendanceCheckOut records a departure
	AttendanceCheckOut = "keluar"
)

// Recognition constants
const (
	// UnknownLabel is the label of a face below the similarity threshold
	UnknownLabel = "Unknown"
)

// Display layout on the 1920x1080 background
const (
	CanvasWidth  = 1920
	CanvasHeight = 1080

	// FeedX, FeedY place the 960x720 live camera feed
	FeedX      = 80
	FeedY      = 242
	FeedWidth  = 960
	FeedHeight = 720

	// PanelX, PanelY place the 621x950 mode panel
	PanelX      = 1210
	PanelY      = 65
	PanelWidth  = 621
	PanelHeight = 950

	// PortraitX, PortraitY place the 370x370 student portrait
	PortraitX    = 1335
	PortraitY    = 197
	PortraitSize = 370
)

// Student detail text positions (left edge, baseline)
const (
	StudentIDX    = 1430
	StudentIDY    = 643
	StudentNameX  = 1430
	StudentNameY  = 767
	StudentClassX = 1430
	StudentClassY = 893
)

// Processing constants
const (
	// FrameJPEGQuality is the quality of frames published on the status surface
	FrameJPEGQuality = 80
)
