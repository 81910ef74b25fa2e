package constants

import "time"

const (
	AppName             = "routined"
	DefaultKeyringUser  = "database-connection"
	DefaultConfigPath   = "~/.config/routined/routined.db"
	DefaultSettingsPath = "~/.config/routined/routined.yaml"
	DefaultRequestsDir  = "~/.config/routined/requests"
	DefaultUserID       = "local"
	Version             = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Environment variables
	EnvDBConnection = "ROUTINED_DB_CONNECTION"
	EnvListenAddr   = "ROUTINED_LISTEN"
	EnvRedisURL     = "ROUTINED_REDIS_URL"
	EnvRequestsDir  = "ROUTINED_REQUESTS_DIR"
	EnvPresenter    = "ROUTINED_PRESENTER"
	EnvUserID       = "ROUTINED_USER"

	// Worker defaults
	DefaultListenAddr     = "127.0.0.1:7433"
	DefaultSweepInterval  = time.Minute
	DefaultPollInterval   = time.Minute
	DefaultRegisterWait   = 5 * time.Second
	MaxMessageBytes       = 64 * 1024
	DefaultRequestsPrefix = "routined:requests"

	// Tray notifier constants
	NotifyMaxRetries       = 3
	NotifyRetryDelay       = 100 * time.Millisecond
	NotifierLockfileName   = "routined-tray.lock"
	NotificationDurationMs = 5000
	TrayAppIdentifier      = "com.julianstephens.routined"

	// Notification actions
	ActionStart   = "start"
	ActionDismiss = "dismiss"

	// App view routes opened from notifications
	RoutinesPath      = "/routines"
	RoutineStartParam = "start"

	// Default push content when a payload cannot be parsed
	DefaultPushTitle = "Routine reminder"
	DefaultPushBody  = "You have a routine waiting for you."
)
