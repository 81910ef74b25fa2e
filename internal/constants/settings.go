package constants

const (
	// Settings keys
	SettingTimezone       = "timezone"
	SettingNotifyStart    = "notify_start"
	SettingNotifyEnd      = "notify_end"
	SettingStartOffsetMin = "start_offset_min"
	SettingEndOffsetMin   = "end_offset_min"

	// Default Settings Values
	DefaultTimezone       = "Local" // Use system local timezone by default
	DefaultNotifyStart    = true
	DefaultNotifyEnd      = true
	DefaultStartOffsetMin = 0
	DefaultEndOffsetMin   = 0
)
