package models

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/routined/internal/constants"
)

// Settings represents per-install notification settings
type Settings struct {
	Timezone       string `json:"timezone"`         // IANA timezone name or "Local"
	NotifyStart    bool   `json:"notify_start"`     // schedule a notification when a routine starts
	NotifyEnd      bool   `json:"notify_end"`       // schedule a notification when a routine ends
	StartOffsetMin int    `json:"start_offset_min"` // minutes before start to notify
	EndOffsetMin   int    `json:"end_offset_min"`   // minutes before end to notify
}

// DefaultSettings returns the settings written by init.
func DefaultSettings() Settings {
	return Settings{
		Timezone:       constants.DefaultTimezone,
		NotifyStart:    constants.DefaultNotifyStart,
		NotifyEnd:      constants.DefaultNotifyEnd,
		StartOffsetMin: constants.DefaultStartOffsetMin,
		EndOffsetMin:   constants.DefaultEndOffsetMin,
	}
}

// MapToSettings converts stored key/value rows into Settings. Missing keys
// keep their defaults.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := DefaultSettings()

	for key, value := range data {
		switch key {
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingNotifyStart:
			settings.NotifyStart = value == "true"
		case constants.SettingNotifyEnd:
			settings.NotifyEnd = value == "true"
		case constants.SettingStartOffsetMin:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing %s: %w", key, err)
			}
			settings.StartOffsetMin = n
		case constants.SettingEndOffsetMin:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing %s: %w", key, err)
			}
			settings.EndOffsetMin = n
		}
	}
	return settings, nil
}

// SettingsToMap converts Settings into key/value rows.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingTimezone:       settings.Timezone,
		constants.SettingNotifyStart:    strconv.FormatBool(settings.NotifyStart),
		constants.SettingNotifyEnd:      strconv.FormatBool(settings.NotifyEnd),
		constants.SettingStartOffsetMin: strconv.Itoa(settings.StartOffsetMin),
		constants.SettingEndOffsetMin:   strconv.Itoa(settings.EndOffsetMin),
	}
}
