package constants

// Trigger is a background wake signal delivered to the notification scheduler.
type Trigger string

const (
	TriggerInstall           Trigger = "install"
	TriggerActivate          Trigger = "activate"
	TriggerPush              Trigger = "push"
	TriggerPeriodicSync      Trigger = "periodic-sync"
	TriggerSync              Trigger = "sync"
	TriggerMessage           Trigger = "message"
	TriggerNotificationClick Trigger = "notificationclick"

	// Sync tags
	TagCheckRoutines = "check-routines"
	TagSyncRoutines  = "sync-routines"
)
