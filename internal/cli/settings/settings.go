package settings

import (
	"fmt"

	"github.com/julianstephens/routined/internal/cli"
	"github.com/julianstephens/routined/internal/utils"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Timezone       *string `help:"IANA timezone used to place routines in the day (or Local)."`
	NotifyStart    *bool   `help:"Schedule a notification when a routine starts."`
	NotifyEnd      *bool   `help:"Schedule a notification when a routine ends."`
	StartOffsetMin *int    `help:"Minutes before a routine starts to notify."`
	EndOffsetMin   *int    `help:"Minutes before a routine ends to notify."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if c.List {
		ctx.Println(cli.HeaderStyle.Render("Current Settings:"))
		ctx.Printf("  Timezone:        %s\n", settings.Timezone)
		ctx.Printf("  Notify Start:    %v\n", settings.NotifyStart)
		ctx.Printf("  Notify End:      %v\n", settings.NotifyEnd)
		ctx.Printf("  Start Offset:    %d min\n", settings.StartOffsetMin)
		ctx.Printf("  End Offset:      %d min\n", settings.EndOffsetMin)
		return nil
	}

	updated := false
	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return fmt.Errorf("unknown timezone %q", *c.Timezone)
		}
		settings.Timezone = *c.Timezone
		updated = true
	}
	if c.NotifyStart != nil {
		settings.NotifyStart = *c.NotifyStart
		updated = true
	}
	if c.NotifyEnd != nil {
		settings.NotifyEnd = *c.NotifyEnd
		updated = true
	}
	if c.StartOffsetMin != nil {
		if *c.StartOffsetMin < 0 {
			return fmt.Errorf("start offset must not be negative")
		}
		settings.StartOffsetMin = *c.StartOffsetMin
		updated = true
	}
	if c.EndOffsetMin != nil {
		if *c.EndOffsetMin < 0 {
			return fmt.Errorf("end offset must not be negative")
		}
		settings.EndOffsetMin = *c.EndOffsetMin
		updated = true
	}

	if !updated {
		ctx.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}
	if err := ctx.Store.SaveSettings(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	ctx.Println("Settings updated successfully.")
	return nil
}
