package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"laundry-kiosk/internal/db"
	"laundry-kiosk/internal/identity"
	"laundry-kiosk/internal/model"
	"laundry-kiosk/internal/store"
)

func newInventoryCommand(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Print the inventory persisted in the profile store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}

			gormDB, err := db.Init(&cfg.Database, log)
			if err != nil {
				return err
			}
			if sqlDB, err := gormDB.DB(); err == nil {
				defer sqlDB.Close()
			}
			s := store.NewGormStore(gormDB)

			var inv model.Inventory
			found, err := store.GetJSON(cmd.Context(), s, store.KeyInventory, &inv)
			if err != nil {
				return err
			}
			if !found {
				if inv, err = cfg.Inventory(); err != nil {
					return err
				}
				log.Info().Msg("no inventory persisted yet, showing the catalog")
			}

			var b *model.ActiveBooking
			var active model.ActiveBooking
			if ok, err := store.GetJSON(cmd.Context(), s, store.KeyActiveBooking, &active); err == nil && ok {
				b = &active
			}
			id, _, _ := s.Get(cmd.Context(), store.KeyIdentity)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"identity": id, "machines": inv, "booking": b})
			}
			return printInventory(cmd.OutOrStdout(), id, inv, b)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printInventory(w io.Writer, id string, inv model.Inventory, b *model.ActiveBooking) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSTATUS\tOWNER\tREMAINING")
	for _, m := range inv {
		owner, remaining := "-", "-"
		if o := m.OwnerID(); o != "" {
			owner = "…" + identity.Tail(o)
			if o == id {
				owner += " (this kiosk)"
			}
		}
		if r := m.RemainingMinutes(); r != nil {
			remaining = fmt.Sprintf("%d min", *r)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Type, m.Status(), owner, remaining)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if b != nil {
		_, err := fmt.Fprintf(w, "\nactive booking: %s until %s\n", b.MachineID, b.EndsAt().Format("15:04:05"))
		return err
	}
	return nil
}

func newResetCommand(root *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the catalog inventory and broadcast it to the other kiosks",
		Long: `reset drops this profile's active booking, replaces the persisted
inventory with the configured catalog and publishes the result on the sync
channel, so every kiosk of the facility starts over from the catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset discards every booking in the facility; pass --yes to continue")
			}
			cfg, log, err := root.load()
			if err != nil {
				return err
			}

			k, err := openKiosk(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer k.Close()

			if err := k.engine.Reset(cmd.Context()); err != nil {
				return err
			}
			log.Info().Int("machines", len(k.engine.Inventory())).Msg("inventory reset to catalog")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
