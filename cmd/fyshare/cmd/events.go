package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/fyshare/fyshare/storage"
	bboltstorage "github.com/fyshare/fyshare/storage/bbolt"
)

var (
	eventsJournal string
	eventsLimit   int
	eventsJSON    bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print the security event journal, newest first",
	Long: `Reads the event journal written by "fyshare serve" when journal_path is
configured. The journal is locked while a server is running.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().StringVar(&eventsJournal, "journal", "", "Journal file (default: journal_path from the config)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events, 0 for all")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output events as JSON")
}

func runEvents(cmd *cobra.Command, args []string) error {
	path := eventsJournal
	if path == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path = cfg.JournalPath
	}
	if path == "" {
		return errors.New("no journal configured (set journal_path or pass --journal)")
	}

	j, err := bboltstorage.NewJournalFromFile(path, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer j.Close()

	events, err := j.List(eventsLimit)
	if err != nil {
		return fmt.Errorf("reading journal: %w", err)
	}
	return printEvents(cmd.OutOrStdout(), events, eventsJSON)
}

func printEvents(w io.Writer, events []storage.Event, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if events == nil {
			events = []storage.Event{}
		}
		return enc.Encode(events)
	}

	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "No events recorded.")
		return err
	}
	for _, evt := range events {
		var b strings.Builder
		fmt.Fprintf(&b, "%s  %-5s  %-20s", evt.Time.Local().Format(time.DateTime), evt.Level, evt.Type)
		if evt.Address != "" {
			fmt.Fprintf(&b, "  %s", evt.Address)
		}
		for _, k := range slices.Sorted(maps.Keys(evt.Attrs)) {
			fmt.Fprintf(&b, "  %s=%s", k, evt.Attrs[k])
		}
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}
