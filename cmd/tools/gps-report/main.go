// Command gps-report renders GPS receiver quality reports for recorded
// sessions: a text summary plus PNG plots of satellite counts, dilution of
// precision, and ground speed over the session.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/corvid-aero/groundstation/internal/gpslog"
)

func main() {
	dbPath := flag.String("db", "gps_quality.db", "path to the GPS quality database")
	sessionID := flag.String("session", "", "session id to report on (default: most recent)")
	outDir := flag.String("o", "gps-reports", "output directory for plot files")
	list := flag.Bool("list", false, "list recent sessions and exit")
	limit := flag.Int("n", 20, "number of sessions to list")
	flag.Parse()

	if _, err := os.Stat(*dbPath); err != nil {
		log.Fatalf("database %s not accessible: %v", *dbPath, err)
	}

	store, err := gpslog.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	if *list {
		if err := listSessions(store, *limit); err != nil {
			log.Fatalf("failed to list sessions: %v", err)
		}
		return
	}

	id := *sessionID
	if id == "" {
		sessions, err := store.Sessions(1)
		if err != nil {
			log.Fatalf("failed to look up sessions: %v", err)
		}
		if len(sessions) == 0 {
			log.Fatal("no sessions recorded; run the station with a GPS receiver first")
		}
		id = sessions[0].ID
	}

	report, err := store.SessionReport(id)
	if err != nil {
		log.Fatalf("failed to build report for session %s: %v", id, err)
	}
	snaps, err := store.Snapshots(id)
	if err != nil {
		log.Fatalf("failed to load snapshots: %v", err)
	}

	printReport(report)

	if len(snaps) == 0 {
		log.Print("no snapshots recorded; skipping plots")
		return
	}

	files, err := renderSessionPlots(report, snaps, *outDir)
	if err != nil {
		log.Fatalf("failed to render plots: %v", err)
	}
	for _, f := range files {
		log.Printf("✓ Created: %s", f)
	}
}

func listSessions(store *gpslog.Store, limit int) error {
	sessions, err := store.Sessions(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded")
		return nil
	}

	fmt.Printf("%-36s  %-8s  %-19s  %s\n", "SESSION", "SOURCE", "STARTED", "DURATION")
	for _, sess := range sessions {
		dur := "open"
		if sess.EndedAt != nil {
			dur = sess.EndedAt.Sub(sess.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%-36s  %-8s  %-19s  %s\n",
			sess.ID, sess.Source, sess.StartedAt.Format("2006-01-02 15:04:05"), dur)
	}
	return nil
}

func printReport(report gpslog.SessionReport) {
	fmt.Println("=== GPS Session Report ===")
	fmt.Printf("Session:    %s (%s)\n", report.Session.ID, report.Session.Source)
	fmt.Printf("Started:    %s\n", report.Session.StartedAt.Format(time.RFC3339))
	fmt.Printf("Duration:   %s\n", report.Duration.Round(time.Second))
	fmt.Printf("Snapshots:  %d\n", report.Snapshots)
	fmt.Printf("Satellites: %.1f mean\n", report.MeanSatellites)
	fmt.Printf("HDOP:       %.2f mean (%.2f..%.2f), rating %s\n",
		report.MeanHDOP, report.MinHDOP, report.MaxHDOP, report.HDOPRating)
	fmt.Printf("Max speed:  %.1f m/s\n", report.MaxSpeedMPS)
	if len(report.FixModes) > 0 {
		fmt.Printf("Fix modes:  %s\n", formatFixModes(report.FixModes))
	}
}

// formatFixModes renders the fix mode counts in a stable order.
func formatFixModes(modes map[string]int) string {
	labels := make([]string, 0, len(modes))
	for label := range modes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := ""
	for i, label := range labels {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%d", label, modes[label])
	}
	return out
}
