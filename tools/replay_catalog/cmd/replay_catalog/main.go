// Command replay_catalog lists recorded hovercar sessions.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	replaycatalog "hovercar/core/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", "replays", "directory containing recorded sessions")
	vehicle := flag.String("vehicle", "", "only list sessions recorded for this vehicle id")
	digest := flag.String("digest", "", "only list sessions recorded with this tuning digest")
	byTuning := flag.Bool("by-tuning", false, "print totals per tuning digest instead of sessions")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replaycatalog.List(*root, replaycatalog.Filter{VehicleID: *vehicle, TuningDigest: *digest})
	if err != nil {
		fail(err)
	}

	if *byTuning {
		summaries := replaycatalog.Summarise(entries)
		if *jsonFlag {
			payload, err := json.MarshalIndent(summaries, "", "  ")
			if err != nil {
				fail(err)
			}
			fmt.Println(string(payload))
			return
		}
		for _, summary := range summaries {
			fmt.Printf("%s %s: %d sessions, %d frames, %d events, %v recorded\n",
				summary.TuningDigest, summary.TuningName, summary.Sessions, summary.Frames, summary.Events, summary.Recorded)
		}
		return
	}

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fail(err)
		}
		fmt.Println(string(payload))
		return
	}
	for _, entry := range entries {
		header := entry.Header
		fmt.Printf("%s\n", entry.BundleDir)
		fmt.Printf("  session %s vehicle %s\n", header.SessionID, header.VehicleID)
		fmt.Printf("  tuning %s (%s) at %dHz\n", header.TuningName, header.TuningDigest, header.TickRateHz)
		fmt.Printf("  %d frames, %d events, %v simulated\n", header.Frames, header.Events, entry.Duration)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "replay_catalog:", err)
	os.Exit(1)
}
