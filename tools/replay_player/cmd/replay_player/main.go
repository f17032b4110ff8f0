// Command replay_player summarises a recorded hovercar session and can dump its frames.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	replayplayer "hovercar/core/tools/replay_player"
)

func main() {
	path := flag.String("path", "", "session directory or any file inside it")
	frames := flag.Bool("frames", false, "print every decoded frame as a JSON line after the summary")
	quiet := flag.Bool("quiet", false, "skip the summary; useful with -frames")
	flag.Parse()

	if *path == "" {
		exit(1, fmt.Errorf("path flag is required"))
	}
	summary, err := replayplayer.ReplayBundle(*path)
	if err != nil {
		exit(2, err)
	}

	if !*quiet {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			exit(3, err)
		}
	}
	if !*frames {
		return
	}
	//1.- One protojson document per line so the dump can be piped into jq.
	for _, frame := range summary.DecodedFrames() {
		line, err := frame.JSON()
		if err != nil {
			exit(3, err)
		}
		fmt.Println(string(line))
	}
}

func exit(code int, err error) {
	fmt.Fprintln(os.Stderr, "replay_player:", err)
	os.Exit(code)
}
