package main

import (
	"TrackPulse/cmd"
)

func main() {
	cmd.Execute()
}
