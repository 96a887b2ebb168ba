package main

import (
	"time"
)

func main() {
	// Allow the console to come up before we print.
	time.Sleep(2 * time.Second)
	println("boot")

	// Periodic liveness marker; the real board entry is cmd/josh-demo.
	tick := time.NewTicker(1 * time.Second)
	defer tick.Stop()

	for t := range tick.C {
		println(t.Format("15:04:05"), "Heartbeat")
	}
}
