//go:build !no_psi

package main

import "pkt.systems/psi"

// psi reaps children and forwards signals when consulate runs as PID 1.
func main() {
	psi.Run(submain)
}
