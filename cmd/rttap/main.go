// Rttap attaches to a live target's RTT control block through a debug-probe
// bridge for log streaming, symbol resolution, and post-mortem core dumps.
//
// The tool talks to targets through a probe bridge daemon (OpenOCD-style,
// or the bundled rttap-bridged simulator) and never owns USB/SWD hardware
// itself:
//
//   - Control block discovery and channel enumeration
//   - Live log streaming from RTT up channels
//   - Program counter resolution against the firmware ELF
//   - ELF32 core file and raw dump generation
//
// See 'rttap --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/rttap/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rttap",
	Short: "RTT introspection and core dump utility",
	Long: `Host-side RTT introspection for embedded targets.

rttap locates and validates the RTT control block in target RAM, streams
channel data, resolves program counters against the firmware ELF, and
captures CPU/memory state into standard core files.

All target access goes through a probe bridge daemon; start a simulated
one for development with 'rttap-bridged'.`,
	Version: version.Version,
	Example: `  # Find probe bridges on the local network
  rttap discover

  # Attach and list RTT channels
  rttap attach --elf build/zephyr.elf

  # Stream the terminal up channel
  rttap logs

  # Capture a core dump of the SRAM window
  rttap coredump --region 0x20000000:65536 --output target.core`,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rttap %s (commit: %s)\n", version.Version, version.Commit)
	},
}
