package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/rttap/internal/config"
	"github.com/muurk/rttap/internal/coredump"
	"github.com/muurk/rttap/internal/discovery"
	"github.com/muurk/rttap/internal/elfsym"
	"github.com/muurk/rttap/internal/logging"
	"github.com/muurk/rttap/internal/rtt"
	"github.com/muurk/rttap/internal/transport"
	"github.com/muurk/rttap/internal/ui"
)

// Command flags
var (
	bridgeURL     string
	bridgeTimeout string
	elfPath       string
	cbAddrHex     string
	maxAttempts   int
	scanRanges    []string
	logChannel    int
	plainLogs     bool
	scanTimeout   string
	dumpOutput    string
	dumpFormat    string
	dumpRegions   []string
	noHalt        bool
)

func init() {
	// Common flags for all commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&bridgeURL, "bridge", "", "Probe bridge websocket URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&bridgeTimeout, "timeout", "", "Bridge operation timeout (e.g., 5s, 30s)")
	rootCmd.PersistentFlags().StringVar(&elfPath, "elf", "", "Firmware ELF for symbol resolution")

	attachCmd.Flags().StringVar(&cbAddrHex, "cb-addr", "", "Exact control block address (e.g., 0x20000a00)")
	attachCmd.Flags().IntVar(&maxAttempts, "attempts", 0, "Attach attempt budget (default from config)")
	attachCmd.Flags().StringArrayVar(&scanRanges, "scan-range", nil, "RAM range to scan, start-end (repeatable)")

	logsCmd.Flags().IntVar(&logChannel, "channel", 0, "Up channel id to stream")
	logsCmd.Flags().BoolVar(&plainLogs, "plain", false, "Write raw bytes to stdout instead of the TUI")
	logsCmd.Flags().StringVar(&cbAddrHex, "cb-addr", "", "Exact control block address")

	discoverCmd.Flags().StringVar(&scanTimeout, "scan-timeout", "5s", "How long to browse for bridges")

	coredumpCmd.Flags().StringVar(&dumpOutput, "output", "target.core", "Output file (ELF) or prefix path (raw)")
	coredumpCmd.Flags().StringVar(&dumpFormat, "format", "elf", "Dump format: elf or raw")
	coredumpCmd.Flags().StringArrayVar(&dumpRegions, "region", nil, "Memory region to capture, base:size (repeatable)")
	coredumpCmd.Flags().BoolVar(&noHalt, "no-halt", false, "Capture without halting the core (inconsistent snapshot)")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(coredumpCmd)
}

// commandContext returns a context cancelled by Ctrl-C.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// connectBridge opens the probe bridge connection, with flags overriding
// the persisted configuration.
func connectBridge(ctx context.Context) (*transport.Client, error) {
	// Silent by default; set RTTAP_LOG_LEVEL=debug for detail.
	_ = logging.InitializeFromEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	bridgeCfg, err := cfg.BridgeOptions()
	if err != nil {
		return nil, err
	}
	if bridgeURL != "" {
		bridgeCfg.URL = bridgeURL
	}
	if bridgeTimeout != "" {
		d, err := time.ParseDuration(bridgeTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value: %w", err)
		}
		bridgeCfg.Timeout = d
	}
	return transport.Dial(ctx, bridgeCfg, logging.GetLogger())
}

// buildAttachConfig merges config-file attach settings with command flags.
func buildAttachConfig() (rtt.AttachConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return rtt.AttachConfig{}, err
	}
	attachCfg, err := cfg.AttachOptions()
	if err != nil {
		return rtt.AttachConfig{}, err
	}

	if cbAddrHex != "" {
		addr, err := parseAddr(cbAddrHex)
		if err != nil {
			return rtt.AttachConfig{}, fmt.Errorf("invalid --cb-addr: %w", err)
		}
		attachCfg.ControlBlockAddr = addr
	}
	if maxAttempts > 0 {
		attachCfg.MaxAttempts = maxAttempts
	}
	for _, s := range scanRanges {
		r, err := parseScanRange(s)
		if err != nil {
			return rtt.AttachConfig{}, err
		}
		attachCfg.ScanRanges = append(attachCfg.ScanRanges, r)
	}

	firmware := elfPath
	if firmware == "" {
		firmware = cfg.FirmwareELF
	}
	if firmware != "" {
		table, err := elfsym.Load(firmware)
		if err != nil {
			return rtt.AttachConfig{}, err
		}
		attachCfg.SymbolTable = table
	}
	return attachCfg, nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseScanRange(s string) (rtt.ScanRange, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return rtt.ScanRange{}, fmt.Errorf("invalid range %q, expected start-end", s)
	}
	start, err := parseAddr(parts[0])
	if err != nil {
		return rtt.ScanRange{}, err
	}
	end, err := parseAddr(parts[1])
	if err != nil {
		return rtt.ScanRange{}, err
	}
	if end <= start {
		return rtt.ScanRange{}, fmt.Errorf("invalid range %q: end must be above start", s)
	}
	return rtt.ScanRange{Start: start, End: end}, nil
}

// discoverCmd implements the 'discover' command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find probe bridges on the local network",
	Long: `Browse mDNS for probe bridges advertising the rttap service.

Bridges found here can be passed to other commands via --bridge.`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	timeout, err := time.ParseDuration(scanTimeout)
	if err != nil {
		return fmt.Errorf("invalid scan timeout: %w", err)
	}

	ctx, cancel := commandContext()
	defer cancel()

	scanner := discovery.NewScanner()
	scanner.Timeout = timeout

	fmt.Printf("Browsing for probe bridges (%s)...\n", timeout)
	bridges, err := scanner.ScanForBridges(ctx)
	if err != nil {
		return err
	}

	if len(bridges) == 0 {
		fmt.Println("No probe bridges found.")
		return nil
	}
	for _, b := range bridges {
		fmt.Printf("  %-24s %s\n", b.Name, b.URL())
	}
	return nil
}

// resolveCmd implements the 'resolve' command
var resolveCmd = &cobra.Command{
	Use:   "resolve <address>...",
	Short: "Resolve program counters against the firmware ELF",
	Long: `Map raw program counter values to function symbol + offset.

Addresses may carry the Thumb tag bit; it is cleared before lookup.`,
	Example: `  rttap resolve --elf build/zephyr.elf 0x08000131 0x080004a0`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runResolve,
}

func runResolve(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	firmware := elfPath
	if firmware == "" {
		firmware = cfg.FirmwareELF
	}
	if firmware == "" {
		return fmt.Errorf("no firmware ELF: pass --elf or set firmware_elf in the config")
	}

	table, err := elfsym.Load(firmware)
	if err != nil {
		return err
	}

	for _, arg := range args {
		addr, err := parseAddr(arg)
		if err != nil {
			return err
		}
		if resolved, ok := table.Resolve(addr); ok {
			fmt.Printf("0x%08x  %s\n", addr, resolved)
		} else {
			fmt.Printf("0x%08x  ?? (unmapped)\n", addr)
		}
	}
	return nil
}

// attachCmd implements the 'attach' command
var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to the target's RTT control block",
	Long: `Locate and validate the RTT control block, then report its address
and the discovered channels.

Discovery tries an exact-address probe first (explicit --cb-addr, or the
control block symbol resolved from the firmware ELF), then ranged scans,
then a full RAM scan, retrying with backoff while the target boots.`,
	Example: `  # ELF-assisted attach
  rttap attach --elf build/zephyr.elf

  # Probe a known address only
  rttap attach --cb-addr 0x20000a00

  # Scan a custom RAM window
  rttap attach --scan-range 0x20000000-0x20008000`,
	RunE: runAttach,
}

func runAttach(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ui.PrintCommandHeader("RTT Attach", "rttap attach", map[string]string{
		"Bridge": bridgeDisplay(),
		"ELF":    orNone(elfPath),
	})

	ctx, cancel := commandContext()
	defer cancel()

	client, err := connectBridge(ctx)
	if err != nil {
		ui.PrintFailure("Attach failed", err, []string{
			"Check the bridge is running: rttap discover",
			"Start a simulated bridge with: rttap-bridged",
		})
		return err
	}
	defer client.Close()

	attachCfg, err := buildAttachConfig()
	if err != nil {
		ui.PrintFailure("Attach failed", err, nil)
		return err
	}

	session := rtt.NewSession(client, logging.GetLogger())
	if err := session.Attach(ctx, attachCfg); err != nil {
		ui.PrintFailure("Attach failed", err, []string{
			"If the target just reset, raise the budget: --attempts 30",
			"Confirm the firmware initializes RTT at boot",
		})
		return err
	}
	defer session.Detach()

	details := map[string]string{
		"Control block": fmt.Sprintf("0x%08x", session.ControlBlockAddr()),
	}
	for _, ch := range session.Channels(rtt.Up) {
		details[fmt.Sprintf("Up %d", ch.ID)] = channelDisplay(ch)
	}
	for _, ch := range session.Channels(rtt.Down) {
		details[fmt.Sprintf("Down %d", ch.ID)] = channelDisplay(ch)
	}
	ui.PrintSuccess("Attached", details)
	return nil
}

func channelDisplay(ch rtt.Channel) string {
	name := ch.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Sprintf("%s, %d byte buffer @ 0x%08x", name, ch.BufferSize, ch.BufferAddr)
}

func bridgeDisplay() string {
	if bridgeURL != "" {
		return bridgeURL
	}
	if cfg, err := config.Load(); err == nil && cfg.Bridge.URL != "" {
		return cfg.Bridge.URL
	}
	return transport.DefaultConfig().URL
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// logsCmd implements the 'logs' command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Stream an RTT up channel",
	Long: `Attach and continuously drain an up (target-to-host) channel.

By default a full-screen viewer shows the stream; use --plain to write
raw bytes to stdout for piping.`,
	Example: `  rttap logs --elf build/zephyr.elf
  rttap logs --channel 1 --plain > trace.bin`,
	RunE: runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	ctx, cancel := commandContext()
	defer cancel()

	client, err := connectBridge(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	attachCfg, err := buildAttachConfig()
	if err != nil {
		return err
	}

	session := rtt.NewSession(client, logging.GetLogger())
	if err := session.Attach(ctx, attachCfg); err != nil {
		return err
	}
	defer session.Detach()

	if plainLogs {
		return streamPlain(ctx, session)
	}

	title := fmt.Sprintf("rtt up %d @ 0x%08x", logChannel, session.ControlBlockAddr())
	return ui.RunLogViewer(title, func(max int) ([]byte, error) {
		return session.ReadUp(logChannel, max)
	})
}

// streamPlain drains the channel to stdout until interrupted. Polling is
// the only option: RTT has no host-side notification mechanism.
func streamPlain(ctx context.Context, session *rtt.Session) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			data, err := session.ReadUp(logChannel, 4096)
			if err != nil {
				return err
			}
			if len(data) > 0 {
				if _, err := os.Stdout.Write(data); err != nil {
					return err
				}
			}
		}
	}
}

// coredumpCmd implements the 'coredump' command
var coredumpCmd = &cobra.Command{
	Use:   "coredump",
	Short: "Capture registers and memory into a core file",
	Long: `Halt the target, snapshot the 17 core registers and the requested
memory regions, and serialize them as an ELF32 core object any ELF-aware
debugger can open. The core is resumed afterwards.

The raw format instead writes a JSON manifest plus one .bin file per
region for tooling that does not read ELF.`,
	Example: `  # SRAM snapshot as an ELF core
  rttap coredump --region 0x20000000:65536 --output target.core

  # Register-only dump
  rttap coredump --output regs.core

  # Raw manifest + binaries
  rttap coredump --format raw --region 0x20000000:4096 --output dumps/target`,
	RunE: runCoredump,
}

func runCoredump(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if dumpFormat != "elf" && dumpFormat != "raw" {
		return fmt.Errorf("invalid --format %q: must be elf or raw", dumpFormat)
	}

	ui.PrintCommandHeader("Core Dump", "rttap coredump", map[string]string{
		"Bridge":  bridgeDisplay(),
		"Format":  dumpFormat,
		"Output":  dumpOutput,
		"Regions": strconv.Itoa(len(dumpRegions)),
	})

	ctx, cancel := commandContext()
	defer cancel()

	client, err := connectBridge(ctx)
	if err != nil {
		ui.PrintFailure("Core dump failed", err, []string{
			"Check the bridge is running: rttap discover",
		})
		return err
	}
	defer client.Close()

	if !noHalt {
		if err := client.Halt(); err != nil {
			ui.PrintFailure("Core dump failed", err, []string{
				"The core must halt for a consistent snapshot; use --no-halt to force",
			})
			return err
		}
		defer func() {
			if err := client.Run(); err != nil {
				logging.Error("failed to resume target after dump")
			}
		}()
	}

	rawRegs, err := client.ReadRegisters()
	if err != nil {
		ui.PrintFailure("Core dump failed", err, nil)
		return err
	}
	regs, err := coredump.RegistersFromSlice(rawRegs)
	if err != nil {
		ui.PrintFailure("Core dump failed", err, nil)
		return err
	}

	regions := make([]coredump.Region, 0, len(dumpRegions))
	for _, spec := range dumpRegions {
		region, err := captureRegion(client, spec)
		if err != nil {
			ui.PrintFailure("Core dump failed", err, nil)
			return err
		}
		regions = append(regions, region)
	}

	var outPath string
	switch dumpFormat {
	case "elf":
		outPath = dumpOutput
		if err := os.WriteFile(outPath, coredump.Encode(regs, regions), 0o644); err != nil {
			ui.PrintFailure("Core dump failed", err, nil)
			return err
		}
	case "raw":
		dir := filepath.Dir(dumpOutput)
		prefix := filepath.Base(dumpOutput)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			ui.PrintFailure("Core dump failed", err, nil)
			return err
		}
		outPath, err = coredump.WriteRaw(dir, prefix, regs, regions)
		if err != nil {
			ui.PrintFailure("Core dump failed", err, nil)
			return err
		}
	}

	totalBytes := 0
	for _, r := range regions {
		totalBytes += len(r.Data)
	}
	ui.PrintSuccess("Core dump written", map[string]string{
		"File":    outPath,
		"PC":      fmt.Sprintf("0x%08x", regs[coredump.RegPC]),
		"SP":      fmt.Sprintf("0x%08x", regs[coredump.RegSP]),
		"Regions": fmt.Sprintf("%d (%d bytes)", len(regions), totalBytes),
	})
	return nil
}

// captureRegion reads one base:size region through the bridge in bounded
// chunks so a single frame never exceeds the payload limit.
func captureRegion(client *transport.Client, spec string) (coredump.Region, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return coredump.Region{}, fmt.Errorf("invalid region %q, expected base:size", spec)
	}
	base, err := parseAddr(parts[0])
	if err != nil {
		return coredump.Region{}, err
	}
	size, err := strconv.ParseUint(parts[1], 0, 32)
	if err != nil {
		return coredump.Region{}, fmt.Errorf("invalid region size %q: %w", parts[1], err)
	}

	const chunk = 16 * 1024
	data := make([]byte, 0, size)
	for off := uint32(0); off < uint32(size); {
		n := uint32(chunk)
		if remaining := uint32(size) - off; n > remaining {
			n = remaining
		}
		piece, err := client.ReadMemory(base+off, int(n))
		if err != nil {
			return coredump.Region{}, err
		}
		data = append(data, piece...)
		off += n
	}
	return coredump.Region{Base: base, Data: data}, nil
}
