// Command corerunner is the headless conformance runner: it drives the
// core against a ROM without a window, watching serial output for
// test-ROM pass/fail markers. Renamed from the teacher's cmd/cpurunner and
// restructured onto urfave/cli subcommands (SPEC_FULL.md §3, grounded on
// valerio-go-jeebie's cmd/jeebie/main.go), keeping the teacher's own flag
// names (-rom, -bootrom, -steps, -until, -auto, -timeout) on the "run" and
// "trace" subcommands; tracing is the "trace" subcommand, not a flag.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/frontend/terminal"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/machine"
)

func loadMachine(c *cli.Context, trace bool) (*machine.Machine, error) {
	romPath := c.String("rom")
	if romPath == "" {
		return nil, fmt.Errorf("-rom is required")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("read rom: %w", err)
	}
	var boot []byte
	if p := c.String("bootrom"); p != "" {
		boot, err = os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read bootrom: %w", err)
		}
	}

	m := machine.New(machine.Config{Trace: trace})
	if err := m.LoadCartridge(rom, boot); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return m, nil
}

var failRe = regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
var stageRe = regexp.MustCompile(`\b(\d{2}:\d{2})\b`)

// runConformance drives m one instruction at a time, watching serial
// output for pass/fail/timeout, mirroring the teacher's cpurunner loop.
func runConformance(c *cli.Context, m *machine.Machine) error {
	steps := c.Int("steps")
	until := c.String("until")
	auto := c.Bool("auto")
	timeout := c.Duration("timeout")

	var ser bytes.Buffer
	w := io.Writer(os.Stdout)
	if until != "" || auto {
		w = io.MultiWriter(os.Stdout, &ser)
	}
	m.SetSerialWriter(w)

	start := time.Now()
	var deadline time.Time
	if timeout > 0 {
		deadline = start.Add(timeout)
	}
	lastStage := ""

	for i := 0; i < steps; i++ {
		if err := m.StepInstruction(); err != nil {
			return fmt.Errorf("fault at PC=%#04x: %w", m.PC(), err)
		}

		if auto || until != "" {
			s := ser.String()
			if mm := stageRe.FindAllString(s, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			low := strings.ToLower(s)
			if strings.Contains(low, "passed") {
				fmt.Printf("\nDetected PASS in serial output.\n")
				if lastStage != "" {
					fmt.Printf("Last stage seen: %s\n", lastStage)
				}
				fmt.Printf("\nDone: steps=%d cycles=%d elapsed=%s\n", i+1, m.Cycles(), time.Since(start).Truncate(time.Millisecond))
				return nil
			}
			if auto {
				if mm := failRe.FindStringSubmatch(s); mm != nil {
					fmt.Printf("\nDetected %s in serial output.\n", mm[0])
					if lastStage != "" {
						fmt.Printf("Last stage seen: %s\n", lastStage)
					}
					fmt.Printf("\nDone: steps=%d cycles=%d elapsed=%s\n", i+1, m.Cycles(), time.Since(start).Truncate(time.Millisecond))
					os.Exit(1)
				}
			} else if strings.Contains(low, strings.ToLower(until)) {
				fmt.Printf("\nDetected %q in serial output.\n", until)
				fmt.Printf("\nDone: steps=%d cycles=%d elapsed=%s\n", i+1, m.Cycles(), time.Since(start).Truncate(time.Millisecond))
				return nil
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
			os.Exit(2)
		}
	}
	fmt.Printf("\nDone: steps=%d cycles=%d elapsed=%s\n", steps, m.Cycles(), time.Since(start).Truncate(time.Millisecond))
	return nil
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
		cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM to run from 0x0000 until FF50 disables it"},
		cli.IntFlag{Name: "steps", Value: 5_000_000, Usage: "max instructions to run"},
		cli.StringFlag{Name: "until", Value: "Passed", Usage: "stop when serial output contains this substring; empty to disable"},
		cli.BoolFlag{Name: "auto", Usage: "auto-detect 'Passed' / 'Failed N tests' and exit 0/1"},
		cli.DurationFlag{Name: "timeout", Usage: "optional wall-clock timeout (e.g. 30s); 0 disables"},
	}
}

func main() {
	app := cli.NewApp()
	app.Name = "corerunner"
	app.Usage = "headless DMG core conformance runner"

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "run a ROM headlessly, watching serial output",
			Flags: commonFlags(),
			Action: func(c *cli.Context) error {
				m, err := loadMachine(c, false)
				if err != nil {
					return err
				}
				return runConformance(c, m)
			},
		},
		{
			Name:  "trace",
			Usage: "like run, but prints the disassembled mnemonic and register dump for every instruction",
			Flags: commonFlags(),
			Action: func(c *cli.Context) error {
				m, err := loadMachine(c, true)
				if err != nil {
					return err
				}
				return runConformance(c, m)
			},
		},
		{
			Name:  "bench",
			Usage: "measure frames/sec with no serial watching",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
				cli.IntFlag{Name: "frames", Value: 600, Usage: "frames to run"},
			},
			Action: func(c *cli.Context) error {
				m, err := loadMachine(c, false)
				if err != nil {
					return err
				}
				frames := c.Int("frames")
				start := time.Now()
				for i := 0; i < frames; i++ {
					if err := m.RunUntilVBlank(); err != nil {
						return err
					}
				}
				dur := time.Since(start)
				fmt.Printf("frames=%d elapsed=%s fps=%.2f\n", frames, dur.Truncate(time.Millisecond), float64(frames)/dur.Seconds())
				return nil
			},
		},
		{
			Name:  "ascii",
			Usage: "run interactively in an ASCII-art terminal window",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "rom", Usage: "path to ROM (.gb)"},
				cli.StringFlag{Name: "bootrom", Usage: "optional DMG boot ROM"},
				cli.IntFlag{Name: "frames", Value: 0, Usage: "frames to run; 0 runs until quit"},
			},
			Action: func(c *cli.Context) error {
				m, err := loadMachine(c, false)
				if err != nil {
					return err
				}
				return terminal.Run(m, c.Int("frames"))
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
