// Package interactive provides the command shell for blelink-sim.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/blelink-protocol/blelink-go/internal/testharness/mock"
	"github.com/blelink-protocol/blelink-go/pkg/command"
	"github.com/blelink-protocol/blelink-go/pkg/frame"
	"github.com/blelink-protocol/blelink-go/pkg/registry"
	"github.com/blelink-protocol/blelink-go/pkg/transport"
)

// Shell is the interactive simulator front end.
type Shell struct {
	transport  *mock.Transport
	registry   *registry.Registry
	cmdTimeout time.Duration
	rl         *readline.Instance
}

// New creates a shell bound to the given simulated transport. The
// registry is attached later with SetRegistry, after logging has been
// wired through the shell's output.
func New(tr *mock.Transport) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "blelink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{transport: tr, rl: rl}, nil
}

// SetRegistry attaches the registry the shell operates on.
func (s *Shell) SetRegistry(r *registry.Registry, cmdTimeout time.Duration) {
	s.registry = r
	s.cmdTimeout = cmdTimeout
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "add":
			s.cmdAdd(args)

		case "scan":
			s.report(s.registry.StartScanning())

		case "stopscan":
			s.report(s.registry.StopScanning())

		case "list", "ls":
			s.cmdList()

		case "connect", "c":
			s.cmdConnect(args)

		case "disconnect", "d":
			s.cmdDisconnect(args)

		case "send":
			s.cmdSend(args)

		case "rssi":
			s.cmdRSSI(args)

		case "mute":
			s.cmdMute(args, true)

		case "unmute":
			s.cmdMute(args, false)

		case "radio":
			s.cmdRadio(args)

		case "status":
			s.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
BLELink Simulator Commands:
  Peripherals:
    add <id> <name>      - Add a simulated peripheral (answers all frames)
    rssi <id> <dbm>      - Set a peripheral's signal strength
    mute <id>            - Stop answering frames (heartbeats start missing)
    unmute <id>          - Resume answering frames

  Registry:
    scan / stopscan      - Control discovery
    list                 - List discovered devices
    connect <id>         - Connect to a device
    disconnect <id>      - Disconnect a device
    send <id> <opcode> [payload-hex] - Send a command
    status               - Show registry status
    radio on|off         - Flip the simulated radio power

  quit                   - Exit`)
}

// responder answers every complete frame with an empty frame of the same
// opcode, like a peripheral acknowledging each command.
func responder() func([]byte) []byte {
	var buf []byte
	return func(data []byte) []byte {
		buf = append(buf, data...)
		var out []byte
		for {
			opcode, _, consumed, complete := frame.Decode(buf)
			if consumed > 0 {
				buf = buf[consumed:]
			}
			if !complete {
				break
			}
			chunks, _ := frame.Encode(opcode, nil)
			for _, c := range chunks {
				out = append(out, c...)
			}
		}
		return out
	}
}

func (s *Shell) cmdAdd(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: add <id> <name>")
		return
	}
	s.transport.AddPeripheral(&mock.Peripheral{
		ID:        args[0],
		Name:      strings.Join(args[1:], " "),
		RSSI:      -60,
		Responder: responder(),
	})
	fmt.Fprintf(s.rl.Stdout(), "Added peripheral %s\n", args[0])
}

func (s *Shell) cmdList() {
	devices := s.registry.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices discovered (try 'scan' after 'add')")
		return
	}
	for _, d := range devices {
		q := d.Quality()
		fmt.Fprintf(s.rl.Stdout(), "  %-12s %-20s %-13s type=%s rssi=%d healthy=%v\n",
			d.ID(), d.Name(), d.State(), d.Type(), q.RSSI, q.Healthy())
	}
}

func (s *Shell) cmdConnect(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: connect <id>")
		return
	}
	s.report(s.registry.Connect(args[0]))
}

func (s *Shell) cmdDisconnect(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: disconnect <id>")
		return
	}
	s.report(s.registry.Disconnect(args[0]))
}

func (s *Shell) cmdSend(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: send <id> <opcode> [payload-hex]")
		return
	}
	d, ok := s.registry.Device(args[0])
	if !ok {
		fmt.Fprintf(s.rl.Stdout(), "Unknown device: %s\n", args[0])
		return
	}
	opcode, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid opcode: %s\n", args[1])
		return
	}
	var payload []byte
	if len(args) > 2 {
		payload, err = parseHex(args[2])
		if err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Invalid payload: %v\n", err)
			return
		}
	}

	cmd := command.New(byte(opcode), payload, true)
	cmd.Timeout = s.cmdTimeout
	done := make(chan command.Result, 1)
	start := time.Now()
	d.SendCommand(cmd, func(res command.Result) { done <- res })

	res := <-done
	elapsed := time.Since(start).Round(time.Millisecond)
	switch res.Status {
	case command.StatusSuccess:
		fmt.Fprintf(s.rl.Stdout(), "OK in %v, payload=%x\n", elapsed, res.Payload)
	case command.StatusTimeout:
		fmt.Fprintf(s.rl.Stdout(), "Timed out after %v\n", elapsed)
	default:
		fmt.Fprintf(s.rl.Stdout(), "Failed: %s\n", res.Failure)
	}
}

func (s *Shell) cmdRSSI(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: rssi <id> <dbm>")
		return
	}
	dbm, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid RSSI: %s\n", args[1])
		return
	}
	s.transport.SimulateRSSI(args[0], dbm)
}

func (s *Shell) cmdMute(args []string, mute bool) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: mute|unmute <id>")
		return
	}
	if !s.transport.SetMuted(args[0], mute) {
		fmt.Fprintf(s.rl.Stdout(), "Unknown peripheral: %s\n", args[0])
	}
}

func (s *Shell) cmdRadio(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: radio on|off")
		return
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.transport.SetRadioState(transport.RadioPoweredOn)
	case "off":
		s.transport.SetRadioState(transport.RadioPoweredOff)
	default:
		fmt.Fprintln(s.rl.Stdout(), "Usage: radio on|off")
	}
}

func (s *Shell) cmdStatus() {
	out := s.rl.Stdout()
	fmt.Fprintf(out, "Radio:      %s\n", s.registry.RadioState())
	fmt.Fprintf(out, "Discovered: %d\n", len(s.registry.Devices()))
	fmt.Fprintf(out, "Connected:  %d\n", len(s.registry.ConnectedDevices()))
	for _, d := range s.registry.ConnectedDevices() {
		q := d.Quality()
		fmt.Fprintf(out, "  %-12s %-13s rssi=%d missed=%d success=%.0f%% healthy=%v\n",
			d.ID(), d.State(), q.RSSI, q.MissedHeartbeats, q.SuccessRate*100, q.Healthy())
	}
}

func (s *Shell) report(err error) {
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
	}
}

func parseHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
