package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/aggregator"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/ntrip"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

// repl is a local command-source: an interactive line-oriented control
// surface over the same Aggregator operations an external REST handler
// would call.
type repl struct {
	agg     *aggregator.Aggregator
	ctx     context.Context
	reader  *bufio.Reader
	log     logrus.FieldLogger
	running bool
}

func newREPL(ctx context.Context, agg *aggregator.Aggregator, log logrus.FieldLogger) *repl {
	return &repl{agg: agg, ctx: ctx, reader: bufio.NewReader(os.Stdin), log: log}
}

func (r *repl) start() {
	r.running = true
	r.showWelcome()
	r.mainLoop()
}

func (r *repl) showWelcome() {
	fmt.Println("\nCNG-RTK-HUB control console")
	fmt.Println("---------------------------")
	r.showHelp()
}

func (r *repl) showHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  add_receiver <id> <ubx|unicore> <path> <baud>")
	fmt.Println("  connect_receiver <id>")
	fmt.Println("  remove_receiver <id>")
	fmt.Println("  start_streams            - start streaming on every connected receiver")
	fmt.Println("  stop_streams             - stop NTRIP then disconnect every receiver")
	fmt.Println("  inject <id> <hex bytes>  - forward raw bytes to a receiver")
	fmt.Println("  add_mount <host> <port> <mountpoint> <user> <pass> <priority> <enabled>")
	fmt.Println("  start_ntrip")
	fmt.Println("  stop_ntrip")
	fmt.Println("  status")
	fmt.Println("  help")
	fmt.Println("  exit")
}

func (r *repl) mainLoop() {
	for r.running {
		fmt.Print("\n> ")
		line, _ := r.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" {
			fmt.Println("Exiting...")
			r.running = false
			return
		}
		r.handleCommand(line)
	}
}

func (r *repl) handleCommand(line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help":
		r.showHelp()
	case "add_receiver":
		r.cmdAddReceiver(args)
	case "connect_receiver":
		r.cmdConnectReceiver(args)
	case "remove_receiver":
		r.cmdRemoveReceiver(args)
	case "start_streams":
		r.agg.StartAllStreams(r.ctx)
		fmt.Println("streams started for every connected receiver")
	case "stop_streams":
		r.agg.StopAllStreams()
		fmt.Println("streams and NTRIP stopped")
	case "inject":
		r.cmdInject(args)
	case "add_mount":
		r.cmdAddMount(args)
	case "start_ntrip":
		ok := r.agg.StartNTRIP(r.ctx)
		fmt.Printf("ntrip started: %v\n", ok)
	case "stop_ntrip":
		r.agg.StopNTRIP()
		fmt.Println("ntrip stopped")
	case "status":
		r.cmdStatus()
	default:
		fmt.Printf("unknown command: %s (type 'help')\n", cmd)
	}
}

func (r *repl) cmdAddReceiver(args []string) {
	if len(args) != 4 {
		fmt.Println("usage: add_receiver <id> <ubx|unicore> <path> <baud>")
		return
	}
	baud, err := strconv.Atoi(args[3])
	if err != nil {
		fmt.Printf("invalid baud rate: %s\n", args[3])
		return
	}
	ok := r.agg.AddReceiver(args[0], receiver.Variant(args[1]), args[2], baud)
	fmt.Printf("add_receiver %s: %v\n", args[0], ok)
}

func (r *repl) cmdConnectReceiver(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: connect_receiver <id>")
		return
	}
	if err := r.agg.ConnectReceiver(r.ctx, args[0]); err != nil {
		fmt.Printf("connect_receiver %s failed: %v\n", args[0], err)
		return
	}
	fmt.Printf("connect_receiver %s: connected\n", args[0])
}

func (r *repl) cmdRemoveReceiver(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: remove_receiver <id>")
		return
	}
	fmt.Printf("remove_receiver %s: %v\n", args[0], r.agg.RemoveReceiver(args[0]))
}

func (r *repl) cmdInject(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: inject <id> <hex bytes>")
		return
	}
	data, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Printf("invalid hex payload: %v\n", err)
		return
	}
	fmt.Printf("inject %s: %v\n", args[0], r.agg.InjectTo(args[0], data))
}

func (r *repl) cmdAddMount(args []string) {
	if len(args) != 7 {
		fmt.Println("usage: add_mount <host> <port> <mountpoint> <user> <pass> <priority> <enabled>")
		return
	}
	port, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("invalid port: %s\n", args[1])
		return
	}
	priority, err := strconv.Atoi(args[5])
	if err != nil {
		fmt.Printf("invalid priority: %s\n", args[5])
		return
	}
	enabled, err := strconv.ParseBool(args[6])
	if err != nil {
		fmt.Printf("invalid enabled flag: %s\n", args[6])
		return
	}
	r.agg.AddMount(ntrip.MountDescriptor{
		Host: args[0], Port: port, Mountpoint: args[2],
		Username: args[3], Password: args[4], Priority: priority, Enabled: enabled,
	})
	fmt.Printf("add_mount %s: added\n", args[2])
}

func (r *repl) cmdStatus() {
	status := r.agg.Status()
	fmt.Println("Receivers:")
	for _, rs := range status.Receivers {
		fmt.Printf("  %s  variant=%s  path=%s  baud=%d  state=%s\n", rs.ID, rs.Variant, rs.Path, rs.Baud, rs.State)
	}
	if len(status.Receivers) == 0 {
		fmt.Println("  (none registered)")
	}
	fmt.Println("NTRIP:")
	fmt.Printf("  enabled=%v active_mount=%q bytes=%d frames=%d correction_frames=%d correction_bytes=%d\n",
		status.NTRIP.Enabled, status.NTRIP.ActiveMount, status.NTRIP.BytesReceived, status.NTRIP.FramesForwarded,
		status.NTRIP.CorrectionFrames, status.NTRIP.CorrectionBytes)
}
