package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: meshdecode <command> [flags]

commands:
  decode   decode one hex packet and print it as JSON
  probe    list raw protobuf fields in a hex blob
  serve    run the HTTP API (and serial ingest when configured)
  watch    decode hex lines from stdin or a serial port
  ports    list serial ports
  config   write or validate a config file
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "decode":
		err = runDecode(args[1:], stdin, stdout)
	case "probe":
		err = runProbe(args[1:], stdin, stdout)
	case "serve":
		err = runServe(ctx, args[1:])
	case "watch":
		err = runWatch(ctx, args[1:], stdin, stdout)
	case "ports":
		err = runPorts(stdout)
	case "config":
		err = runConfig(args[1:], stdout)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "meshdecode: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "meshdecode %s: %v\n", args[0], err)
		if isUsage(err) {
			return 2
		}
		return 1
	}
	return 0
}
