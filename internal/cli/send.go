package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mbward/oscpump/internal/osc"
	"github.com/mbward/oscpump/internal/transport"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	Target string
	Delay  time.Duration
	At     string
}

// NewSendCommand creates the send command, a one-shot OSC client for
// exercising a running gateway.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send <address> [args...]",
		Short: "Send a single OSC message or delayed bundle",
		Long: `Send a single OSC message to a gateway or any OSC peer.

Arguments carry an optional type prefix (i: f: d: h: s: b:). Bare
integers become int32, bare decimals float32, "true"/"false" booleans,
"nil" the nil argument, and anything else a string.

With --in (relative) or --at (RFC 3339 instant) the message is wrapped
in a bundle time-tagged for that moment, so the gateway buffers it
instead of relaying immediately.

Example:
  oscpump send /avatar/parameters/Lock f:1.0
  oscpump send --in 30s /chatbox/input "back in a moment" true
  oscpump send --at 2026-09-01T08:00:00Z /fade/in f:1.0`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(opts, cmd, args[0], args[1:])
		},
	}

	cmd.Flags().StringVar(&opts.Target, "to", "127.0.0.1:9000", "UDP address to send to")
	cmd.Flags().DurationVar(&opts.Delay, "in", 0, "wrap in a bundle due this far in the future")
	cmd.Flags().StringVar(&opts.At, "at", "", "wrap in a bundle due at this RFC 3339 instant")
	cmd.MarkFlagsMutuallyExclusive("in", "at")

	return cmd
}

// dueTime resolves the --in/--at flags into a due instant, if either
// was given.
func (o *SendOptions) dueTime() (time.Time, bool, error) {
	if o.At != "" {
		due, err := time.Parse(time.RFC3339, o.At)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("parse --at: %w", err)
		}
		return due, true, nil
	}
	if o.Delay > 0 {
		return time.Now().Add(o.Delay), true, nil
	}
	return time.Time{}, false, nil
}

func runSend(opts *SendOptions, cmd *cobra.Command, addr string, rawArgs []string) error {
	args, err := parseArgs(rawArgs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid argument", err)
	}

	due, timed, err := opts.dueTime()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid due time", err)
	}

	var pkt osc.Packet = osc.NewMessage(addr, args...)
	if timed {
		pkt = osc.NewBundle(osc.At(due), pkt)
	}
	if err := pkt.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid packet", err)
	}

	sender, err := transport.Dial(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to reach target", err)
	}
	defer sender.Close()

	if err := sender.Send(pkt); err != nil {
		return WrapExitError(ExitFailure, "send failed", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	result := map[string]any{"target": opts.Target, "address": addr}
	if timed {
		result["due"] = due.Format(time.RFC3339Nano)
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	if timed {
		return formatter.Success(fmt.Sprintf("sent %s to %s (due %s)", addr, opts.Target, due.Format(time.RFC3339)))
	}
	return formatter.Success(fmt.Sprintf("sent %s to %s", addr, opts.Target))
}

// parseArgs converts command-line tokens into typed OSC arguments.
func parseArgs(tokens []string) ([]osc.Arg, error) {
	args := make([]osc.Arg, 0, len(tokens))
	for _, tok := range tokens {
		arg, err := parseArg(tok)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func parseArg(tok string) (osc.Arg, error) {
	if prefix, rest, ok := strings.Cut(tok, ":"); ok && len(prefix) == 1 {
		switch prefix {
		case "i":
			v, err := strconv.ParseInt(rest, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("int32 %q: %w", rest, err)
			}
			return osc.Int32(v), nil
		case "h":
			v, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("int64 %q: %w", rest, err)
			}
			return osc.Int64(v), nil
		case "f":
			v, err := strconv.ParseFloat(rest, 32)
			if err != nil {
				return nil, fmt.Errorf("float32 %q: %w", rest, err)
			}
			return osc.Float32(v), nil
		case "d":
			v, err := strconv.ParseFloat(rest, 64)
			if err != nil {
				return nil, fmt.Errorf("float64 %q: %w", rest, err)
			}
			return osc.Double(v), nil
		case "s":
			return osc.String(rest), nil
		case "b":
			data, err := hex.DecodeString(rest)
			if err != nil {
				return nil, fmt.Errorf("blob hex %q: %w", rest, err)
			}
			return osc.Blob(data), nil
		}
	}

	// Untyped tokens: infer from shape.
	switch tok {
	case "true":
		return osc.Bool(true), nil
	case "false":
		return osc.Bool(false), nil
	case "nil":
		return osc.Nil{}, nil
	}
	if v, err := strconv.ParseInt(tok, 10, 32); err == nil {
		return osc.Int32(v), nil
	}
	if v, err := strconv.ParseFloat(tok, 32); err == nil {
		return osc.Float32(v), nil
	}
	return osc.String(tok), nil
}
