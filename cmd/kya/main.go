package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"kya.dev/kya/config"
	"kya.dev/kya/keys"
	"kya.dev/kya/outbox"
)

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env is the state every command gets after global flags are parsed.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	global := pflag.NewFlagSet("kya", pflag.ContinueOnError)
	global.SetOutput(errOut)
	global.SetInterspersed(false)
	global.Usage = func() { printUsage(errOut) }

	var configPath, logLevel, logFormat string
	global.StringVar(&configPath, "config", os.Getenv("KYA_CONFIG"), "Config file (JSONC)")
	global.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	global.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(errOut)
		return 2
	}

	switch rest[0] {
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "%v\n", err)
		return 2
	}
	e := &env{cfg: cfg, logger: newLogger(cfg, errOut), out: out, errOut: errOut}

	switch rest[0] {
	case "key":
		return cmdKey(e, rest[1:])
	case "keygen":
		return cmdKeygen(e, rest[1:])
	case "canonicalize":
		return cmdCanonicalize(e, rest[1:])
	case "digest":
		return cmdDigest(e, rest[1:])
	case "sign":
		return cmdSign(e, rest[1:])
	case "verify":
		return cmdVerify(e, rest[1:])
	case "jti":
		return cmdJTI(e, rest[1:])
	case "token":
		return cmdToken(e, rest[1:])
	case "request":
		return cmdRequest(e, rest[1:])
	case "vectors":
		return cmdVectors(e, rest[1:])
	case "outbox":
		return cmdOutbox(e, rest[1:])
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", rest[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "kya: sign agent actions for capability-gated backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  kya [--config <file>] [--log-level <level>] [--log-format text|json] <command> ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  kya key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  kya key derive --from <name> --agent <agent> [--force]")
	fmt.Fprintln(w, "  kya key list")
	fmt.Fprintln(w, "  kya key export --name <name>[/<agent>]")
	fmt.Fprintln(w, "  kya keygen [--alg ed25519|dilithium3]")
	fmt.Fprintln(w, "  kya canonicalize <file|->")
	fmt.Fprintln(w, "  kya digest <file|->")
	fmt.Fprintln(w, "  kya sign (--key <name> | --private-key <b64>) --input <envelope.json|-> [--suite ed25519+sha256]")
	fmt.Fprintln(w, "  kya verify --public-key <b64> --signature <b64> --canonical <file|-> [--suite ed25519+sha256]")
	fmt.Fprintln(w, "  kya jti <token>")
	fmt.Fprintln(w, "  kya token mint --key <name> --subject <agent> --workspace <id> [--scope <s> ...] [--ttl 15m]")
	fmt.Fprintln(w, "  kya token show <token>")
	fmt.Fprintln(w, "  kya request build (--key <name> | --private-key <b64>) --input <fields.json|-> [--store]")
	fmt.Fprintln(w, "  kya request verify --public-key <b64> <request.json|->")
	fmt.Fprintln(w, "  kya vectors check [--dir <dir>]")
	fmt.Fprintln(w, "  kya outbox list")
	fmt.Fprintln(w, "  kya outbox show <cid>")
	fmt.Fprintln(w, "  kya outbox verify --public-key <b64> <cid>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - keys are stored under ~/.kya/keys/<name>/agent.key (0600); override with key_dir or KYA_KEY_DIR")
	fmt.Fprintln(w, "  - canonicalize writes canonical JSON to stdout (no trailing newline)")
	fmt.Fprintln(w, "  - verify and request verify exit 1 when the signature does not match")
	fmt.Fprintln(w, "  - token mint issues unverified development tokens; the backend issues real ones")
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

// parseFlags returns -1 when parsing succeeded and an exit code otherwise.
func parseFlags(fs *pflag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	return -1
}

func (e *env) keyStore() (*keys.KeyStore, error) {
	dir, err := config.ExpandPath(e.cfg.KeyDir)
	if err != nil {
		return nil, err
	}
	return keys.CreateKeyStore(dir)
}

func (e *env) outbox() (*outbox.Outbox, error) {
	cas, err := e.cfg.OpenOutboxCAS()
	if err != nil {
		return nil, err
	}
	return outbox.New(cas, e.logger), nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
