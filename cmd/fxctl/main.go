// Package main is fxctl, a command line client that calls the FX provider
// directly with a gateway configuration file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/vyrodovalexey/avafx/internal/config"
	"github.com/vyrodovalexey/avafx/internal/fx"
	"github.com/vyrodovalexey/avafx/internal/observability"
	"github.com/vyrodovalexey/avafx/internal/vault"
)

const usage = `Usage: fxctl <command> [flags]

Commands:
  probe   call the provider's hello-world endpoint
  quote   request an FX quote (-from USD -to EUR -amount 100.00)

Run "fxctl <command> -h" for command flags.
`

// errUsage reports a command line mistake; usage has already been printed.
var errUsage = errors.New("usage error")

// passwordReader reads a secret without echo.
type passwordReader func(prompt string) (string, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, readTerminalPassword)
	stop()
	os.Exit(code)
}

// run executes one command and returns the process exit code: 0 when the
// envelope reports success, 1 when it does not, 2 on usage or setup errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, readPassword passwordReader) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var (
		env any
		ok  bool
		err error
	)
	switch args[0] {
	case "probe":
		env, ok, err = probe(ctx, args[1:], stderr, readPassword)
	case "quote":
		env, ok, err = quote(ctx, args[1:], stderr, readPassword)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, color.RedString("error: %v", err))
		}
		return 2
	}

	if err := printEnvelope(stdout, env, ok); err != nil {
		fmt.Fprintln(stderr, color.RedString("error: %v", err))
		return 2
	}
	if !ok {
		return 1
	}
	return 0
}

// commonFlags are shared by every command.
type commonFlags struct {
	configPath string
	askPass    bool
	logLevel   string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", getEnvOrDefault("FXGATEWAY_CONFIG_PATH", "configs/fxgateway.yaml"),
		"Path to configuration file")
	fs.BoolVar(&c.askPass, "ask-pass", false, "Prompt for the client keystore passphrase")
	fs.StringVar(&c.logLevel, "log-level", "warn", "Log level for diagnostics on stderr")
}

func probe(ctx context.Context, args []string, stderr io.Writer, readPassword passwordReader) (any, bool, error) {
	var common commonFlags
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, false, errUsage
	}

	gw, err := openGateway(ctx, common, stderr, readPassword)
	if err != nil {
		return nil, false, err
	}
	defer gw.Close()

	env := gw.Probe(ctx)
	return env, env.OK(), nil
}

func quote(ctx context.Context, args []string, stderr io.Writer, readPassword passwordReader) (any, bool, error) {
	var (
		common commonFlags
		req    fx.QuoteRequest
	)
	fs := flag.NewFlagSet("quote", flag.ContinueOnError)
	fs.SetOutput(stderr)
	common.register(fs)
	fs.StringVar(&req.SourceCurrencyCode, "from", "", "Source currency code (required)")
	fs.StringVar(&req.DestinationCurrencyCode, "to", "", "Destination currency code (required)")
	fs.StringVar(&req.SourceAmount, "amount", "", "Source amount, sent verbatim (required)")
	fs.StringVar(&req.MarkupRate, "markup", "", "Markup rate (defaults from configuration)")
	fs.StringVar(&req.RateProductCode, "product", "", "Rate product code (defaults from configuration)")
	if err := fs.Parse(args); err != nil {
		return nil, false, errUsage
	}
	if req.SourceCurrencyCode == "" || req.DestinationCurrencyCode == "" || req.SourceAmount == "" {
		fmt.Fprintln(stderr, "quote requires -from, -to and -amount")
		fs.Usage()
		return nil, false, errUsage
	}

	gw, err := openGateway(ctx, common, stderr, readPassword)
	if err != nil {
		return nil, false, err
	}
	defer gw.Close()

	env := gw.Quote(ctx, req)
	return env, env.OK(), nil
}

// openGateway loads the configuration, resolves its secrets and builds a
// gateway from the upstream section.
func openGateway(ctx context.Context, common commonFlags, stderr io.Writer, readPassword passwordReader) (*fx.Gateway, error) {
	cfg, err := config.LoadAndValidate(common.configPath)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  common.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return nil, err
	}

	var secrets vault.SecretReader
	if cfg.Spec.Vault.IsEnabled() {
		client, err := vault.New(cfg.Spec.Vault, logger)
		if err != nil {
			return nil, err
		}
		secrets = client
	}
	if err := vault.Resolve(ctx, cfg, secrets); err != nil {
		return nil, err
	}

	if common.askPass {
		passphrase, err := readPassword(fmt.Sprintf("Passphrase for %s: ", cfg.Spec.Upstream.ClientCert.Path))
		if err != nil {
			return nil, fmt.Errorf("read passphrase: %w", err)
		}
		cfg.Spec.Upstream.ClientCert.Passphrase = passphrase
	}

	return fx.New(cfg.Spec.Upstream, fx.WithLogger(logger))
}

// printEnvelope writes the response code line in colour followed by the
// envelope as indented JSON.
func printEnvelope(w io.Writer, env any, ok bool) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}

	status := color.New(color.FgGreen, color.Bold)
	if !ok {
		status = color.New(color.FgRed, color.Bold)
	}

	var head struct {
		ResponseCode    string `json:"responseCode"`
		ResponseMessage string `json:"responseMessage"`
	}
	_ = json.Unmarshal(data, &head)

	if _, err := status.Fprintf(w, "%s %s\n", head.ResponseCode, head.ResponseMessage); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func readTerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
