package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	x402 "github.com/ultravioletadao/ultrapayx402/go"
	x402http "github.com/ultravioletadao/ultrapayx402/go/http"
	"github.com/ultravioletadao/ultrapayx402/go/internal/config"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/payment"
)

var (
	configFile = flag.String("f", "", "the config file")
	envFile    = flag.String("env", ".env", "the env file")
)

const usage = `usage: ultrapay [-f config] [-env file] <command> [flags]

commands:
  health                      check the backend
  providers                   list generation providers
  pricing                     show prices by media type
  networks                    list supported payment networks
  generate -prompt P [-type image|video] [-provider ID]
                              generate content, paying the x402 challenge
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	c := config.MustLoad(*configFile, *envFile)
	logx.MustSetup(c.Log)
	defer logx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	if err := run(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c config.Config, command string, args []string) error {
	if command == "networks" {
		for _, name := range evm.SupportedNetworks() {
			info, _ := evm.InfoByNetworkName(name)
			fmt.Printf("  %-16s %-18s chain %d (%s)\n", name, info.Name, info.ChainID, info.ChainIDHex)
		}
		return nil
	}

	apiURL := c.ApiUrl
	if c.UseMock {
		url, stop, err := startMock(c)
		if err != nil {
			return err
		}
		defer stop()
		apiURL = url
		fmt.Printf("🧪 Mock mode: backend at %s\n", apiURL)
	}
	client := x402http.NewClient(apiURL, x402http.WithTimeout(c.Timeout))

	switch command {
	case "health":
		health, err := client.Health(ctx)
		if err != nil {
			return err
		}
		return printJSON(health)
	case "providers":
		providers, err := client.Providers(ctx)
		if err != nil {
			return err
		}
		for _, p := range providers {
			fmt.Printf("  %-12s %-14s %-6s $%.2f  %s\n", p.ID, p.Name, p.Type, p.Price, p.Description)
		}
		return nil
	case "pricing":
		pricing, err := client.Pricing(ctx)
		if err != nil {
			return err
		}
		return printJSON(pricing)
	case "generate":
		return generate(ctx, c, client, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func generate(ctx context.Context, c config.Config, client *x402http.Client, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	prompt := fs.String("prompt", "", "what to generate")
	mediaType := fs.String("type", string(x402http.MediaImage), "image or video")
	provider := fs.String("provider", "", "provider id, see the providers command")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*prompt) == "" {
		return errors.New("generate needs -prompt")
	}

	payer, err := newPayer(ctx, c)
	if err != nil {
		return err
	}
	defer payer.WatchWallet(ctx)()
	unsubscribe := payer.OnStateChange(func(s payment.State) {
		fmt.Printf("   ⏳ %s\n", s.CurrentStep)
	})
	defer unsubscribe()

	if payer.IsConnected() {
		fmt.Printf("👛 Wallet %s\n", payer.State().Address)
	}

	result, err := client.GenerateWithPayment(ctx, x402http.GenerateRequest{
		Prompt:   *prompt,
		Type:     x402http.MediaType(*mediaType),
		Provider: *provider,
	}, payer)
	if err != nil {
		if errors.Is(err, x402.ErrWalletNotConnected) {
			return fmt.Errorf("%w (set ULTRAPAY_PRIVATE_KEY or Wallet.PrivateKey)", err)
		}
		return err
	}

	fmt.Printf("\n✅ %s by %s ($%.2f)\n", result.Type, result.ProviderName, result.Price)
	fmt.Printf("   %s\n", result.MediaURL)
	if result.Settlement != nil {
		fmt.Printf("   Transaction: %s on %s\n", result.Settlement.Transaction, result.Settlement.Network)
	}
	return nil
}

func printJSON(v any) error {
	pretty, err := json.MarshalIndent(v, "  ", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("  %s\n", pretty)
	return nil
}
