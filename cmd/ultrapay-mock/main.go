package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/ultravioletadao/ultrapayx402/go/internal/config"
	"github.com/ultravioletadao/ultrapayx402/go/internal/mockserver"
)

var (
	configFile = flag.String("f", "", "the config file")
	envFile    = flag.String("env", ".env", "the env file")
)

func main() {
	flag.Parse()

	c := config.MustLoad(*configFile, *envFile)
	logx.MustSetup(c.Log)
	defer logx.Close()

	server, err := mockserver.New(mockserver.Config{
		Network:        c.X402.Network,
		PayTo:          c.X402.WalletAddress,
		FacilitatorURL: c.X402.FacilitatorUrl,
	})
	if err != nil {
		fmt.Printf("❌ Failed to create mock backend: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🚀 Mock UltraPay backend on %s\n", c.Mock.ListenOn)
	fmt.Printf("   Payments: %s to %s\n", c.X402.Network, c.X402.WalletAddress)
	if err := server.Run(c.Mock.ListenOn); err != nil {
		fmt.Printf("❌ Error starting server: %v\n", err)
		os.Exit(1)
	}
}
