package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ultravioletadao/ultrapayx402/go/internal/config"
	"github.com/ultravioletadao/ultrapayx402/go/internal/mockserver"
	"github.com/ultravioletadao/ultrapayx402/go/mechanisms/evm"
	"github.com/ultravioletadao/ultrapayx402/go/payment"
	signers "github.com/ultravioletadao/ultrapayx402/go/signers/evm"
	"github.com/ultravioletadao/ultrapayx402/go/wallet"
)

// mockBalance funds the throwaway wallet used in mock mode with 10 USDC
var mockBalance = big.NewInt(10_000_000)

// newPayer builds the payment service over a headless wallet. Without a key
// the service has no wallet, except in mock mode where a throwaway key is used.
func newPayer(ctx context.Context, c config.Config) (*payment.Service, error) {
	max, err := c.MaxPaymentAmount()
	if err != nil {
		return nil, err
	}
	var opts []payment.Option
	if max != nil {
		opts = append(opts, payment.WithMaxAmount(max))
	}

	info, ok := evm.InfoByNetworkName(c.X402.Network)
	if !ok {
		return nil, fmt.Errorf("unsupported network %q", c.X402.Network)
	}

	var signer *signers.ClientSigner
	switch {
	case c.UseMock:
		signer, err = mockSigner(info)
	case c.Wallet.PrivateKey != "":
		signer, err = signers.NewClientSignerFromPrivateKey(c.Wallet.PrivateKey, signers.WithChainID(info.ChainID))
		if err == nil && c.Wallet.RpcUrl != "" {
			err = signer.Connect(ctx, info.ChainID, c.Wallet.RpcUrl)
		}
	default:
		return payment.NewService(nil, opts...), nil
	}
	if err != nil {
		return nil, err
	}

	conn := wallet.NewConnector(signer)
	svc := payment.NewService(conn, opts...)
	if err := svc.ConnectWallet(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect wallet: %w", err)
	}
	return svc, nil
}

func mockSigner(info evm.NetworkInfo) (*signers.ClientSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	asset, ok := evm.DefaultAsset(info.Network)
	if !ok {
		return nil, fmt.Errorf("no USDC deployment known on %s", info.Network)
	}

	backend := signers.NewMemoryBackend()
	backend.SetTokenBalance(asset.Address, crypto.PubkeyToAddress(key.PublicKey).Hex(), mockBalance)
	return signers.NewClientSigner([]*ecdsa.PrivateKey{key},
		signers.WithChainID(info.ChainID),
		signers.WithBackend(info.ChainID, backend))
}

// startMock serves an in-process mock backend on a loopback port
func startMock(c config.Config) (string, func(), error) {
	server, err := mockserver.New(mockserver.Config{
		Network:        c.X402.Network,
		PayTo:          c.X402.WalletAddress,
		FacilitatorURL: c.X402.FacilitatorUrl,
	})
	if err != nil {
		return "", nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{Handler: server.Handler()}
	go func() {
		_ = httpServer.Serve(listener)
	}()
	return "http://" + listener.Addr().String(), func() { _ = httpServer.Close() }, nil
}
