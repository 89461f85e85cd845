package main

import (
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"github.com/RunyiYang/ETHer-BIT/params"
	"github.com/RunyiYang/ETHer-BIT/pkg/api"
	"github.com/RunyiYang/ETHer-BIT/pkg/exchange"
	"github.com/RunyiYang/ETHer-BIT/pkg/token"
	"github.com/RunyiYang/ETHer-BIT/pkg/util"
)

// exchanged runs the custodial exchange node: a single engine instance plus
// the REST/WebSocket API in front of it.
func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if !common.IsHexAddress(cfg.Exchange.FeeAccount) {
		sugar.Fatalw("invalid_fee_account", "value", cfg.Exchange.FeeAccount)
	}
	if !common.IsHexAddress(cfg.Exchange.CustodyAccount) {
		sugar.Fatalw("invalid_custody_account", "value", cfg.Exchange.CustodyAccount)
	}
	feeAccount := common.HexToAddress(cfg.Exchange.FeeAccount)
	custody := common.HexToAddress(cfg.Exchange.CustodyAccount)

	bridge := token.NewNative()
	registry := token.NewRegistry()

	// Devnet conveniences: a pre-funded faucet account and a demo token,
	// both controlled by env. Production deployments leave these unset
	// and register tokens through their own tooling.
	if faucet := os.Getenv("DEVNET_FAUCET"); faucet != "" && common.IsHexAddress(faucet) {
		amount, _ := new(big.Int).SetString("1000000000000000000000", 10) // 1000 units of 1e18
		bridge.Fund(common.HexToAddress(faucet), amount)
		sugar.Infow("devnet_faucet_funded", "account", faucet)
	}
	if deployer := os.Getenv("DEVNET_TOKEN_DEPLOYER"); deployer != "" && common.IsHexAddress(deployer) {
		supply, _ := new(big.Int).SetString("1000000000000000000000000", 10) // 1M units of 1e18
		demo := token.New("BIT Token", "BIT", 18, common.HexToAddress(deployer), supply)
		asset := exchange.TokenAsset(common.HexToAddress("0x00000000000000000000000000000000000B1700"))
		registry.Register(asset, demo.Bind(custody))
		sugar.Infow("devnet_token_registered", "asset", asset.Hex(), "deployer", deployer)
	}

	engine, err := exchange.New(exchange.Config{
		FeeAccount: feeAccount,
		FeePercent: cfg.Exchange.FeePercent,
		DBPath:     cfg.Node.DBPath,
		Bridge:     bridge,
		Tokens:     registry,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}
	defer engine.Close()

	server := api.NewServer(engine, sugar, cfg.Node.RequireSignatures)
	if err := server.Start(cfg.Node.ListenAddr); err != nil {
		sugar.Fatalw("api_server_failed", "err", err)
	}
}
