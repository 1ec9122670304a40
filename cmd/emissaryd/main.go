package main

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"os"

	"github.com/a55uka/emissary/lib/addressbook"
	"github.com/a55uka/emissary/lib/common"
	"github.com/a55uka/emissary/lib/crypto/ssu2crypto"
	"github.com/a55uka/emissary/lib/router"
	"github.com/a55uka/emissary/lib/transport/ssu2"
	"github.com/go-i2p/logger"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

// VERSION is injected by buildflags; SELFBUILD marks a non-release build.
var VERSION = "SELFBUILD"

var log = logger.GetGoI2PLogger()

func main() {
	app := cli.NewApp()
	app.Name = "emissaryd"
	app.Usage = "SSU2 I2P router"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Value: ":7654",
			Usage: "UDP address to bind the SSU2 socket to",
		},
		cli.StringFlag{
			Name:  "data-dir",
			Value: "./emissary-data",
			Usage: "directory for the persisted intro key, an optional static key file, and the address book",
		},
		cli.UintFlag{
			Name:  "net-id",
			Value: 2,
			Usage: "I2P network ID this router participates in",
		},
		cli.StringFlag{
			Name:  "hosts-url",
			Value: "",
			Usage: "primary hosts.txt subscription URL",
		},
		cli.StringSliceFlag{
			Name:  "subscription",
			Usage: "additional hosts.txt subscription URL (repeatable)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.WithField("error", err).Fatal("emissaryd: exiting")
	}
}

func run(c *cli.Context) error {
	dataDir := c.String("data-dir")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	staticKey, err := loadOrGenerateStaticKey(dataDir)
	if err != nil {
		return fmt.Errorf("load static key: %w", err)
	}
	introKey := loadOrGenerateIntroKey(dataDir)

	conn, err := net.ListenPacket("udp", c.String("listen"))
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	routerInfo, err := buildRouterInfo(conn.LocalAddr(), introKey, staticKey)
	if err != nil {
		return fmt.Errorf("build router info: %w", err)
	}

	r := router.New(router.Config{
		Conn:       conn,
		IntroKey:   introKey,
		StaticKey:  staticKey,
		NetID:      byte(c.Uint("net-id")),
		RouterInfo: routerInfo,
		Runtime:    ssu2.StdRuntime{},
	})
	defer r.Close()

	book, err := addressbook.New(addressbook.Config{
		BaseDir:       dataDir,
		HostsURL:      c.String("hosts-url"),
		Subscriptions: c.StringSlice("subscription"),
	})
	if err != nil {
		return fmt.Errorf("init address book: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go book.Run(ctx)

	log.WithFields(logrus.Fields{
		"listen": c.String("listen"),
		"netID":  c.Uint("net-id"),
	}).Info("emissaryd: listening")

	for session := range r.Sessions() {
		routerID := session.RouterID()
		log.WithField("peer", hex.EncodeToString(routerID[:])).Info("emissaryd: session established")
	}
	return nil
}

// loadOrGenerateStaticKey loads the router's long-term SSU2 static key
// from data-dir/static.key if present, generating a fresh one
// otherwise. ssu2crypto.StaticPrivateKey exposes no byte encoder (its
// scalar never needs to leave process memory during a handshake), so
// unlike the intro key this identity is not yet persisted across
// restarts; a future netdb-identity module owns that.
func loadOrGenerateStaticKey(dataDir string) (ssu2crypto.StaticPrivateKey, error) {
	path := dataDir + "/static.key"
	if raw, err := os.ReadFile(path); err == nil {
		return ssu2crypto.StaticPrivateKeyFromBytes(raw)
	}
	return ssu2crypto.GenerateStatic(nil)
}

func loadOrGenerateIntroKey(dataDir string) [32]byte {
	path := dataDir + "/intro.key"
	var key [32]byte
	if raw, err := os.ReadFile(path); err == nil && len(raw) == 32 {
		copy(key[:], raw)
		return key
	}
	if _, err := cryptorand.Read(key[:]); err != nil {
		panic("emissaryd: crypto/rand unavailable: " + err.Error())
	}
	_ = os.WriteFile(path, key[:], 0o600)
	return key
}

// buildRouterInfo is a placeholder for the signed RouterInfo document
// this node would publish to netdb so peers can Dial it: assembling one
// needs a router identity (ed25519 signing key, certificate) this
// command doesn't yet manage, so it's left to a future netdb-identity
// module. Outbound dialing of peers discovered elsewhere already works
// via router.Router.Dial, which only needs the peer's RouterInfo.
func buildRouterInfo(addr net.Addr, introKey [32]byte, staticKey ssu2crypto.StaticPrivateKey) (common.RouterInfo, error) {
	return common.RouterInfo{}, nil
}
