package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/MildC/kad-core/internal/obslog"
	"github.com/MildC/kad-core/nodeid"
	"github.com/MildC/kad-core/peer"
	"github.com/MildC/kad-core/wire"
)

func main() {
	app := &cli.App{
		Name:  "kad-core",
		Usage: "a Kademlia-style DHT peer: routing table, message framing, and dispatch",
		Commands: []*cli.Command{
			serveCommand(),
			sendCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "bind a UDP socket and start answering peer messages",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Value: "", Usage: "address to bind"},
			&cli.IntFlag{Name: "port", Value: 9000, Usage: "port to bind"},
			&cli.IntFlag{Name: "pprof-port", Value: 6060, Usage: "pprof debug port, 0 to disable"},
			&cli.BoolFlag{Name: "debug", Value: false, Usage: "verbose console logging"},
			&cli.StringSliceFlag{Name: "bootstrap", Usage: "host:port of a known peer, repeatable"},
		},
		Action: func(c *cli.Context) error {
			if pprofPort := c.Int("pprof-port"); pprofPort > 0 {
				go func() {
					_ = http.ListenAndServe(fmt.Sprintf(":%d", pprofPort), nil)
				}()
			}

			logger := obslog.NewConsoleLogger(c.Bool("debug"))
			defer logger.Sync()

			bindAddr := fmt.Sprintf("%s:%d", c.String("address"), c.Int("port"))
			transport, err := peer.ListenUDP("udp", bindAddr)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			cfg := peer.NewDefaultConfig()
			for _, hostPort := range c.StringSlice("bootstrap") {
				ep, err := peer.ParseEndpoint(hostPort)
				if err != nil {
					return fmt.Errorf("serve: bootstrap %q: %w", hostPort, err)
				}
				cfg.BootstrapNodes = append(cfg.BootstrapNodes, ep)
			}

			p, err := peer.New(nodeid.Zero, transport, cfg, logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			if err := p.Register(func() peer.TypeHandler {
				return peer.HandlerForType(wire.TypePingRequest, handlePing)
			}); err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			logger.Info("kad-core: ready", zap.String("node_id", p.ID().String()), zap.String("bind", bindAddr))

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			err = p.Serve(ctx)
			closeErr := p.Close()
			if err != nil && err != context.Canceled {
				return err
			}
			return closeErr
		},
	}
}

func handlePing(ctx *peer.Context, msg wire.Message) (wire.Message, error) {
	req, ok := msg.(*wire.PingRequest)
	if !ok {
		return nil, fmt.Errorf("serve: handlePing: unexpected message type %T", msg)
	}
	ctx.Logger.Debug("serve: received ping", zap.Uint32("value", req.Value))
	return wire.Respond(req, wire.TypePongResponse, map[string]interface{}{"value": req.Value})
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "send a ping to a peer and print its pong",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", Value: "127.0.0.1", Usage: "peer address"},
			&cli.IntFlag{Name: "port", Value: 9000, Usage: "peer port"},
		},
		Action: func(c *cli.Context) error {
			logger := obslog.NewConsoleLogger(false)
			defer logger.Sync()

			to := peer.Endpoint{Address: c.String("address"), Port: c.Int("port")}

			transport, err := peer.ListenUDP("udp", ":0")
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			defer transport.Close()

			client := peer.NewClient(transport, peer.WithClientLogger(logger))

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				for {
					data, _, err := transport.Receive(ctx)
					if err != nil {
						return
					}
					msg, err := wire.Decode(data)
					if err != nil {
						continue
					}
					client.Deliver(msg)
				}
			}()

			req, err := wire.New(wire.TypePingRequest, map[string]interface{}{"value": uint32(len(c.Args().First()))})
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}

			logger.Info("send: sending ping", zap.Stringer("to", to))

			resp, err := client.Call(ctx, req, to)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}

			pong, ok := resp.(*wire.PongResponse)
			if !ok {
				return fmt.Errorf("send: unexpected response type %T", resp)
			}
			fmt.Printf("pong value=%d\n", pong.Value)
			return nil
		},
	}
}
