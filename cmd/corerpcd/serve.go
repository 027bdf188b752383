package main

import (
	"net"
	"time"

	"corerpc/contract"
	"corerpc/discovery"
	"corerpc/endpoint"
	"corerpc/engine"
	"corerpc/examples/calc"
	"corerpc/middleware"
	"corerpc/transport/tcp"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(logger *zap.Logger) *cobra.Command {
	var (
		addr          string
		advertiseAddr string
		etcdEndpoints []string
		configPath    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Calc service over TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger, addr, advertiseAddr, etcdEndpoints, configPath)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&advertiseAddr, "advertise", "", "address to register in etcd (defaults to --addr)")
	cmd.Flags().StringSliceVar(&etcdEndpoints, "etcd", nil, "etcd endpoints for service discovery (optional)")
	cmd.Flags().StringVar(&configPath, "config", "", "config file to watch for live log-level changes (optional)")
	return cmd
}

func runServe(logger *zap.Logger, addr, advertiseAddr string, etcdEndpoints []string, configPath string) error {
	svc, err := calc.Service()
	if err != nil {
		return err
	}

	level := zap.NewAtomicLevel()
	if configPath != "" {
		cfg := zap.NewProductionConfig()
		cfg.Level = level
		if leveled, err := cfg.Build(); err == nil {
			logger = leveled
		}
		watchConfig(logger, configPath, &level)
	}

	if len(etcdEndpoints) > 0 {
		reg, err := discovery.NewEtcdRegistry(etcdEndpoints)
		if err != nil {
			return err
		}
		if advertiseAddr == "" {
			advertiseAddr = addr
		}
		if err := reg.Register("Calc", discovery.Instance{Addr: advertiseAddr, Weight: 10}, 10); err != nil {
			logger.Warn("etcd registration failed", zap.Error(err))
		} else {
			defer reg.Deregister("Calc", advertiseAddr)
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer listener.Close()

	color.Green("corerpcd listening on %s", addr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go serveConn(logger, conn, svc)
	}
}

// serveConn builds one Endpoint per inbound TCP connection, serving
// the Calc contract for the lifetime of that connection.
func serveConn(logger *zap.Logger, conn net.Conn, svc *contract.ServiceContract) {
	tr := tcp.New(conn, logger)
	ep := endpoint.New(tr, engine.OriginatorServer, logger)
	ep.AddMiddleware(middleware.NewLogging(logger))
	if err := ep.RegisterServiceContract(svc); err != nil {
		logger.Error("failed to register service contract", zap.Error(err))
		ep.Close(0)
		return
	}
	<-ep.Done() // blocks until the transport closes (peer disconnect)
	ep.Close(5 * time.Second)
}
