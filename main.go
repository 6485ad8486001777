package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skyfront/client"
	"skyfront/config"
	"skyfront/server"
	"skyfront/world"
)

// noKeys 无界面运行时没有键盘输入
type noKeys struct{}

func (noKeys) IsKeyPressed(client.Key) bool { return false }

// SkyFront 入口：server 仅服务端，host 服务端加本机客户端，client 连接远程服务端
func main() {
	var mode, cfgPath, addr string
	flag.StringVar(&mode, "mode", "server", "server | host | client")
	flag.StringVar(&cfgPath, "config", "skyfront.json", "config file (json)")
	flag.StringVar(&addr, "addr", "", "override listen/server address")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}
	// 使用第三方 zap 日志库写入日志文件（带滚动）
	if err := server.InitLogger(cfg.Log.File, cfg.Log.Level); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "server":
		srv, admin := startServer(cfg, addr)
		<-ctx.Done()
		shutdownServer(srv, admin)
	case "host":
		srv, admin := startServer(cfg, addr)
		runClient(ctx, cfg, loopbackAddr(srv.Addr()), true)
		shutdownServer(srv, admin)
	case "client":
		target := addr
		if target == "" {
			target, err = client.ServerAddressFromFile(cfg.Client.AddressFile)
			if err != nil {
				server.Log.Warnw("read server address failed, using default", "err", err)
				target = client.DefaultServerAddress
			}
		}
		runClient(ctx, cfg, target, false)
	default:
		server.Log.Errorf("unknown mode %q", mode)
		os.Exit(2)
	}
	server.Log.Info("Shutting down...")
}

func startServer(cfg config.Config, addr string) (*server.Server, *http.Server) {
	sc := cfg.ServerConfig()
	if addr != "" {
		sc.Addr = addr
	}
	srv := server.New(sc, server.WithLogger(server.Log))
	if err := srv.Start(); err != nil {
		server.Log.Fatalf("start: %v", err)
	}

	if !cfg.Admin.Enabled {
		return srv, nil
	}
	admin := &http.Server{Addr: cfg.Admin.Addr, Handler: srv.AdminMux()}
	go func() {
		server.Log.Infof("admin listening on %s", cfg.Admin.Addr)
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Errorf("admin listen: %v", err)
		}
	}()
	return srv, admin
}

// loopbackAddr 本机客户端连接自己的服务端：沿用实际监听端口
func loopbackAddr(listen net.Addr) string {
	_, port, err := net.SplitHostPort(listen.String())
	if err != nil {
		return client.DefaultServerAddress
	}
	return net.JoinHostPort(client.DefaultServerAddress, port)
}

func shutdownServer(srv *server.Server, admin *http.Server) {
	if admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = admin.Shutdown(ctx)
		cancel()
	}
	srv.Stop()
}

// runClient 无界面客户端：固定帧率推进会话直到返回菜单或收到退出信号
func runClient(ctx context.Context, cfg config.Config, addr string, host bool) {
	cc := cfg.ClientConfig(host)
	cc.Logger = server.Log.Named("client")

	w := world.New(1024, 768)
	sess, err := client.Dial(ctx, addr, w, noKeys{}, cc)
	if err != nil {
		server.Log.Errorw("connect failed", "addr", addr, "err", err)
	}

	const frame = time.Second / 60
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			_ = sess.Close()
			return
		case now := <-ticker.C:
			sess.Update(now.Sub(last))
			last = now
		}
		for {
			ev, ok := sess.PollEvent()
			if !ok {
				break
			}
			server.Log.Infow("client event", "kind", ev.Kind, "text", ev.Text)
			if ev.Kind == client.EventReturnToMenu {
				_ = sess.Close()
				return
			}
		}
	}
}
