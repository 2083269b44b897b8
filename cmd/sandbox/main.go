package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yummyorder/whatsapp-sandbox/config"
	"github.com/yummyorder/whatsapp-sandbox/gateway"
	"github.com/yummyorder/whatsapp-sandbox/internal/http/chi"
	"github.com/yummyorder/whatsapp-sandbox/metrics"
	"github.com/yummyorder/whatsapp-sandbox/profile"
	"github.com/yummyorder/whatsapp-sandbox/sandbox"
	"github.com/yummyorder/whatsapp-sandbox/settings"
	"github.com/yummyorder/whatsapp-sandbox/settings/memory"
	"github.com/yummyorder/whatsapp-sandbox/settings/redis"
)

const TIMEOUT = 30 * time.Second

/*
 * É no main.go onde é feita toda a amarração dos demais pacotes: iniciamos as
 * dependências, fazemos as configurações e a invocação dos pacotes que
 * desempenham a lógica de negócio.
 *
 * As importações devem ser feitas apenas em uma direção: para baixo. O
 * aplicativo importa camadas de negócio, que importam a camada de armazenamento.
 */

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	// Settings live in Redis when it is reachable; otherwise the sandbox
	// degrades to an in-memory store and keeps working.
	var repo settings.Repository
	redisRepo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, settings will not survive restarts", "error", err)
		repo = memory.NewRepository()
	} else {
		defer redisRepo.Close(ctx)
		repo = redisRepo
	}

	p := profile.Default()
	if cfg.ProfileFile != "" {
		p, err = profile.Load(cfg.ProfileFile)
		if err != nil {
			fmt.Println(err)
			return
		}
	}
	if err := seedSettings(ctx, repo, p.Settings); err != nil {
		logger.Warn("seeding settings", "error", err)
	}

	m, err := metrics.New()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer m.Shutdown(ctx)

	relayTimeout, err := time.ParseDuration(cfg.RelayTimeout)
	if err != nil {
		fmt.Println(fmt.Errorf("parsing RELAY_TIMEOUT: %w", err))
		return
	}

	opts := []sandbox.Option{
		sandbox.WithLogger(logger),
		sandbox.WithMetrics(m),
		sandbox.WithAccount(p.Account),
		sandbox.WithRelayTimeout(relayTimeout),
	}
	if cfg.AppSecret != "" {
		opts = append(opts, sandbox.WithAppSecret(cfg.AppSecret))
	}
	sb := sandbox.New(repo, opts...)
	defer sb.Close()

	// Outbound provider calls made anywhere in this process go through the
	// gateway from here on.
	gateway.Install(sb.Gateway())
	defer gateway.Uninstall()

	r := chi.Handlers(ctx, sb, m.Handler())
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

// seedSettings writes the profile's starting settings when nothing is stored
// yet, so a fresh environment comes up ready to verify.
func seedSettings(ctx context.Context, repo settings.Repository, s settings.Settings) error {
	_, found, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("checking stored settings: %w", err)
	}
	if found {
		return nil
	}
	return repo.Save(ctx, s)
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
