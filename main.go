package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/smilodon/activitypub"
	"github.com/deemkeen/smilodon/backoff"
	"github.com/deemkeen/smilodon/db"
	"github.com/deemkeen/smilodon/middleware"
	"github.com/deemkeen/smilodon/policy"
	"github.com/deemkeen/smilodon/relay"
	"github.com/deemkeen/smilodon/reputation"
	"github.com/deemkeen/smilodon/ui"
	"github.com/deemkeen/smilodon/util"
	"github.com/deemkeen/smilodon/web"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/wish"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	display := *conf
	if display.Conf.AdminToken != "" {
		display.Conf.AdminToken = "[redacted]"
	}
	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(display))

	holder := util.NewConfigHolder(conf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick up config file edits without a restart.
	go holder.WatchConfig(ctx, 10*time.Second)

	log.Println("Running database migrations...")
	database := db.GetDB()
	if err := database.RunMigrations(); err != nil {
		log.Fatalln("Migrations failed:", err)
	}
	log.Println("Database migrations complete")

	cache := reputation.NewCache(database)

	tracker := backoff.NewTracker(holder)
	go tracker.Run(ctx)

	pipeline := policy.NewPipeline(
		policy.NewInstanceFilter(cache),
		policy.NewKeywordFilter(holder),
		policy.NewHellthreadFilter(holder),
	)

	relaySvc := relay.NewService(database, holder, activitypub.NewHTTPResolver(), pipeline)
	if _, err := relaySvc.GetOrCreateRelayActor(); err != nil {
		log.Fatalln("Could not bootstrap the relay actor:", err)
	}

	worker := activitypub.NewWorker(database, tracker)
	go worker.Run(ctx)

	webDeps := &web.Deps{
		Store:    database,
		Conf:     holder,
		Cache:    cache,
		Tracker:  tracker,
		Relay:    relaySvc,
		Pipeline: pipeline,
	}

	uiDeps := ui.Deps{
		Conf:    holder,
		Cache:   cache,
		Tracker: tracker,
		Relay:   relaySvc,
	}

	s, err := wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.SshPort)),
		wish.WithHostKeyPath(util.ResolveFilePathWithSubdir(".ssh", "hostkey")),
		wish.WithPublicKeyAuth(publicKeyHandler),
		wish.WithMiddleware(
			middleware.MainTui(uiDeps),
			middleware.AuthMiddleware(holder),
			logging.Middleware(), // last middleware executed first
		),
	)
	if err != nil {
		log.Fatalln(err)
	}

	startServing(s, webDeps, conf)

}

func startServing(s *ssh.Server, deps *web.Deps, conf *util.AppConfig) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	log.Printf("Starting SSH server on %s:%d", conf.Conf.Host, conf.Conf.SshPort)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			log.Fatalln(err)
		}
	}()

	go func() {

		if err := web.Router(deps); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping SSH server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer func() { cancel() }()
	if err := s.Shutdown(ctx); err != nil {
		log.Fatalln(err)
	}
}

// publicKeyHandler accepts every offered key. AuthMiddleware enforces the
// allowlist afterwards so a denied key still sees a readable message instead
// of a bare authentication failure.
func publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return true
}
