package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-service/cleanup"
	"github.com/jrsteele09/go-session-service/internal/config"
	"github.com/jrsteele09/go-session-service/refresh/postgres"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running sweeper: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Sweeper stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	pool, err := pgxpool.New(context.Background(), c.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if addr := c.GetRedisAddr(); addr != "" {
		if err := pingRedis(addr); err != nil {
			return err
		}
	}

	sweeper, err := cleanup.New(postgres.NewRepo(pool), c.GetCleanupInterval(),
		cleanup.WithLogger(logger),
		cleanup.WithRetentionPolicy(c.GetIdleWindow(), c.GetRevokedRetention()))
	if err != nil {
		return fmt.Errorf("cleanup.New: %w", err)
	}
	go sweeper.Start(context.Background())
	waitForStopSignal()
	sweeper.Stop()
	return nil
}

func pingRedis(addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.Ping: %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
