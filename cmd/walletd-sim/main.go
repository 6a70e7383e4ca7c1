// walletd-sim runs the in-memory wallet daemon, for trying walletctl
// without a real chain.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"walletrpc/walletd"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:18332", "listen address")
	balance := flag.Int64("balance", 100_000, "seeded core-asset balance")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	srv := walletd.NewServer(log)
	walletd.NewSimulator(*balance).Attach(srv)

	go func() {
		log.Info("walletd-sim listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(*addr); err != nil {
			log.Fatal("serve", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if err := srv.Shutdown(5 * time.Second); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
}
