package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"fabula/internal/config"
	"fabula/internal/sync"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Transfer stories between devices on the local network",
	}
	cmd.AddCommand(syncServeCmd())
	cmd.AddCommand(syncDiscoverCmd())
	cmd.AddCommand(syncListCmd())
	cmd.AddCommand(syncPullCmd())
	cmd.AddCommand(syncPushCmd())
	return cmd
}

func syncServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve this device's stories to peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncServe()
		},
	}
}

func runSyncServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load("fabula.yaml")
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	token := uuid.NewString()
	server := sync.NewServer(token, sync.NewStoreExporter(db), nil)

	ip := localIP()
	fmt.Fprintf(os.Stdout, "Serving stories on %s:%d\n", ip, cfg.Sync.Port)
	fmt.Fprintf(os.Stdout, "Token:        %s\n", token)
	fmt.Fprintf(os.Stdout, "Connect code: %s\n", sync.TokenToConnectCode(token))

	go func() {
		_ = sync.Broadcast(ctx, sync.DiscoveryBroadcast{
			IP:         ip,
			Port:       cfg.Sync.Port,
			Token:      token,
			Version:    version,
			DeviceName: cfg.Sync.DeviceName,
		}, cfg.Sync.DiscoveryPort, nil)
	}()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Sync.Port),
		Handler: server.Handler(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("sync server: %w", err)
	}
	return nil
}

func syncDiscoverCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Listen for serving devices on the local network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load("fabula.yaml")
			if err != nil {
				return err
			}
			devices, err := sync.Discover(context.Background(), cfg.Sync.DiscoveryPort, timeout)
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(os.Stdout, "No devices found.")
				return nil
			}
			for _, d := range devices {
				fmt.Fprintf(os.Stdout, "%s at %s:%d (version %s)\n", d.DeviceName, d.IP, d.Port, d.Version)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to listen")
	return cmd
}

func syncListCmd() *cobra.Command {
	var host, token string
	var port int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stories available on a peer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sync.NewClient(host, port, token)
			stories, err := client.ListStories(context.Background())
			if err != nil {
				return err
			}
			if len(stories) == 0 {
				fmt.Fprintln(os.Stdout, "No stories available.")
				return nil
			}
			for _, s := range stories {
				fmt.Fprintf(os.Stdout, "%s  %s (%d entries, updated %s)\n",
					s.ID, s.Title, s.EntryCount, humanize.Time(time.Unix(s.UpdatedAt, 0)))
			}
			return nil
		},
	}
	addPeerFlags(cmd, &host, &port, &token)
	return cmd
}

func syncPullCmd() *cobra.Command {
	var host, token string
	var port int
	cmd := &cobra.Command{
		Use:   "pull <story-id>",
		Short: "Pull a story from a peer into the local database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load("fabula.yaml")
			if err != nil {
				return err
			}
			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			client := sync.NewClient(host, port, token)
			data, err := client.PullStory(ctx, args[0])
			if err != nil {
				return err
			}

			title, err := sync.NewStoreExporter(db).ImportStory(ctx, data)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Pulled %q\n", title)
			return nil
		},
	}
	addPeerFlags(cmd, &host, &port, &token)
	return cmd
}

func syncPushCmd() *cobra.Command {
	var host, token string
	var port int
	cmd := &cobra.Command{
		Use:   "push <story-id>",
		Short: "Push a local story to a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load("fabula.yaml")
			if err != nil {
				return err
			}
			db, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close(ctx)

			data, title, err := sync.NewStoreExporter(db).ExportStory(ctx, args[0])
			if err != nil {
				return err
			}

			client := sync.NewClient(host, port, token)
			if err := client.PushStory(ctx, data); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Pushed %q\n", title)
			return nil
		},
	}
	addPeerFlags(cmd, &host, &port, &token)
	return cmd
}

func addPeerFlags(cmd *cobra.Command, host *string, port *int, token *string) {
	cmd.Flags().StringVar(host, "host", "", "Peer address")
	cmd.Flags().IntVar(port, "port", sync.DefaultPort, "Peer sync port")
	cmd.Flags().StringVar(token, "token", "", "Peer token or 6-digit connect code")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("token")
}

// localIP finds the outbound interface address without sending traffic.
func localIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
