package serve

import (
	"context"
	"fmt"
	"os"

	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"github.com/stratastor/horcrux/config"
	"github.com/stratastor/horcrux/internal/common"
	"github.com/stratastor/horcrux/internal/constants"
	"github.com/stratastor/horcrux/internal/events"
	"github.com/stratastor/horcrux/internal/services/manager"
	"github.com/stratastor/horcrux/pkg/lifecycle"
)

var detached bool

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Horcrux server",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "Run as a daemon")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	rc := config.GetConfig()
	pidFile := constants.HorcruxPIDFilePath
	// Check for existing instance before proceeding
	if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}

	if detached {
		ctx := &daemon.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			LogFileName: rc.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        []string{"horcrux", "serve"},
		}

		d, err := ctx.Reborn()
		if err != nil {
			fmt.Printf("Failed to start daemon: %v\n", err)
			os.Exit(1)
		}

		if d != nil {
			fmt.Println("Horcrux is running as a daemon")
			return
		}
		defer ctx.Release()
	}

	startServer()
}

func startServer() {
	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register the context canceller
	lifecycle.RegisterContextCanceller(cancel)

	svcMgr, err := manager.NewServiceManager(common.Log)
	if err != nil {
		fmt.Printf("Failed to initialize services: %v\n", err)
		os.Exit(1)
	}

	// Register component cleanup before events.Initialize below registers
	// its own hook to flush and close the sink — shutdownHooks run in
	// registration order, so this must emit the final event and close
	// every component while the sink is still accepting writes.
	lifecycle.RegisterShutdownHook(func() {
		fmt.Println("Shutting down Horcrux")
		events.EmitSystemShutdown("signal", nil)
		if err := svcMgr.Close(); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	})

	if err := events.Initialize(ctx, common.Log); err != nil {
		common.Log.Warn("Failed to initialize event sink, continuing without it", "err", err)
	}
	events.EmitSystemStartup("serve")

	// Start handling lifecycle signals (e.g., SIGTERM, SIGHUP)
	go lifecycle.HandleSignals(ctx)

	fmt.Println("Starting Horcrux")
	statuses := svcMgr.UnitStatuses(ctx)
	for unit, state := range statuses {
		common.Log.Info("Observed unit status at startup", "unit", unit, "state", state)
	}

	if err := svcMgr.Start(ctx); err != nil {
		fmt.Printf("Failed to start scheduler: %v\n", err)
	}

	<-ctx.Done()
}
