package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/RepairWorkshop/internal/api"
	"github.com/AaronLay10/RepairWorkshop/internal/events"
	"github.com/AaronLay10/RepairWorkshop/internal/game"
	"github.com/AaronLay10/RepairWorkshop/internal/mqtt"
	"github.com/AaronLay10/RepairWorkshop/internal/storage"
	"github.com/AaronLay10/RepairWorkshop/internal/version"
)

const healthInterval = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game host with its HTTP and MQTT transports",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openState(ctx)
	if err != nil {
		return fmt.Errorf("failed to open workshop: %w", err)
	}
	defer st.Close()
	cfg := st.cfg

	events.SetSink(st.backend)
	defer events.SetSink(nil)
	api.SetStorageState(true, false)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "workshop starting", map[string]interface{}{
		"workshop_id": cfg.Workshop.ID,
		"hostname":    hostname,
		"pid":         os.Getpid(),
		"version":     version.Version,
		"storage":     cfg.StorageDriver(),
	})

	api.InitMetrics()
	api.SetWorkshopName(cfg.DisplayName())
	if err := api.InitAuth(); err != nil {
		return err
	}
	api.InitTLS(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey)
	api.InitAlerts()

	loop := game.NewLoop(256)
	host := game.NewHost(loop, st.unlocks, st.recorder, game.Options{TickInterval: cfg.Tick()})
	host.AddObserver(api.MetricsObserver())
	go host.Run(ctx)
	api.SetHostReady(true)

	var client *mqtt.Client
	if cfg.MQTT.Disabled {
		api.SetMQTTState(false, true)
	} else {
		prefix := cfg.TopicPrefix()
		client = mqtt.NewClient(mqtt.BrokerURL(cfg.MQTT.Broker), "workshop-"+cfg.Workshop.ID)
		input := mqtt.NewInputSubscriber(host)
		connected := client.StartWithRetry(mqtt.InputTopic(prefix), input.Handler())
		api.SetMQTTState(connected, !cfg.MQTT.Required)
		go mqtt.NewForwarder(client, prefix).Run(ctx)
		defer client.Disconnect()
	}

	go monitorDependencies(ctx, st.backend, client, !cfg.MQTT.Required)
	go api.RunAlertMonitor(ctx, healthInterval)

	srv := api.NewServer(host, st.recorder, st.backend)
	serveErr := srv.ListenAndServe(ctx, cfg.HTTPPort())

	api.SetHostReady(false)
	loop.Stop()
	events.Emit("info", "system.shutdown", "", map[string]interface{}{
		"workshop_id": cfg.Workshop.ID,
	})
	events.CloseAllSubscribers()
	return serveErr
}

// monitorDependencies refreshes readiness from the store and broker.
func monitorDependencies(ctx context.Context, backend storage.Backend, client *mqtt.Client, mqttOptional bool) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := backend.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Printf("storage ping failed: %v", err)
			}
			api.SetStorageState(err == nil, false)

			if client != nil {
				api.SetMQTTState(client.IsConnected(), mqttOptional)
			}
		}
	}
}
