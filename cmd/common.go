package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alantheprice/yardcheck/pkg/chat"
	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/events"
	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/pipeline"
	"github.com/alantheprice/yardcheck/pkg/prompts"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

// services is everything a command needs to talk to the models.
type services struct {
	cfg      *configuration.Config
	logger   *utils.Logger
	events   *events.EventBus
	gateway  api.Gateway
	pipeline *pipeline.Pipeline
	chat     *chat.Service
}

func loadConfig() (*configuration.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = configuration.GetConfigPath(); err != nil {
			return nil, err
		}
	}
	return configuration.Load(path)
}

func newServices() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Provider == configuration.ProviderOpenAI && cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, prompts.MissingAPIKey())
	}

	logger := utils.GetLogger()
	logger.SetJSONMode(jsonLogs)
	gateway, err := api.NewGatewayFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	bus := events.NewEventBus()
	return &services{
		cfg:      cfg,
		logger:   logger,
		events:   bus,
		gateway:  gateway,
		pipeline: pipeline.NewFromConfig(cfg, gateway, bus, logger),
		chat:     chat.NewServiceFromConfig(cfg, gateway, bus, logger),
	}, nil
}

// signalContext is cancelled on the first SIGINT/SIGTERM; a second one exits.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nReceived %v, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}
		<-sigCh
		fmt.Fprintln(os.Stderr, "Force quitting.")
		os.Exit(1)
	}()
	return ctx, cancel
}

// recordRun mirrors bus events into a JSONL run log until the returned stop
// function is called. Failing to open the log only disables it.
func (svc *services) recordRun(id string) (stop func()) {
	runLog, err := utils.NewRunLogger(utils.RunLogDir(), id)
	if err != nil {
		svc.logger.LogError(err)
		return func() {}
	}
	runLog.Redact(svc.cfg.APIKey)

	name := "runlog-" + id
	ch := svc.events.Subscribe(name)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range ch {
			fields := map[string]any{"event_id": event.ID}
			if data, ok := event.Data.(map[string]any); ok {
				for k, v := range data {
					fields[k] = v
				}
			}
			runLog.LogEvent(event.Type, fields)
		}
	}()
	return func() {
		svc.events.Unsubscribe(name)
		<-done
		_ = runLog.Close()
	}
}

// showProgress prints stage events to w while the returned stop function has
// not been called.
func (svc *services) showProgress(w io.Writer) (stop func()) {
	const name = "cli-progress"
	ch := svc.events.Subscribe(name)
	width := utils.GetTerminalSize().Width
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range ch {
			if line := progressLine(event); line != "" {
				fmt.Fprintln(w, utils.TruncateString(line, width))
			}
		}
	}()
	return func() {
		svc.events.Unsubscribe(name)
		<-done
	}
}

func progressLine(event events.UIEvent) string {
	data, _ := event.Data.(map[string]any)
	stage, _ := data["stage"].(string)
	label := strings.ReplaceAll(stage, "_", " ")
	if idx, ok := data["image_index"].(int); ok {
		label = fmt.Sprintf("%s %d", label, idx+1)
	}
	switch event.Type {
	case events.EventTypeStageStarted:
		return fmt.Sprintf("  > %s...", label)
	case events.EventTypeStageCompleted:
		return fmt.Sprintf("  ✓ %s (%vms)", label, data["duration_ms"])
	case events.EventTypeStageFailed:
		return fmt.Sprintf("  ✗ %s: %v", label, data["error"])
	default:
		return ""
	}
}

func loadImage(path string) (*imageref.ImageRef, error) {
	if path == "" {
		return nil, nil
	}
	return imageref.FromFile(path)
}

func loadImages(paths []string) ([]*imageref.ImageRef, error) {
	images := make([]*imageref.ImageRef, 0, len(paths))
	for _, p := range paths {
		img, err := imageref.FromFile(p)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// describeImage is the one-line summary printed when a photo is loaded.
func describeImage(path string, img *imageref.ImageRef) string {
	w, h := img.Dimensions()
	return fmt.Sprintf("%s: %s %dx%d, %s", path, img.MIMEType(), w, h, utils.FormatFileSize(int64(len(img.Bytes()))))
}

// readTextArg returns the contents of the file named by value when it starts
// with "@", otherwise value itself.
func readTextArg(value string) (string, error) {
	if name, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		return utils.NormalizeNewlines(string(data)), nil
	}
	return value, nil
}

func writeOutput(path, text string) error {
	if path == "" || path == "-" {
		_, err := fmt.Fprint(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
	return nil
}
