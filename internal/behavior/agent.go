package behavior

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkallio/vigil-platform/internal/activity"
	"github.com/pkallio/vigil-platform/internal/behavior/patterns"
	"github.com/pkallio/vigil-platform/internal/behavior/types"
	"github.com/pkallio/vigil-platform/internal/fusion"
	"github.com/pkallio/vigil-platform/pkg/config"
	"github.com/pkallio/vigil-platform/pkg/mqtt"
	"github.com/pkallio/vigil-platform/pkg/postgres"
	"github.com/pkallio/vigil-platform/pkg/redis"
)

// FrameScores is the per-frame classifier output consumed from MQTT
type FrameScores struct {
	Timestamp     time.Time          `json:"timestamp"`
	PersonPresent bool               `json:"person_present"`
	VideoScores   map[string]float64 `json:"video_scores,omitempty"`
	AudioScores   map[string]float64 `json:"audio_scores,omitempty"`
}

// Agent wires the fusion and behavior pipeline to MQTT, Redis and Postgres
type Agent struct {
	mqtt        mqtt.Client
	redisClient redis.Client
	storage     *Storage
	archive     *Archive
	pgClient    postgres.Client
	cfg         *config.Config
	logger      *slog.Logger

	store    *patterns.Store
	fuser    *fusion.Fuser
	analyzer *Analyzer
}

// NewAgent creates a behavior agent with its full pipeline
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, pgClient postgres.Client, cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	store := patterns.NewStore(cfg.PatternsPath, logger)

	return &Agent{
		mqtt:        mqttClient,
		redisClient: redisClient,
		storage:     NewStorage(redisClient, logger),
		archive:     NewArchive(pgClient, logger),
		pgClient:    pgClient,
		cfg:         cfg,
		logger:      logger,
		store:       store,
		fuser:       fusion.NewFuser(cfg, logger),
		analyzer:    NewAnalyzer(cfg, store, logger),
	}, nil
}

// Analyzer exposes the analyzer for the HTTP API
func (a *Agent) Analyzer() *Analyzer {
	return a.analyzer
}

// Patterns exposes the pattern store for the HTTP API
func (a *Agent) Patterns() *patterns.Store {
	return a.store
}

// Archive exposes the durable result store for the HTTP API
func (a *Agent) Archive() *Archive {
	return a.archive
}

// Start loads the pattern catalog, subscribes to the input topics and runs
// until the context is cancelled
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting behavior agent")

	count, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load pattern catalog: %w", err)
	}
	a.logger.Info("Pattern catalog loaded", "path", a.cfg.PatternsPath, "patterns", count)

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.redisClient.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := a.archive.EnsureSchema(ctx); err != nil {
		return err
	}

	if err := a.mqtt.Subscribe(mqtt.TopicFrameScores, 0, a.handleFrame); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicFrameScores, err)
	}
	if err := a.mqtt.Subscribe(mqtt.TopicPatternReload, 0, a.handlePatternReload); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicPatternReload, err)
	}

	a.logger.Info("Subscribed to topics",
		"topics", []string{mqtt.TopicFrameScores, mqtt.TopicPatternReload})

	if a.cfg.ContinuousAnalysis {
		go a.runContinuousAnalysis(ctx)
	}

	<-ctx.Done()
	return nil
}

// Stop disconnects the agent from its backends
func (a *Agent) Stop() error {
	a.logger.Info("Stopping behavior agent")
	a.mqtt.Disconnect()
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warn("Failed to close Redis connection", "error", err)
	}
	return a.pgClient.Disconnect()
}

// runContinuousAnalysis re-analyzes the window on a fixed cadence so ongoing
// activities keep influencing results between frames
func (a *Agent) runContinuousAnalysis(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.AnalysisInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if result, ran := a.analyzer.TryAnalyze(); ran {
				a.publishResult(ctx, result)
			}
		}
	}
}

// handleFrame fuses one classifier frame and feeds it into the window
func (a *Agent) handleFrame(msg mqtt.Message) {
	var frame FrameScores
	if err := json.Unmarshal(msg.Payload(), &frame); err != nil {
		a.logger.Warn("Invalid frame scores payload", "topic", msg.Topic(), "error", err)
		return
	}

	at := frame.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	snapshot := a.fuser.Fuse(
		parseScores(frame.VideoScores),
		parseScores(frame.AudioScores),
		frame.PersonPresent,
	)

	ctx := context.Background()
	a.publishActivity(ctx, snapshot)

	// Unknown observations are ingested too: a sustained unclassifiable
	// stretch is itself a signal for the anomaly time factor
	if result, ran := a.analyzer.IngestAndMaybeAnalyze(snapshot.Activity, snapshot.Confidence, at); ran {
		a.publishResult(ctx, result)
	}
}

// handlePatternReload re-reads the catalog on request. Reload logs its own
// outcome and keeps the previous catalog on failure.
func (a *Agent) handlePatternReload(msg mqtt.Message) {
	a.store.Reload()
}

// parseScores converts raw class labels to activity types, dropping labels
// that do not map to a known activity
func parseScores(raw map[string]float64) map[activity.Type]float64 {
	if len(raw) == 0 {
		return nil
	}

	scores := make(map[activity.Type]float64, len(raw))
	for label, score := range raw {
		act := activity.Parse(label)
		if act == activity.Unknown {
			continue
		}
		scores[act] = score
	}
	return scores
}

// publishActivity emits the fused snapshot and mirrors it to Redis
func (a *Agent) publishActivity(ctx context.Context, snapshot fusion.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		a.logger.Error("Failed to marshal activity snapshot", "error", err)
		return
	}

	if err := a.mqtt.Publish(mqtt.TopicActivityState, 0, false, payload); err != nil {
		a.logger.Error("Failed to publish activity state", "error", err)
	}
	if err := a.storage.StoreActivity(ctx, snapshot); err != nil {
		a.logger.Error("Failed to store activity state", "error", err)
	}
}

// publishResult emits a behavior result and persists it to Redis and the
// Postgres archive
func (a *Agent) publishResult(ctx context.Context, result types.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		a.logger.Error("Failed to marshal behavior result", "error", err)
		return
	}

	if err := a.mqtt.Publish(mqtt.TopicBehaviorResult, 0, false, payload); err != nil {
		a.logger.Error("Failed to publish behavior result", "error", err)
	}
	if err := a.storage.StoreResult(ctx, result); err != nil {
		a.logger.Error("Failed to store behavior result", "error", err)
	}
	if err := a.archive.Insert(ctx, result); err != nil {
		a.logger.Error("Failed to archive behavior result", "error", err)
	}
}
