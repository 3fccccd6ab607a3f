package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/crewsched/core/metrics"
	"github.com/kilianp07/crewsched/infra/logger"
)

// InfluxSink writes commit, travel and session events to InfluxDB using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig is the conf block of an "influx" metrics sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCommit writes one commit outcome.
func (s *InfluxSink) RecordCommit(rec coremetrics.CommitRecord) error {
	p := write.NewPointWithMeasurement("commit").
		AddTag("op", rec.Op).
		AddTag("outcome", rec.Outcome).
		AddTag("component", "commit_controller")
	if rec.Reason != "" {
		p = p.AddTag("reason", string(rec.Reason))
	}
	if rec.CrewID != "" {
		p = p.AddTag("crew_id", rec.CrewID)
	}
	p = p.AddTag("day", string(rec.Day)).
		AddField("snap_minutes", rec.SnapDelta).
		AddField("duration_ms", rec.Duration.Milliseconds()).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordTravelLookup writes one travel request.
func (s *InfluxSink) RecordTravelLookup(rec coremetrics.TravelLookupRecord) error {
	p := write.NewPointWithMeasurement("travel_lookup").
		AddTag("outcome", rec.Outcome).
		AddTag("component", "travel_resolver").
		AddField("latency_ms", rec.Latency.Milliseconds()).
		SetTime(rec.Time)
	return s.write(p)
}

// RecordSession writes one finished interaction session.
func (s *InfluxSink) RecordSession(rec coremetrics.SessionRecord) error {
	p := write.NewPointWithMeasurement("interaction_session").
		AddTag("kind", rec.Kind).
		AddTag("committed", strconv.FormatBool(rec.Committed))
	if rec.Reason != "" {
		p = p.AddTag("reason", string(rec.Reason))
	}
	p = p.AddField("samples", rec.Samples).SetTime(rec.Time)
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }
