//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/HarvardViz/data-processing/internal/adapter/blobstore"
	"github.com/HarvardViz/data-processing/internal/adapter/kafka"
	"github.com/HarvardViz/data-processing/internal/config"
	"github.com/HarvardViz/data-processing/internal/domain"
	"github.com/HarvardViz/data-processing/internal/observability"
	"github.com/HarvardViz/data-processing/internal/pipeline"
)

const topicPrefix = "it."

var est = time.FixedZone("EST", -5*60*60)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	c, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("cambridge-it"))
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start kafka container")

	brokers, err := c.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

type received struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// readN consumes n messages from topic, from the first offset.
func readN(ctx context.Context, t *testing.T, broker, topic string, n int) []received {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     fmt.Sprintf("it-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	out := make([]received, 0, n)
	for len(out) < n {
		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		cancel()
		require.NoError(t, err, "read from %s", topic)

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		out = append(out, received{Key: string(msg.Key), Value: msg.Value, Headers: headers})
	}
	return out
}

func seedSources(t *testing.T) *blob.Bucket {
	t.Helper()
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })

	objects := map[string]string{
		"neighborhoods.geojson": `{"type":"FeatureCollection","features":[` +
			`{"type":"Feature","properties":{"N_HOOD":"N1"},"geometry":{"type":"Polygon","coordinates":[[[-71.11,42.38],[-71.10,42.38],[-71.10,42.39],[-71.11,42.39],[-71.11,42.38]]]}}]}`,
		"ACCIDENT-2010-2013.csv": "Date Time,Day Of Week,Object 1,Object 2,Steet Name,Cross Street,Location,Latitude,Longitude\n" +
			"03/02/2012 05:30:00 PM,Friday,Auto,Pedestrian,MAIN ST,,MAIN ST & AMES ST,42.385,-71.105\n" +
			"01/15/2011 08:00:00 AM,Saturday,Auto,Bicycle,BROADWAY,,BROADWAY,42.5,-71.2\n",
		"CITATIONS.csv": "Ticket Issued Date,Charge Description\n" +
			"07/04/2013 11:00:00 AM,SPEEDING\n",
		"weather.csv": "EST,Max TemperatureF, Mean TemperatureF, Min TemperatureF, Max VisibilityMiles, Mean VisibilityMiles, Min VisibilityMiles, PrecipitationIn, Events\n" +
			"2012-3-7,50,40,30,10,9,5,0.10,Rain\n",
		"sun/2012.txt": astroText(2012, 3, 7, "0613 1748"),
	}
	for key, body := range objects {
		require.NoError(t, bucket.WriteAll(ctx, key, []byte(body), nil))
	}
	return bucket
}

// astroText renders a yearly rise/set table with one filled cell.
func astroText(year, month, day int, cell string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nLocation: W071 06, N42 22          Rise and Set for the Sun for %d\n", year)
	for range 7 {
		b.WriteString("\n")
	}
	for d := 1; d <= 31; d++ {
		line := []byte(strings.Repeat(" ", 4+11*12))
		copy(line, fmt.Sprintf("%02d", d))
		if d == day {
			copy(line[4+11*(month-1):], cell)
		}
		b.WriteString(strings.TrimRight(string(line), " "))
		b.WriteString("\n")
	}
	return b.String()
}

// TestPipelineToKafka runs the pipeline from blob sources into a real broker
// and checks each collection's keys and headers.
func TestPipelineToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	for _, c := range []string{
		kafka.CollectionIncidents, kafka.CollectionCitations, kafka.CollectionWeather,
		kafka.CollectionNeighborhoods, kafka.CollectionReports,
	} {
		createTopic(t, broker, topicPrefix+c)
	}

	cfg := &config.Config{
		KafkaBrokers:         []string{broker},
		KafkaTopicPrefix:     topicPrefix,
		KafkaBatchSize:       50,
		KafkaBatchFlush:      100 * time.Millisecond,
		SourceZone:           est,
		NeighborhoodsKey:     "neighborhoods.geojson",
		NeighborhoodProperty: "properties.N_HOOD",
		IncidentSources:      []config.IncidentSource{{Key: "ACCIDENT-2010-2013.csv", Vintage: "2010-2013"}},
		CitationsKey:         "CITATIONS.csv",
		WeatherKey:           "weather.csv",
		AstroKeyPattern:      "sun/{year}.txt",
		AstroYears:           []int{2012},
	}

	sink := kafka.NewSink(cfg, discardLogger())
	t.Cleanup(func() { _ = sink.Close() })

	p := pipeline.New(
		blobstore.NewSource(seedSources(t), cfg, discardLogger()),
		sink,
		pipeline.Options{SourceZone: est, AstroZone: est},
		discardLogger(),
		observability.NewMetricsForTesting(),
	)
	report, err := p.Run(ctx)
	require.NoError(t, err)

	incidents := readN(ctx, t, broker, topicPrefix+kafka.CollectionIncidents, 2)
	var first domain.IncidentRecord
	require.NoError(t, json.Unmarshal(incidents[0].Value, &first))
	assert.Equal(t, first.ID, incidents[0].Key)
	assert.Equal(t, "incidents", incidents[0].Headers["collection"])
	assert.Equal(t, "2011-01-15T13:00:00Z", incidents[0].Headers["date"])
	assert.Nil(t, first.Neighborhood, "earliest incident lies outside every region")

	var second domain.IncidentRecord
	require.NoError(t, json.Unmarshal(incidents[1].Value, &second))
	require.NotNil(t, second.Neighborhood)
	assert.Equal(t, "N1", *second.Neighborhood)

	weather := readN(ctx, t, broker, topicPrefix+kafka.CollectionWeather, 1)
	assert.Equal(t, "2012-03-07", weather[0].Key)
	var day domain.WeatherRecord
	require.NoError(t, json.Unmarshal(weather[0].Value, &day))
	require.NotNil(t, day.Sunrise)
	assert.Equal(t, time.Date(2012, 3, 7, 11, 13, 0, 0, time.UTC), day.Sunrise.UTC())

	stats := readN(ctx, t, broker, topicPrefix+kafka.CollectionNeighborhoods, 1)
	assert.Equal(t, "N1", stats[0].Key)
	assert.NotContains(t, stats[0].Headers, "date")

	reports := readN(ctx, t, broker, topicPrefix+kafka.CollectionReports, 1)
	assert.Equal(t, report.RunID, reports[0].Key)
	var got domain.RunReport
	require.NoError(t, json.Unmarshal(reports[0].Value, &got))
	assert.Equal(t, 2, got.Family(domain.FamilyIncidents).Written)
	assert.Equal(t, 1, got.Family(domain.FamilyCitations).Written)
}
