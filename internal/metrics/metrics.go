package metrics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-foodorder/internal/aws"
)

// Recorder publishes counters to CloudWatch. Failures are logged and dropped.
type Recorder struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *slog.Logger
	nowFunc   func() time.Time
}

func NewRecorder(client aws.CloudWatchAPI, namespace string, log *slog.Logger) *Recorder {
	return &Recorder{
		client:    client,
		namespace: namespace,
		log:       log.With(slog.String("component", "metrics")),
		nowFunc:   time.Now,
	}
}

// Count adds one to name with the given dimensions.
func (r *Recorder) Count(ctx context.Context, name string, dims map[string]string) {
	datum := cwtypes.MetricDatum{
		MetricName: sdkaws.String(name),
		Timestamp:  sdkaws.Time(r.nowFunc()),
		Unit:       cwtypes.StandardUnitCount,
		Value:      sdkaws.Float64(1),
		Dimensions: dimensions(dims),
	}
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		r.log.Warn("put metric failed", slog.String("metric", name), slog.Any("error", err))
	}
}

func dimensions(dims map[string]string) []cwtypes.Dimension {
	if len(dims) == 0 {
		return nil
	}
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		out = append(out, cwtypes.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(dims[k])})
	}
	return out
}

// Nop discards every metric.
type Nop struct{}

func (Nop) Count(ctx context.Context, name string, dims map[string]string) {}
