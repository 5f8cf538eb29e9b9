package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"github.com/imrishuroy/go-foodorder/internal/logging"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

func TestRecorder_Count(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewRecorder(mock, "FoodOrder", logging.Discard())

	r.Count(context.Background(), "PaymentConfirmed", map[string]string{"Source": "ipn", "Env": "test"})

	if len(mock.inputs) != 1 {
		t.Fatalf("expected one call, got %d", len(mock.inputs))
	}
	in := mock.inputs[0]
	if *in.Namespace != "FoodOrder" || len(in.MetricData) != 1 {
		t.Fatalf("unexpected input %+v", in)
	}
	d := in.MetricData[0]
	if *d.MetricName != "PaymentConfirmed" || *d.Value != 1 {
		t.Fatalf("unexpected datum %+v", d)
	}
	if len(d.Dimensions) != 2 || *d.Dimensions[0].Name != "Env" || *d.Dimensions[1].Value != "ipn" {
		t.Fatalf("dimensions not sorted: %+v", d.Dimensions)
	}
}

func TestRecorder_ErrorIsSwallowed(t *testing.T) {
	r := NewRecorder(&mockCloudWatch{err: errors.New("throttled")}, "FoodOrder", logging.Discard())
	r.Count(context.Background(), "PaymentFailed", nil)
	Nop{}.Count(context.Background(), "PaymentFailed", nil)
}
