package logger

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	warns        int64
	errors       int64
	priceUpdates int64
	acksObserved int64
	reconnects   int64
	ordersSent   int64
)

func recordWarn() {
	atomic.AddInt64(&warns, 1)
}

func recordError() {
	atomic.AddInt64(&errors, 1)
}

// IncrementPriceUpdate counts one valid book-ticker update.
func IncrementPriceUpdate() {
	atomic.AddInt64(&priceUpdates, 1)
}

// IncrementAckObserved counts one tracked acknowledgment.
func IncrementAckObserved() {
	atomic.AddInt64(&acksObserved, 1)
}

// IncrementReconnect counts one reconnection attempt.
func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

// IncrementOrderSent counts one submitted order.
func IncrementOrderSent() {
	atomic.AddInt64(&ordersSent, 1)
}

// StartReport begins periodic logging of probe counters. The same
// snapshot is forwarded to CloudWatch when the client is configured.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	fields := Fields{
		"warns":         atomic.LoadInt64(&warns),
		"errors":        atomic.LoadInt64(&errors),
		"price_updates": atomic.LoadInt64(&priceUpdates),
		"acks_observed": atomic.LoadInt64(&acksObserved),
		"reconnects":    atomic.LoadInt64(&reconnects),
		"orders_sent":   atomic.LoadInt64(&ordersSent),
		"goroutines":    runtime.NumGoroutine(),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("Warns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns"].(int64)))},
		{MetricName: aws.String("Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors"].(int64)))},
		{MetricName: aws.String("PriceUpdates"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["price_updates"].(int64)))},
		{MetricName: aws.String("AcksObserved"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["acks_observed"].(int64)))},
		{MetricName: aws.String("Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["reconnects"].(int64)))},
		{MetricName: aws.String("OrdersSent"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_sent"].(int64)))},
	}

	publishMetrics(ctx, data)
}
