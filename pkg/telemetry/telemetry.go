// Package telemetry wires OpenTelemetry tracing and logging and reports
// connector payloads for debugging.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlplog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/denysvitali/fm-connector/pkg/config"
)

const serviceName = "fm-connector"

// Initialize sets up OpenTelemetry tracing and logging using autoexport.
// An explicit endpoint takes effect unless OTEL_EXPORTER_OTLP_ENDPOINT is
// already set.
func Initialize(cfg config.TelemetryConfig, logger *logrus.Logger) (func(), error) {
	if cfg.Endpoint != "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		if err := os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("failed to set exporter endpoint: %w", err)
		}
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, err
	}

	spanExporter, err := autoexport.NewSpanExporter(context.Background())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spanExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	// Logs are optional: tracing still works without an exporter
	logExporter, err := autoexport.NewLogExporter(context.Background())
	if err != nil {
		logger.Warnf("Failed to create log exporter: %v", err)
	}

	var logProvider *sdklog.LoggerProvider
	if logExporter != nil {
		logProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(logProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tp.Shutdown(ctx); err != nil {
			logger.Errorf("Error shutting down tracer provider: %v", err)
		}

		if logProvider != nil {
			if err := logProvider.Shutdown(ctx); err != nil {
				logger.Errorf("Error shutting down log provider: %v", err)
			}
		}
	}, nil
}

// ReportJSON reports the given data as JSON in both traces and logs (debug level)
func ReportJSON(ctx context.Context, logger *logrus.Logger, operationName string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Errorf("Failed to marshal %s data to JSON: %v", operationName, err)
		return
	}

	ReportJSONInTrace(ctx, operationName, data, jsonData)
	ReportJSONInLogs(ctx, logger, operationName, data, jsonData)
}

// ReportJSONInTrace records the JSON document as a child span of ctx. Top
// level scalar fields of an object become individual attributes.
func ReportJSONInTrace(ctx context.Context, operationName string, data any, jsonData []byte) {
	_, span := otel.Tracer(serviceName).Start(ctx, operationName)
	defer span.End()

	span.SetAttributes(
		attribute.String("json.data", string(jsonData)),
		attribute.String("data.type", dataType(data)),
	)

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return
	}
	for key, value := range fields {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String("data."+key, v))
		case float64:
			span.SetAttributes(attribute.Float64("data."+key, v))
		case bool:
			span.SetAttributes(attribute.Bool("data."+key, v))
		}
	}
}

// ReportJSONInLogs logs JSON data at debug level
func ReportJSONInLogs(ctx context.Context, logger *logrus.Logger, operationName string, data any, jsonData []byte) {
	logger.WithFields(logrus.Fields{
		"operation": operationName,
		"json_data": string(jsonData),
		"data_type": dataType(data),
	}).Debug("JSON data reported")

	// Also send to OpenTelemetry logs if available
	otelLogger := global.GetLoggerProvider().Logger(serviceName)
	if otelLogger == nil {
		return
	}
	now := time.Now()
	var record otlplog.Record
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetSeverity(otlplog.SeverityDebug)
	record.SetSeverityText("DEBUG")
	record.SetBody(otlplog.StringValue(string(jsonData)))
	record.AddAttributes(
		otlplog.String("operation", operationName),
		otlplog.String("data_type", dataType(data)),
	)
	otelLogger.Emit(ctx, record)
}

// dataType names the Go type of a reported value, e.g. *models.FileInfo
func dataType(data any) string {
	if data == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", data)
}
