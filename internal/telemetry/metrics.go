package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/detectors/aws/ecs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/cmu-study-buddy/course-crawler/config"
	"github.com/google/uuid"
)

var meter metric.Meter

type MetricsProvider struct {
	AppMetrics *AppMetrics
	Close      func()
}

type AppMetrics struct {
	CoursesScrapedCnt      func(count int64)
	CoursesFailedCnt       func(count int64)
	ArtifactsDownloadedCnt func(count int64)
	CandidateExhaustedCnt  func(count int64)
}

func SetupMetrics(ctx context.Context, cfg *config.Config) *MetricsProvider {
	metricsProvider := new(MetricsProvider)
	var meterProvider *sdkmetric.MeterProvider

	if cfg.TelemetrySettings.Enabled {
		r, err := newResource(cfg)
		if err != nil {
			slog.Error("failed to get resource.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		exporter, err := newMetricExporter(ctx, cfg.TelemetrySettings)
		if err != nil {
			slog.Error("failed to get metric exporter.", slog.String("err", err.Error()))
			os.Exit(1)
		}
		meterProvider = newMeterProvider(exporter, *r)
		otel.SetMeterProvider(meterProvider)
	}

	meter = otel.Meter(cfg.ServiceName)
	metricsProvider.Close = func() {
		if meterProvider != nil {
			err := meterProvider.Shutdown(ctx)
			if err != nil {
				slog.Error("failed to shutdown metrics provider.", slog.String("err", err.Error()))
			}
		}
	}

	coursesScrapedCounter, err := meter.Int64Counter("course-crawler.courses.success",
		metric.WithDescription("The number of courses scraped and written back without a fatal error"),
		metric.WithUnit("{courses}"))
	coursesFailedCounter, err := meter.Int64Counter("course-crawler.courses.fail",
		metric.WithDescription("The number of courses whose crawl aborted"),
		metric.WithUnit("{courses}"))
	artifactsCounter, err := meter.Int64Counter("course-crawler.artifacts.downloaded",
		metric.WithDescription("The number of artifacts written to the content store"),
		metric.WithUnit("{artifacts}"))
	exhaustedCounter, err := meter.Int64Counter("course-crawler.courses.unreachable",
		metric.WithDescription("The number of courses where every candidate URL failed"),
		metric.WithUnit("{courses}"))
	if err != nil {
		slog.Error("failed to create telemetry counters.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	metricsProvider.AppMetrics = &AppMetrics{
		CoursesScrapedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				coursesScrapedCounter.Add(ctx, count)
			}
		},
		CoursesFailedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				coursesFailedCounter.Add(ctx, count)
			}
		},
		ArtifactsDownloadedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				artifactsCounter.Add(ctx, count)
			}
		},
		CandidateExhaustedCnt: func(count int64) {
			if cfg.TelemetrySettings.Enabled {
				exhaustedCounter.Add(ctx, count)
			}
		},
	}

	return metricsProvider
}

func newResource(cfg *config.Config) (*resource.Resource, error) {
	ecsResourceDetector := ecs.NewResourceDetector()
	ecsResource, err := ecsResourceDetector.Detect(context.Background())
	if err != nil {
		slog.Error("ecs detection failed", slog.String("err", err.Error()))
	}
	mergedResource, err := resource.Merge(ecsResource, resource.Default())
	if err != nil {
		slog.Error("failed to merge resources", slog.String("err", err.Error()))
	}
	keyValue, found := ecsResource.Set().Value("container.id")
	var serviceId string
	if found {
		serviceId = keyValue.AsString()
	} else {
		serviceId = uuid.New().String()
	}
	return resource.Merge(mergedResource,
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Env),
			semconv.ServiceInstanceID(serviceId),
		))
}

func newMetricExporter(ctx context.Context, cfg *config.TelemetryConfig) (sdkmetric.Exporter, error) {
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.CollectorUrl),
		otlpmetrichttp.WithInsecure())
}

func newMeterProvider(meterExporter sdkmetric.Exporter, resource resource.Resource) *sdkmetric.MeterProvider {
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(meterExporter)),
		sdkmetric.WithResource(&resource),
	)
	return meterProvider
}
