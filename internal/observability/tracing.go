package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Standard OTEL sampler variables. They are read here rather than in config.Config
// so the SDK conventions keep working unchanged.
const (
	envTracesSampler    = "OTEL_TRACES_SAMPLER"
	envTracesSamplerArg = "OTEL_TRACES_SAMPLER_ARG"
)

const fallbackSampler = "parentbased_always_on"

var samplers = map[string]func(ratio float64) sdktrace.Sampler{
	"always_on":  func(float64) sdktrace.Sampler { return sdktrace.AlwaysSample() },
	"always_off": func(float64) sdktrace.Sampler { return sdktrace.NeverSample() },
	"traceidratio": func(ratio float64) sdktrace.Sampler {
		return sdktrace.TraceIDRatioBased(ratio)
	},
	"parentbased_always_on": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	},
	"parentbased_always_off": func(float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.NeverSample())
	},
	"parentbased_traceidratio": func(ratio float64) sdktrace.Sampler {
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	},
}

// samplerFromEnv picks a sampler by OTEL_TRACES_SAMPLER name. Unknown names fall
// back to parentbased_always_on, the SDK default.
func samplerFromEnv() sdktrace.Sampler {
	name := strings.ToLower(strings.TrimSpace(os.Getenv(envTracesSampler)))

	build, ok := samplers[name]
	if !ok {
		build = samplers[fallbackSampler]
	}

	return build(samplingRatio(os.Getenv(envTracesSamplerArg)))
}

// samplingRatio parses a ratio in [0, 1]; anything else samples everything.
func samplingRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1
	}

	return ratio
}

// spanExporter builds the exporter named by OTEL_TRACES_EXPORTER. ok is false for
// names that are not supported, which disables tracing.
func spanExporter(ctx context.Context, kind string) (exp sdktrace.SpanExporter, ok bool, err error) {
	switch kind {
	case "otlp":
		// Endpoint and TLS come from OTEL_EXPORTER_OTLP_* variables.
		exp, err = otlptracehttp.New(ctx)
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, false, nil
	}

	if err != nil {
		return nil, true, fmt.Errorf("create %s trace exporter: %w", kind, err)
	}

	return exp, true, nil
}
