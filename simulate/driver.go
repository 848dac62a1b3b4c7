package simulate

import (
	"context"

	"github.com/integrationkit/apphost/capture"
	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/framework/helpers"
	"github.com/integrationkit/apphost/pipeline"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const tracerName = "github.com/integrationkit/apphost/simulate"

// Driver submits simulated requests to a runtime, one at a time.
type Driver struct {
	runtime pipeline.Runtime
	tracer  trace.Tracer
	logger  framework.Logger
}

// DriverOption is an option for NewDriver.
type DriverOption helpers.ConfigOption[Driver]

// WithTracerProvider makes the driver record one span per request.
func WithTracerProvider(tp trace.TracerProvider) DriverOption {
	return helpers.OptionFunc[Driver](func(d *Driver) error {
		if tp != nil {
			d.tracer = tp.Tracer(tracerName)
		}
		return nil
	})
}

// WithLogger makes the driver log every request.
func WithLogger(logger framework.Logger) DriverOption {
	return helpers.OptionFunc[Driver](func(d *Driver) error {
		d.logger = framework.LoggerWithPrefix(logger, "[driver] ")
		return nil
	})
}

// NewDriver creates a Driver for rt.
func NewDriver(rt pipeline.Runtime, options ...DriverOption) (*Driver, error) {
	d := &Driver{
		runtime: rt,
		tracer:  noop.NewTracerProvider().Tracer(tracerName),
		logger:  framework.NullLogger(),
	}
	if err := helpers.ApplyOptions(d, options...); err != nil {
		return nil, err
	}
	return d, nil
}

// Drive resets box, then submits req to the runtime with box attached to the request context,
// so that a capture.Interceptor installed in the runtime fills it. It blocks until the runtime
// has handled the request. Errors from the runtime are returned unchanged.
func (d *Driver) Drive(ctx context.Context, box *capture.Box, req *Request) error {
	if req == nil {
		return &framework.ArgumentError{Name: "req", Reason: "must not be nil"}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := d.tracer.Start(ctx, "apphost.simulate.drive", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("url.path", req.Path),
		attribute.String("url.query", req.Query),
	))
	defer span.End()

	if box != nil {
		box.Reset()
		ctx = capture.NewContext(ctx, box)
	}
	d.logger.Printf("%s /%s", req.Method, req.Path)
	err := d.runtime.ProcessRequest(newWorkerRequest(ctx, req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Printf("%s /%s failed: %s", req.Method, req.Path, err)
		return err
	}
	if box != nil {
		if resp := box.Snapshot().Response; resp != nil {
			span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
		}
	}
	return nil
}
