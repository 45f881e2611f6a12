package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

var restyTracer = otel.Tracer("milesfare.http")

// MessageOutput receives full request/response dumps keyed by request id.
type MessageOutput interface {
	Write(id string, contents string)
}

type restyInstrument struct {
	tel    API
	output MessageOutput
	nextID *atomic.Uint64
}

type requestInfoKey struct{}

type requestInfo struct {
	id    uint64
	start time.Time
	span  trace.Span
}

// InstrumentResty traces and reports every request made by client. When
// output is not nil it also receives a dump of each exchange.
func InstrumentResty(client *resty.Client, tel API, output MessageOutput) {
	i := restyInstrument{tel: tel, output: output, nextID: &atomic.Uint64{}}
	client.OnBeforeRequest(i.before)
	client.OnAfterResponse(i.after)
	client.OnError(i.failed)
}

func (i restyInstrument) before(_ *resty.Client, req *resty.Request) error {
	id := i.nextID.Add(1)
	ctx, span := restyTracer.Start(req.Context(), req.Method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL),
	)
	ctx = context.WithValue(ctx, requestInfoKey{}, requestInfo{id: id, start: time.Now(), span: span})
	req.SetContext(ctx)

	i.tel.ReportDebug(report_resty_request, id, req.Method, req.URL)
	return nil
}

func infoOf(ctx context.Context) (requestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(requestInfo)
	return info, ok
}

func (i restyInstrument) after(_ *resty.Client, res *resty.Response) error {
	info, ok := infoOf(res.Request.Context())
	if !ok {
		return nil
	}
	info.span.SetAttributes(attribute.Int("http.status_code", res.StatusCode()))
	if res.IsError() {
		info.span.SetStatus(codes.Error, res.Status())
	}
	info.span.End()

	i.tel.ReportDebug(report_resty_response, info.id, time.Since(info.start).String(), res.Status())
	if i.output != nil {
		i.output.Write(fmt.Sprintf("%d.txt", info.id), formatExchange(res))
	}
	return nil
}

func (i restyInstrument) failed(req *resty.Request, err error) {
	var elapsed time.Duration
	if info, ok := infoOf(req.Context()); ok {
		elapsed = time.Since(info.start)
		info.span.RecordError(err)
		info.span.SetStatus(codes.Error, err.Error())
		info.span.End()
	}
	i.tel.ReportBroken(report_resty_response, err, req.Method, req.URL, elapsed)
}

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func requestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return "<no body>"
	}
	body, err := req.GetBody()
	if err != nil {
		return "<unreadable body: " + err.Error() + ">"
	}
	if body == nil {
		return "<no body>"
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return "<unreadable body: " + err.Error() + ">"
	}
	if len(contents) == 0 {
		return "<no body>"
	}
	return string(contents)
}

// formatExchange renders a request and its response as plain text.
func formatExchange(res *resty.Response) string {
	var out strings.Builder

	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		writeHeaders(&out, res.Request.RawRequest.Header)
	}
	out.WriteString("\n")
	out.WriteString(requestBody(res.Request.RawRequest))

	out.WriteString("\n\n---- RESPONSE ----\n\n")
	location := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			location = redirected.String()
		}
	}
	fmt.Fprintf(&out, "%d %s\n\n", res.StatusCode(), location)
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	out.WriteString(res.String())

	return out.String()
}
