// Package socketio_emit provides the socketio_emit task kind, used to push
// build notifications to a Socket.IO endpoint such as a dashboard.
package socketio_emit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
	"github.com/xhit/go-str2duration/v2"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const defaultTimeout = 10 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the socketio_emit task.
type Input struct {
	URL       string    `hcl:"url"`
	Namespace string    `hcl:"namespace,optional"`
	Event     string    `hcl:"event"`
	Data      cty.Value `hcl:"data,optional"`
	// AckEvent, when set, is awaited after emitting; its payload is stored
	// in ResponseProperty.
	AckEvent           string `hcl:"ack_event,optional"`
	ResponseProperty   string `hcl:"response_property,optional"`
	Timeout            string `hcl:"timeout,optional"`
	InsecureSkipVerify bool   `hcl:"insecure_skip_verify,optional"`
}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	value any
	err   error
}

// OnRunSocketIOEmit connects, emits the event and, when asked, waits for the
// acknowledging event.
func OnRunSocketIOEmit(ctx context.Context, sess *session.Session, input *Input) error {
	logger := ctxlog.FromContext(ctx).With("url", input.URL, "event", input.Event)
	logger.Debug("Handler started.")
	defer logger.Debug("Handler finished.")

	timeout := defaultTimeout
	if input.Timeout != "" {
		d, err := str2duration.ParseDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
		}
		timeout = d
	}

	payload, err := toPayload(input.Data)
	if err != nil {
		return fmt.Errorf("failed to convert data: %w", err)
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("URL '%s' must include a scheme and host", input.URL)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification.")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace(input.Namespace), opts)
	defer io.Disconnect()

	var isConnected atomic.Bool
	done := make(chan opResult, 1)
	finish := func(r opResult) {
		select {
		case done <- r:
		default:
		}
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected.", "sid", io.Id())
		io.Emit(input.Event, payload)
		if input.AckEvent == "" {
			finish(opResult{})
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("socket.io connection failed")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = fmt.Errorf("socket.io connection failed: %w", e)
			}
		}
		finish(opResult{err: err})
	})
	if input.AckEvent != "" {
		io.On(types.EventName(input.AckEvent), func(data ...any) {
			var response any
			if len(data) > 0 {
				response = data[0]
			}
			finish(opResult{value: response})
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event '%s'", input.AckEvent)
		}
		return fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		if res.err != nil {
			return res.err
		}
		if input.AckEvent != "" && input.ResponseProperty != "" {
			sess.Props.Put(input.ResponseProperty, res.value)
		}
		logger.Info("Event emitted.", "acknowledged", input.AckEvent != "")
		return nil
	}
}

func namespace(ns string) string {
	if ns == "" {
		return "/"
	}
	return ns
}

// toPayload converts an HCL value into plain JSON-compatible data.
func toPayload(val cty.Value) (any, error) {
	if val.Type() == cty.NilType || val.IsNull() || !val.IsKnown() {
		return nil, nil
	}
	raw, err := ctyjson.SimpleJSONValue{Value: val}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("socketio_emit", registry.Handler("Emits a Socket.IO event.", OnRunSocketIOEmit))
}
