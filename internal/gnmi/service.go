// Package gnmi exposes the agent's capabilities over a gNMI-compatible gRPC
// service: Capabilities, Get and Set against the single root path "/", with
// the configuration carried as an opaque string value.
package gnmi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	gpb "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/opennetsys/faucet-agent/internal/store"
)

// ConfigReader reads the current configuration. Get bypasses the reload path
// entirely and reads straight from the store.
type ConfigReader interface {
	Read() (data []byte, timestamp int64, err error)
}

// ConfigReloader replaces the configuration and blocks until the controller
// has verifiably applied it.
type ConfigReloader interface {
	WriteAndReload(ctx context.Context, data []byte) error
}

// Service implements gpb.GNMIServer. All request validation happens before
// any store or coordinator call.
type Service struct {
	gpb.UnimplementedGNMIServer

	reader   ConfigReader
	reloader ConfigReloader
	version  string
	logger   *slog.Logger
}

// NewService creates the gNMI servicer. version is the agent's semantic
// version advertised in Capabilities responses.
func NewService(reader ConfigReader, reloader ConfigReloader, version string, logger *slog.Logger) *Service {
	return &Service{
		reader:   reader,
		reloader: reloader,
		version:  version,
		logger:   logger,
	}
}

// Capabilities reports the supported schema, encoding and agent version.
func (s *Service) Capabilities(ctx context.Context, req *gpb.CapabilityRequest) (*gpb.CapabilityResponse, error) {
	s.logger.Debug("capabilities request")
	return &gpb.CapabilityResponse{
		SupportedModels: []*gpb.ModelData{{
			Name:         "FAUCET",
			Organization: "faucet.nz",
			Version:      "1.0",
		}},
		SupportedEncodings: []gpb.Encoding{gpb.Encoding_JSON},
		GNMIVersion:        s.version,
	}, nil
}

// Get returns the current configuration for the root path.
func (s *Service) Get(ctx context.Context, req *gpb.GetRequest) (*gpb.GetResponse, error) {
	paths := req.GetPath()
	s.logger.Debug("get request", "paths", len(paths))
	if len(paths) != 1 {
		return nil, status.Error(codes.InvalidArgument, "a single path is required")
	}
	if err := checkRoot(paths[0]); err != nil {
		return nil, err
	}

	data, timestamp, err := s.reader.Read()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "read configuration: %v", err)
	}
	return &gpb.GetResponse{
		Notification: []*gpb.Notification{{
			Timestamp: timestamp,
			Update: []*gpb.Update{{
				Path: paths[0],
				Val: &gpb.TypedValue{
					Value: &gpb.TypedValue_StringVal{StringVal: string(data)},
				},
			}},
		}},
	}, nil
}

// Set replaces the configuration. Only a single replace of the root path
// with a string value is supported; the call does not return success until
// the controller has verifiably reloaded the new content.
func (s *Service) Set(ctx context.Context, req *gpb.SetRequest) (*gpb.SetResponse, error) {
	s.logger.Debug("set request",
		"replace", len(req.GetReplace()),
		"update", len(req.GetUpdate()),
		"delete", len(req.GetDelete()),
	)

	if len(req.GetDelete()) > 0 {
		return nil, status.Error(codes.InvalidArgument, `"delete" unsupported - should be "replace"`)
	}
	if len(req.GetUpdate()) > 0 {
		return nil, status.Error(codes.InvalidArgument, `"update" unsupported - should be "replace"`)
	}
	if len(req.GetExtension()) > 0 {
		return nil, status.Error(codes.InvalidArgument, `"extension" unsupported - should be "replace"`)
	}
	if len(req.GetReplace()) != 1 {
		return nil, status.Error(codes.InvalidArgument, "single replace request required")
	}
	replace := req.GetReplace()[0]
	if err := checkRoot(replace.GetPath()); err != nil {
		return nil, err
	}
	value, ok := replace.GetVal().GetValue().(*gpb.TypedValue_StringVal)
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "string value (configuration file data) required")
	}

	if err := s.reloader.WriteAndReload(ctx, []byte(value.StringVal)); err != nil {
		return nil, s.setError(err)
	}
	return &gpb.SetResponse{
		Response: []*gpb.UpdateResult{{
			Path: replace.GetPath(),
			Op:   gpb.UpdateResult_REPLACE,
		}},
		Timestamp: time.Now().UnixNano(),
	}, nil
}

// setError translates coordinator failures into the protocol vocabulary so a
// client can distinguish "rejected" from "dropped".
func (s *Service) setError(err error) error {
	switch {
	case errors.Is(err, store.ErrStorage):
		return status.Errorf(codes.Internal, "write configuration: %v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		// Reload timeout, unreachable controller, or a failing status
		// endpoint: the agent is up but cannot confirm the reload.
		return status.Errorf(codes.Unavailable, "configuration reload not confirmed: %v", err)
	}
}

// Subscribe is part of the gNMI schema but not supported by this agent.
func (s *Service) Subscribe(stream gpb.GNMI_SubscribeServer) error {
	return status.Error(codes.Unimplemented, "subscribe not supported")
}

// checkRoot requires p to address the root path "/".
func checkRoot(p *gpb.Path) error {
	if got := pathString(p); got != "/" {
		return status.Errorf(codes.NotFound, "path %q not found: should be %q", got, "/")
	}
	return nil
}

// pathString renders a gNMI path as /a/b/c, accepting both the structured
// Elem form and the deprecated Element form older clients still send.
func pathString(p *gpb.Path) string {
	if p == nil {
		return "/"
	}
	if elems := p.GetElem(); len(elems) > 0 {
		names := make([]string, len(elems))
		for i, e := range elems {
			names[i] = e.GetName()
		}
		return "/" + strings.Join(names, "/")
	}
	if elements := p.GetElement(); len(elements) > 0 { //nolint:staticcheck // deprecated field kept for client compat
		return "/" + strings.Join(elements, "/")
	}
	return "/"
}
