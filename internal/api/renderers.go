package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-media-core/internal/identify"
	"github.com/nerrad567/gray-media-core/internal/renderer"
)

// rendererResponse describes a loaded profile.
type rendererResponse struct {
	renderer.Definition
	Index int `json:"index"`
}

// identifyRequest is the request body for POST /renderers/identify.
type identifyRequest struct {
	Address   string            `json:"address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// identifyResponse reports an identification result.
type identifyResponse struct {
	Profile    string            `json:"profile,omitempty"`
	Method     identify.Method   `json:"method"`
	Matched    bool              `json:"matched"`
	Forced     bool              `json:"forced"`
	Line       string            `json:"line,omitempty"`
	Address    string            `json:"address,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// diagnoseRequest is the request body for POST /renderers/diagnose.
type diagnoseRequest struct {
	Line string `json:"line"`
}

type diagnoseResponse struct {
	Line      string   `json:"line"`
	UserAgent []string `json:"user_agent"`
	Header    []string `json:"header"`
}

type overrideResponse struct {
	Profile string `json:"profile"`
	Address string `json:"address"`
	Exact   bool   `json:"exact"`
	Raw     string `json:"raw"`
}

// handleListRenderers returns every loaded profile in load order.
func (s *Server) handleListRenderers(w http.ResponseWriter, _ *http.Request) {
	reg := s.identify.Resolver().Registry()

	renderers := make([]rendererResponse, 0, reg.Len())
	for p := range reg.All() {
		renderers = append(renderers, rendererResponse{Definition: p.Definition(), Index: p.Index()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"renderers": renderers,
		"count":     len(renderers),
	})
}

// handleGetRenderer returns one profile by name, ignoring case.
func (s *Server) handleGetRenderer(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")

	p, ok := s.identify.Resolver().Registry().FindByName(name)
	if !ok {
		writeNotFound(w, "renderer not found")
		return
	}
	writeJSON(w, http.StatusOK, rendererResponse{Definition: p.Definition(), Index: p.Index()})
}

// handleIdentify identifies a described client without recording a sighting.
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var body identifyRequest
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	req := identify.Request{UserAgent: body.UserAgent}
	if body.Address != "" {
		addr, err := netip.ParseAddr(body.Address)
		if err != nil {
			writeBadRequest(w, "invalid address: "+body.Address)
			return
		}
		req.Addr = addr
	}
	if len(body.Headers) > 0 {
		req.Headers = make(http.Header, len(body.Headers))
		for name, value := range body.Headers {
			req.Headers.Set(name, value)
		}
	}

	if req.UserAgent == "" && len(req.Headers) == 0 && !req.Addr.IsValid() {
		writeBadRequest(w, "address, user_agent or headers is required")
		return
	}

	writeJSON(w, http.StatusOK, newIdentifyResponse(s.identify.Lookup(req), req.Addr))
}

// handleWhoAmI identifies the calling client and records the sighting.
func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	req := identify.RequestFromHTTP(r.Header)
	req.Addr = s.clientAddr(r)

	writeJSON(w, http.StatusOK, newIdentifyResponse(s.identify.Identify(r.Context(), req), req.Addr))
}

// handleDiagnose lists every profile accepting a header line.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var body diagnoseRequest
	if err := decodeJSON(r, &body); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(body.Line) == "" {
		writeBadRequest(w, "line is required")
		return
	}

	d := s.identify.Diagnose(body.Line)
	writeJSON(w, http.StatusOK, diagnoseResponse{
		Line:      d.Line,
		UserAgent: profileNames(d.UserAgent),
		Header:    profileNames(d.Header),
	})
}

// handleListOverrides returns the accepted forced-IP entries and the outcome
// of the last rebuild.
func (s *Server) handleListOverrides(w http.ResponseWriter, _ *http.Request) {
	resolver := s.identify.Resolver()
	table := resolver.Overrides()

	entries := table.Entries()
	overrides := make([]overrideResponse, 0, len(entries))
	for _, e := range entries {
		overrides = append(overrides, overrideResponse{
			Profile: e.Profile.Name(),
			Address: e.Matcher.String(),
			Exact:   e.Matcher.IsExact(),
			Raw:     e.Raw,
		})
	}

	state := s.identify.PolicyState()
	writeJSON(w, http.StatusOK, map[string]any{
		"spec":      table.Spec(),
		"overrides": overrides,
		"summary":   state.Overrides,
		"cached":    table.CacheLen(),
	})
}

// handleListSightings returns recent sightings, or one sighting when the
// address query parameter is set.
func (s *Server) handleListSightings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if address := r.URL.Query().Get("address"); address != "" {
		addr, err := netip.ParseAddr(address)
		if err != nil {
			writeBadRequest(w, "invalid address: "+address)
			return
		}
		sighting, err := s.identify.Sighting(ctx, addr.Unmap().String())
		switch {
		case errors.Is(err, identify.ErrSightingsUnavailable):
			writeUnavailable(w, "sighting recording is disabled")
		case errors.Is(err, identify.ErrSightingNotFound):
			writeNotFound(w, "no sighting for "+address)
		case err != nil:
			s.logger.Error("getting sighting failed", "address", address, "error", err)
			writeInternalError(w, "failed to get sighting")
		default:
			writeJSON(w, http.StatusOK, sighting)
		}
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	sightings, err := s.identify.Sightings(ctx, limit)
	if errors.Is(err, identify.ErrSightingsUnavailable) {
		writeUnavailable(w, "sighting recording is disabled")
		return
	}
	if err != nil {
		s.logger.Error("listing sightings failed", "error", err)
		writeInternalError(w, "failed to list sightings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sightings": sightings,
		"count":     len(sightings),
	})
}

// clientAddr returns the calling client's address: the first
// X-Forwarded-For entry when the proxy is trusted, else the socket peer.
// The zero Addr is returned when neither parses.
func (s *Server) clientAddr(r *http.Request) netip.Addr {
	if s.cfg.TrustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
				return addr
			}
		}
	}

	if ap, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return ap.Addr()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host) //nolint:errcheck // zero Addr on failure
	return addr
}

func newIdentifyResponse(res identify.Result, addr netip.Addr) identifyResponse {
	resp := identifyResponse{
		Profile: res.ProfileName(),
		Method:  res.Method,
		Matched: res.Matched(),
		Forced:  res.Forced,
		Line:    res.Line,
	}
	if addr.IsValid() {
		resp.Address = addr.Unmap().String()
	}
	if res.Identified() && !res.Profile.IsUnknown() {
		resp.Properties = res.Profile.Definition().Properties
	}
	return resp
}

func profileNames(profiles []*renderer.Profile) []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name()
	}
	return names
}

// pathParam returns a decoded chi URL parameter. Profile names may contain
// spaces and slashes, which arrive escaped.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
