package identify

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-media-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-media-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-media-core/internal/renderer"
)

//go:generate mockgen -destination=mock_publisher_test.go -package=identify . Publisher

// WebSocket channels carrying identification notifications.
const (
	ChannelIdentified = "renderer.identified"
	ChannelPolicy     = "renderer.policy"
)

// Logger defines the logging interface used by the identify package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher sends JSON messages to the message bus.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Hub broadcasts events to WebSocket subscribers.
type Hub interface {
	Broadcast(channel string, payload any)
}

// Telemetry records identification outcomes.
type Telemetry interface {
	WriteIdentification(id influxdb.Identification)
}

// Deps holds the service's collaborators. Only Resolver is required; every
// other side effect is skipped when its dependency is nil.
type Deps struct {
	Resolver   *renderer.Resolver
	Custom     renderer.Repository
	Sightings  SightingStore
	Telemetry  Telemetry
	Publisher  Publisher
	Hub        Hub
	ProfileDir string
	Logger     Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service identifies media renderers at the boundary of the media server.
//
// It asks the Resolver in a fixed order (socket address, then user agent,
// then every other header) and records what it found: a sighting in
// SQLite, a telemetry point, and for new or changed sightings an MQTT event
// and WebSocket broadcast. Recording is best-effort and never changes the
// result.
//
// Service is safe for concurrent use. Policy updates and profile reloads
// are serialised.
type Service struct {
	resolver   *renderer.Resolver
	custom     renderer.Repository
	sightings  SightingStore
	telemetry  Telemetry
	notify     *notifier
	profileDir string
	logger     Logger
	now        func() time.Time
	topics     mqtt.Topics

	mu        sync.Mutex
	updatedAt time.Time
}

// NewService creates a service. Call Close to stop notification delivery.
func NewService(deps Deps) (*Service, error) {
	if deps.Resolver == nil {
		return nil, ErrNoResolver
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Service{
		resolver:   deps.Resolver,
		custom:     deps.Custom,
		sightings:  deps.Sightings,
		telemetry:  deps.Telemetry,
		notify:     newNotifier(deps.Publisher, deps.Hub, deps.Logger),
		profileDir: deps.ProfileDir,
		logger:     deps.Logger,
		now:        deps.Now,
		updatedAt:  deps.Now().UTC(),
	}, nil
}

// Close flushes queued notifications and stops delivery.
func (s *Service) Close() {
	s.notify.close()
}

// Resolver returns the resolver the service consults.
func (s *Service) Resolver() *renderer.Resolver {
	return s.resolver
}

// Identify identifies the client described by req and records the result.
func (s *Service) Identify(ctx context.Context, req Request) Result {
	res := s.Lookup(req)
	s.record(ctx, req, res)
	return res
}

// Lookup identifies the client without recording anything.
func (s *Service) Lookup(req Request) Result {
	if p, ok := s.resolver.ForcedProfile(); ok {
		return Result{Profile: p, Method: MethodForced, Forced: true}
	}

	if req.Addr.IsValid() {
		if p, ok := s.resolver.LookupBySocketAddress(req.Addr); ok {
			return Result{Profile: p, Method: MethodAddress}
		}
	}

	if ua := userAgent(req); ua != "" {
		line := "User-Agent: " + ua
		if p, ok := s.resolver.LookupByUserAgent(line); ok {
			return Result{Profile: p, Method: MethodUserAgent, Line: line}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(req.Headers)) {
		if strings.EqualFold(name, "User-Agent") {
			continue
		}
		for _, value := range req.Headers[name] {
			line := name + ": " + value
			if p, ok := s.resolver.LookupByAdditionalHeader(line); ok {
				return Result{Profile: p, Method: MethodHeader, Line: line}
			}
		}
	}

	res := Result{Method: MethodNone}
	if p, ok := s.resolver.DefaultProfile(); ok {
		res.Profile = p
	}
	return res
}

func userAgent(req Request) string {
	if req.UserAgent != "" {
		return req.UserAgent
	}
	return req.Headers.Get("User-Agent")
}

func (s *Service) record(ctx context.Context, req Request, res Result) {
	now := s.now().UTC()
	name := res.ProfileName()

	if s.telemetry != nil {
		s.telemetry.WriteIdentification(influxdb.Identification{
			Profile: name,
			Method:  string(res.Method),
			Outcome: telemetryOutcome(res),
			At:      now,
		})
	}

	if s.sightings == nil || !req.Addr.IsValid() {
		return
	}

	addr := req.Addr.Unmap().String()
	ua := userAgent(req)
	outcome, err := s.sightings.Record(ctx, Sighting{
		Address:   addr,
		Profile:   name,
		Method:    res.Method,
		UserAgent: ua,
		LastSeen:  now,
	})
	if err != nil {
		s.logger.Warn("recording renderer sighting failed", "addr", req.Addr, "error", err)
		return
	}
	if !res.Identified() || !outcome.Changed(name) {
		return
	}

	s.logger.Info("renderer identified",
		"addr", req.Addr,
		"profile", name,
		"method", res.Method,
		"previous", outcome.Previous,
	)
	s.notify.send(notification{
		topic:   s.topics.RendererIdentified(),
		channel: ChannelIdentified,
		payload: IdentifiedEvent{
			Address:   addr,
			Profile:   name,
			Previous:  outcome.Previous,
			Method:    res.Method,
			UserAgent: ua,
			Timestamp: now,
		},
	})
}

func telemetryOutcome(res Result) string {
	switch {
	case res.Forced:
		return influxdb.OutcomeForced
	case res.Matched():
		return influxdb.OutcomeMatched
	default:
		return influxdb.OutcomeNone
	}
}

// Diagnosis lists every profile accepting a header line.
type Diagnosis struct {
	Line      string
	UserAgent []*renderer.Profile
	Header    []*renderer.Profile
}

// Diagnose reports all profiles matching line, both as a user-agent line and
// as an additional header line. The forced-default policy is ignored.
func (s *Service) Diagnose(line string) Diagnosis {
	m := s.resolver.Matcher()
	return Diagnosis{
		Line:      line,
		UserAgent: m.MatchAllUserAgent(line),
		Header:    m.MatchAllAdditionalHeader(line),
	}
}

// PolicyState describes the active policy.
func (s *Service) PolicyState() PolicyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policyStateLocked()
}

func (s *Service) policyStateLocked() PolicyState {
	policy := s.resolver.Policy()
	reg := s.resolver.Registry()
	stats := s.resolver.LastRebuild()

	_, loaded := reg.FindByName(policy.DefaultRenderer)
	summary := OverrideSummary{Exact: stats.Exact, Ranges: stats.Ranges, Dropped: stats.Dropped}
	for _, err := range stats.Errors {
		summary.Errors = append(summary.Errors, err.Error())
	}

	return PolicyState{
		Policy:        policy,
		DefaultLoaded: loaded,
		Overrides:     summary,
		Profiles:      reg.Len(),
		UpdatedAt:     s.updatedAt,
	}
}

// UpdatePolicy applies a partial policy change. A changed forced-IP
// specification is reparsed before UpdatePolicy returns, so the next lookup
// sees it. The new state is published retained.
func (s *Service) UpdatePolicy(ctx context.Context, update PolicyUpdate) (PolicyState, error) {
	if err := ctx.Err(); err != nil {
		return PolicyState{}, err
	}
	if update.IsEmpty() {
		return PolicyState{}, ErrEmptyPolicyUpdate
	}

	s.mu.Lock()
	s.resolver.SetPolicy(update.Apply(s.resolver.Policy()))
	s.updatedAt = s.now().UTC()
	state := s.policyStateLocked()
	s.mu.Unlock()

	if state.Overrides.Dropped > 0 {
		s.logger.Warn("forced-IP entries dropped", "dropped", state.Overrides.Dropped, "errors", state.Overrides.Errors)
	}
	s.PublishPolicy(state)
	return state, nil
}

// PublishPolicy publishes state retained on the policy topic and to
// WebSocket subscribers.
func (s *Service) PublishPolicy(state PolicyState) {
	s.notify.send(notification{
		topic:    s.topics.RendererPolicy(),
		channel:  ChannelPolicy,
		payload:  state,
		retained: true,
	})
}

// ReloadProfiles rebuilds the registry from the built-in definitions, the
// profile directory and the custom store, and swaps it in.
func (s *Service) ReloadProfiles(ctx context.Context) (PolicyState, error) {
	s.mu.Lock()
	reg, err := LoadRegistry(ctx, ProfileSources{Dir: s.profileDir, Custom: s.custom}, s.logger)
	if err != nil {
		s.mu.Unlock()
		return PolicyState{}, err
	}
	s.resolver.ReplaceRegistry(reg)
	s.updatedAt = s.now().UTC()
	state := s.policyStateLocked()
	s.mu.Unlock()

	s.PublishPolicy(state)
	return state, nil
}

// ListCustomProfiles returns the profiles created through the API.
func (s *Service) ListCustomProfiles(ctx context.Context) ([]renderer.Definition, error) {
	if s.custom == nil {
		return nil, ErrCustomProfilesUnavailable
	}
	return s.custom.List(ctx)
}

// CreateCustomProfile stores a new profile and reloads the registry. Names
// already taken by any loaded profile are rejected with
// renderer.ErrDuplicateProfile.
func (s *Service) CreateCustomProfile(ctx context.Context, def renderer.Definition) error {
	if s.custom == nil {
		return ErrCustomProfilesUnavailable
	}
	if _, taken := s.resolver.Registry().FindByName(def.Name); taken {
		return fmt.Errorf("%w: %s", renderer.ErrDuplicateProfile, strings.TrimSpace(def.Name))
	}
	if err := s.custom.Create(ctx, def); err != nil {
		return err
	}
	if _, err := s.ReloadProfiles(ctx); err != nil {
		return fmt.Errorf("reloading profiles: %w", err)
	}
	return nil
}

// DeleteCustomProfile removes a stored profile and reloads the registry.
func (s *Service) DeleteCustomProfile(ctx context.Context, name string) error {
	if s.custom == nil {
		return ErrCustomProfilesUnavailable
	}
	if err := s.custom.Delete(ctx, name); err != nil {
		return err
	}
	if _, err := s.ReloadProfiles(ctx); err != nil {
		return fmt.Errorf("reloading profiles: %w", err)
	}
	return nil
}

// Sightings returns recent sightings, newest first.
func (s *Service) Sightings(ctx context.Context, limit int) ([]Sighting, error) {
	if s.sightings == nil {
		return nil, ErrSightingsUnavailable
	}
	return s.sightings.List(ctx, limit)
}

// Sighting returns the sighting for one address.
func (s *Service) Sighting(ctx context.Context, address string) (*Sighting, error) {
	if s.sightings == nil {
		return nil, ErrSightingsUnavailable
	}
	return s.sightings.Get(ctx, address)
}

// AmbiguityLogger returns a hook logging header lines that more than one
// profile accepts.
func AmbiguityLogger(logger Logger) renderer.AmbiguityHook {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(a renderer.Ambiguity) {
		others := make([]string, len(a.Others))
		for i, p := range a.Others {
			others[i] = p.Name()
		}
		logger.Warn("ambiguous renderer match",
			"kind", a.Kind,
			"line", a.Line,
			"winner", a.Winner,
			"others", others,
		)
	}
}

// RequestFromHTTP builds a Request from an incoming HTTP request's headers.
func RequestFromHTTP(h http.Header) Request {
	return Request{UserAgent: h.Get("User-Agent"), Headers: h}
}
