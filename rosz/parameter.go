package rosz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/jazi007/oxidros-sub001/qos"
)

// floatStepTolerance is the relative slack allowed when checking a double
// against a range step.
const floatStepTolerance = 1e-9

// ParameterOption configures the descriptor of a declared parameter
type ParameterOption func(*ParameterDescriptor)

// WithDescription sets the human readable description
func WithDescription(s string) ParameterOption {
	return func(d *ParameterDescriptor) { d.Description = s }
}

// WithAdditionalConstraints documents constraints that are not enforced
func WithAdditionalConstraints(s string) ParameterOption {
	return func(d *ParameterDescriptor) { d.AdditionalConstraints = s }
}

// WithReadOnly rejects every update after declaration
func WithReadOnly() ParameterOption {
	return func(d *ParameterDescriptor) { d.ReadOnly = true }
}

// WithDynamicTyping allows updates that change the value type
func WithDynamicTyping() ParameterOption {
	return func(d *ParameterDescriptor) { d.DynamicTyping = true }
}

// WithIntegerRange limits integer values to [from, to]. A non-zero step also
// requires value-from to be a multiple of step.
func WithIntegerRange(from, to int64, step uint64) ParameterOption {
	return func(d *ParameterDescriptor) {
		d.IntegerRange = []IntegerRange{{FromValue: from, ToValue: to, Step: step}}
	}
}

// WithFloatingPointRange limits double values to [from, to]. A non-zero step
// also requires value-from to be a multiple of step.
func WithFloatingPointRange(from, to, step float64) ParameterOption {
	return func(d *ParameterDescriptor) {
		d.FloatingPointRange = []FloatingPointRange{{FromValue: from, ToValue: to, Step: step}}
	}
}

type parameterEntry struct {
	value      ParameterValue
	descriptor ParameterDescriptor
	declared   bool
}

// ParameterServer stores the parameters of one node and serves the standard
// rcl_interfaces parameter services under the node's private namespace.
//
// Parameters assigned on the command line or in a params file for this node
// exist as soon as the server is created. Declare attaches a descriptor and a
// default to them.
type ParameterServer struct {
	node   *Node
	logger *slog.Logger

	mu      sync.RWMutex
	params  map[string]*parameterEntry
	updated map[string]struct{}

	list     *Server[*ListParametersRequest, *ListParametersResponse]
	get      *Server[*GetParametersRequest, *GetParametersResponse]
	set      *Server[*SetParametersRequest, *SetParametersResponse]
	atomic   *Server[*SetParametersAtomicallyRequest, *SetParametersAtomicallyResponse]
	describe *Server[*DescribeParametersRequest, *DescribeParametersResponse]
	types    *Server[*GetParameterTypesRequest, *GetParameterTypesResponse]
	servers  []io.Closer

	closeOnce sync.Once
	closeErr  error
}

// CreateParameterServer creates the node's parameter server and its services
func (n *Node) CreateParameterServer() (*ParameterServer, error) {
	p := &ParameterServer{
		node:    n,
		logger:  n.logger.With("component", "parameters"),
		params:  make(map[string]*parameterEntry),
		updated: make(map[string]struct{}),
	}
	for name, v := range parameterOverrides(n.ctx.params, n.originalName, n.fqn) {
		p.params[name] = &parameterEntry{value: v, descriptor: ParameterDescriptor{Name: name, Type: v.Type}}
		p.updated[name] = struct{}{}
		p.logger.Debug("parameter override", "name", name, "value", v.String())
	}

	q := qos.Parameters()
	var err error
	if p.list, err = buildParamServer[*ListParametersRequest, *ListParametersResponse](
		p, "list_parameters", q, ListParametersService); err != nil {
		return nil, err
	}
	if p.get, err = buildParamServer[*GetParametersRequest, *GetParametersResponse](
		p, "get_parameters", q, GetParametersService); err != nil {
		return nil, err
	}
	if p.set, err = buildParamServer[*SetParametersRequest, *SetParametersResponse](
		p, "set_parameters", q, SetParametersService); err != nil {
		return nil, err
	}
	if p.atomic, err = buildParamServer[*SetParametersAtomicallyRequest, *SetParametersAtomicallyResponse](
		p, "set_parameters_atomically", q, SetParametersAtomicallyService); err != nil {
		return nil, err
	}
	if p.describe, err = buildParamServer[*DescribeParametersRequest, *DescribeParametersResponse](
		p, "describe_parameters", q, DescribeParametersService); err != nil {
		return nil, err
	}
	if p.types, err = buildParamServer[*GetParameterTypesRequest, *GetParameterTypesResponse](
		p, "get_parameter_types", q, GetParameterTypesService); err != nil {
		return nil, err
	}

	p.logger.Debug("parameter server created", "initial", len(p.params))
	return p, nil
}

// buildParamServer creates the private service ~/name. On failure the
// services built so far are closed.
func buildParamServer[Req, Resp Message](p *ParameterServer, name string, q QosProfile, srv ServiceType) (*Server[Req, Resp], error) {
	s, err := BuildServer[Req, Resp](p.node.CreateServer("~/"+name).WithQoS(q), srv)
	if err != nil {
		return nil, multierr.Append(err, p.Close())
	}
	p.servers = append(p.servers, s)
	return s, nil
}

// Node returns the node owning the parameters
func (p *ParameterServer) Node() *Node { return p.node }

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParameterRejected, fmt.Sprintf(format, args...))
}

// Declare declares name with a default value and returns the effective value.
// An override for name takes precedence over def and must match its type
// unless dynamic typing is enabled.
func (p *ParameterServer) Declare(name string, def ParameterValue, opts ...ParameterOption) (ParameterValue, error) {
	if name == "" {
		return ParameterValue{}, rejected("empty parameter name")
	}
	d := ParameterDescriptor{Name: name, Type: def.Type}
	for _, o := range opts {
		o(&d)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.params[name]
	if ok && e.declared {
		return ParameterValue{}, rejected("%s already declared", name)
	}
	value := def
	if ok {
		if !d.DynamicTyping && def.IsSet() && e.value.Type != def.Type {
			return ParameterValue{}, rejected("override for %s is %s, want %s", name, e.value.Type, def.Type)
		}
		value = e.value
		d.Type = value.Type
	}
	if err := checkRange(d, value); err != nil {
		return ParameterValue{}, err
	}
	p.params[name] = &parameterEntry{value: value, descriptor: d, declared: true}
	p.updated[name] = struct{}{}
	return value, nil
}

// Undeclare removes a declared parameter. Read-only parameters stay.
func (p *ParameterServer) Undeclare(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.params[name]
	if !ok {
		return rejected("%s not declared", name)
	}
	if e.descriptor.ReadOnly {
		return rejected("%s is read only", name)
	}
	delete(p.params, name)
	p.updated[name] = struct{}{}
	return nil
}

// Get returns the value of name. ok is false for an unknown name.
func (p *ParameterServer) Get(name string) (ParameterValue, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.params[name]
	if !ok {
		return ParameterValue{}, false
	}
	return e.value, true
}

// Has reports whether name is set
func (p *ParameterServer) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Set updates name. An unknown name is created with a default descriptor.
func (p *ParameterServer) Set(name string, v ParameterValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkLocked(name, v); err != nil {
		return err
	}
	p.applyLocked(name, v)
	return nil
}

// SetAtomically validates every update before applying any of them.
func (p *ParameterServer) SetAtomically(params []Parameter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, param := range params {
		if err := p.checkLocked(param.Name, param.Value); err != nil {
			return err
		}
	}
	for _, param := range params {
		p.applyLocked(param.Name, param.Value)
	}
	return nil
}

func (p *ParameterServer) checkLocked(name string, v ParameterValue) error {
	if name == "" {
		return rejected("empty parameter name")
	}
	if !v.IsSet() {
		return rejected("%s has no value", name)
	}
	e, ok := p.params[name]
	if !ok {
		return nil
	}
	if e.descriptor.ReadOnly {
		return rejected("%s is read only", name)
	}
	if !e.descriptor.DynamicTyping && e.value.IsSet() && e.value.Type != v.Type {
		return rejected("Type mismatch for %s", name)
	}
	return checkRange(e.descriptor, v)
}

func (p *ParameterServer) applyLocked(name string, v ParameterValue) {
	e, ok := p.params[name]
	if !ok {
		e = &parameterEntry{descriptor: ParameterDescriptor{Name: name}}
		p.params[name] = e
	}
	e.value = v
	e.descriptor.Type = v.Type
	p.updated[name] = struct{}{}
	p.logger.Debug("parameter set", "name", name, "value", v.String())
}

// Describe returns the descriptor of name. ok is false for an unknown name.
func (p *ParameterServer) Describe(name string) (ParameterDescriptor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.params[name]
	if !ok {
		return ParameterDescriptor{Name: name}, false
	}
	return e.descriptor, true
}

// Type returns the type of name, ParameterNotSet when unknown
func (p *ParameterServer) Type(name string) ParameterType {
	v, _ := p.Get(name)
	return v.Type
}

// List returns the names below prefixes, at most depth levels deep. Levels
// are separated by '.'. No prefixes selects every name and depth 0 means
// unlimited.
func (p *ParameterServer) List(prefixes []string, depth uint64) ListParametersResult {
	p.mu.RLock()
	names := make([]string, 0, len(p.params))
	for name := range p.params {
		names = append(names, name)
	}
	p.mu.RUnlock()
	slices.Sort(names)

	within := func(rest string) bool {
		return depth == ListParametersDepthRecursive || uint64(strings.Count(rest, ".")) < depth
	}
	var res ListParametersResult
	for _, name := range names {
		match := len(prefixes) == 0 && within(name)
		for _, prefix := range prefixes {
			if name == prefix || (strings.HasPrefix(name, prefix+".") && within(name[len(prefix)+1:])) {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		res.Names = append(res.Names, name)
		if i := strings.LastIndexByte(name, '.'); i > 0 && !slices.Contains(res.Prefixes, name[:i]) {
			res.Prefixes = append(res.Prefixes, name[:i])
		}
	}
	return res
}

// TakeUpdated returns the names changed since the last call, sorted
func (p *ParameterServer) TakeUpdated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updated) == 0 {
		return nil
	}
	out := make([]string, 0, len(p.updated))
	for name := range p.updated {
		out = append(out, name)
	}
	clear(p.updated)
	slices.Sort(out)
	return out
}

func checkRange(d ParameterDescriptor, v ParameterValue) error {
	if len(d.IntegerRange) > 0 {
		r := d.IntegerRange[0]
		ints := v.IntegerArrayValue
		if v.Type == ParameterInteger {
			ints = []int64{v.IntegerValue}
		}
		for _, i := range ints {
			if !r.contains(i) {
				return rejected("%s value %d outside [%d, %d] step %d", d.Name, i, r.FromValue, r.ToValue, r.Step)
			}
		}
	}
	if len(d.FloatingPointRange) > 0 {
		r := d.FloatingPointRange[0]
		floats := v.DoubleArrayValue
		if v.Type == ParameterDouble {
			floats = []float64{v.DoubleValue}
		}
		for _, f := range floats {
			if !r.contains(f) {
				return rejected("%s value %g outside [%g, %g] step %g", d.Name, f, r.FromValue, r.ToValue, r.Step)
			}
		}
	}
	return nil
}

func (r IntegerRange) contains(v int64) bool {
	if v < r.FromValue || v > r.ToValue {
		return false
	}
	return r.Step == 0 || v == r.ToValue || uint64(v-r.FromValue)%r.Step == 0
}

func (r FloatingPointRange) contains(v float64) bool {
	if v < r.FromValue || v > r.ToValue {
		return false
	}
	if r.Step == 0 || v == r.ToValue {
		return true
	}
	rem := math.Mod(v-r.FromValue, r.Step)
	tol := floatStepTolerance * math.Max(1, r.Step)
	return rem < tol || r.Step-rem < tol
}

func (p *ParameterServer) handleList(req *ListParametersRequest) *ListParametersResponse {
	return &ListParametersResponse{Result: p.List(req.Prefixes, req.Depth)}
}

func (p *ParameterServer) handleGet(req *GetParametersRequest) *GetParametersResponse {
	resp := &GetParametersResponse{Values: make([]ParameterValue, len(req.Names))}
	for i, name := range req.Names {
		resp.Values[i], _ = p.Get(name)
	}
	return resp
}

func (p *ParameterServer) handleSet(req *SetParametersRequest) *SetParametersResponse {
	resp := &SetParametersResponse{Results: make([]SetParametersResult, len(req.Parameters))}
	for i, param := range req.Parameters {
		resp.Results[i] = setResult(p.Set(param.Name, param.Value))
	}
	return resp
}

func (p *ParameterServer) handleSetAtomically(req *SetParametersAtomicallyRequest) *SetParametersAtomicallyResponse {
	return &SetParametersAtomicallyResponse{Result: setResult(p.SetAtomically(req.Parameters))}
}

func (p *ParameterServer) handleDescribe(req *DescribeParametersRequest) *DescribeParametersResponse {
	resp := &DescribeParametersResponse{Descriptors: make([]ParameterDescriptor, len(req.Names))}
	for i, name := range req.Names {
		resp.Descriptors[i], _ = p.Describe(name)
	}
	return resp
}

func (p *ParameterServer) handleTypes(req *GetParameterTypesRequest) *GetParameterTypesResponse {
	resp := &GetParameterTypesResponse{Types: make([]ParameterType, len(req.Names))}
	for i, name := range req.Names {
		resp.Types[i] = p.Type(name)
	}
	return resp
}

func setResult(err error) SetParametersResult {
	if err != nil {
		// The reason drops the sentinel prefix.
		return SetParametersResult{Reason: strings.TrimPrefix(err.Error(), ErrParameterRejected.Error()+": ")}
	}
	return SetParametersResult{Successful: true}
}

// answerPending answers every queued service request on the calling goroutine
func (p *ParameterServer) answerPending() int {
	return p.list.answerPending(p.handleList) +
		p.get.answerPending(p.handleGet) +
		p.set.answerPending(p.handleSet) +
		p.atomic.answerPending(p.handleSetAtomically) +
		p.describe.answerPending(p.handleDescribe) +
		p.types.answerPending(p.handleTypes)
}

func serveWith[Req, Resp Message](ctx context.Context, s *Server[Req, Resp], fn func(Req) Resp) error {
	return s.Serve(ctx, func(_ context.Context, req Req) (Resp, error) {
		return fn(req), nil
	}, 1)
}

// Serve answers parameter requests until ctx is done or the server is closed
func (p *ParameterServer) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveWith(ctx, p.list, p.handleList) })
	g.Go(func() error { return serveWith(ctx, p.get, p.handleGet) })
	g.Go(func() error { return serveWith(ctx, p.set, p.handleSet) })
	g.Go(func() error { return serveWith(ctx, p.atomic, p.handleSetAtomically) })
	g.Go(func() error { return serveWith(ctx, p.describe, p.handleDescribe) })
	g.Go(func() error { return serveWith(ctx, p.types, p.handleTypes) })
	return g.Wait()
}

// Close destroys the parameter services. Stored values stay readable.
func (p *ParameterServer) Close() error {
	p.closeOnce.Do(func() {
		for _, s := range p.servers {
			p.closeErr = multierr.Append(p.closeErr, s.Close())
		}
	})
	return p.closeErr
}
