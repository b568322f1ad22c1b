package rosz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros-sub001/transport"
)

func newParameterServer(t *testing.T, args ...string) *ParameterServer {
	t.Helper()
	ctx := newTestContext(t, transport.NewMemoryBus(), func(b *ContextBuilder) {
		if len(args) > 0 {
			b.WithArgs(args)
		}
	})
	ps, err := newTestNode(t, ctx, "param_node").CreateParameterServer()
	require.NoError(t, err)
	return ps
}

func TestParameterSetGet(t *testing.T) {
	ps := newParameterServer(t)

	require.NoError(t, ps.Set("test_int", ParamInt(42)))
	require.NoError(t, ps.Set("test_string", ParamString("hello")))
	require.NoError(t, ps.Set("int_array", ParamIntArray([]int64{1, 2, 3})))

	v, ok := ps.Get("test_int")
	require.True(t, ok)
	assert.Equal(t, ParamInt(42), v)

	v, ok = ps.Get("int_array")
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, v.IntegerArrayValue)

	_, ok = ps.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, ParameterNotSet, ps.Type("missing"))
}

func TestParameterTypeCheck(t *testing.T) {
	ps := newParameterServer(t)

	require.NoError(t, ps.Set("speed", ParamDouble(1.5)))
	err := ps.Set("speed", ParamString("fast"))
	require.ErrorIs(t, err, ErrParameterRejected)

	_, err = ps.Declare("mode", ParamString("auto"), WithDynamicTyping())
	require.NoError(t, err)
	require.NoError(t, ps.Set("mode", ParamInt(3)))
	assert.Equal(t, ParameterInteger, ps.Type("mode"))

	assert.ErrorIs(t, ps.Set("speed", ParameterValue{}), ErrParameterRejected)
}

func TestParameterReadOnly(t *testing.T) {
	ps := newParameterServer(t)

	_, err := ps.Declare("readonly_param", ParamInt(42), WithReadOnly(), WithDescription("fixed"))
	require.NoError(t, err)
	require.ErrorIs(t, ps.Set("readonly_param", ParamInt(100)), ErrParameterRejected)
	require.ErrorIs(t, ps.Undeclare("readonly_param"), ErrParameterRejected)

	v, _ := ps.Get("readonly_param")
	assert.Equal(t, int64(42), v.IntegerValue)

	d, ok := ps.Describe("readonly_param")
	require.True(t, ok)
	assert.True(t, d.ReadOnly)
	assert.Equal(t, "fixed", d.Description)
	assert.Equal(t, ParameterInteger, d.Type)
}

func TestParameterDeclareTwice(t *testing.T) {
	ps := newParameterServer(t)
	_, err := ps.Declare("x", ParamBool(true))
	require.NoError(t, err)
	_, err = ps.Declare("x", ParamBool(false))
	assert.ErrorIs(t, err, ErrParameterRejected)
	_, err = ps.Declare("", ParamBool(false))
	assert.ErrorIs(t, err, ErrParameterRejected)
}

func TestParameterRanges(t *testing.T) {
	ps := newParameterServer(t)

	_, err := ps.Declare("count", ParamInt(10), WithIntegerRange(0, 100, 5))
	require.NoError(t, err)
	assert.NoError(t, ps.Set("count", ParamInt(15)))
	assert.NoError(t, ps.Set("count", ParamInt(100)))
	assert.ErrorIs(t, ps.Set("count", ParamInt(17)), ErrParameterRejected)
	assert.ErrorIs(t, ps.Set("count", ParamInt(105)), ErrParameterRejected)

	_, err = ps.Declare("gain", ParamDouble(0.5), WithFloatingPointRange(0, 1, 0.1))
	require.NoError(t, err)
	assert.NoError(t, ps.Set("gain", ParamDouble(0.3)))
	assert.ErrorIs(t, ps.Set("gain", ParamDouble(0.35)), ErrParameterRejected)
	assert.ErrorIs(t, ps.Set("gain", ParamDouble(-0.1)), ErrParameterRejected)

	_, err = ps.Declare("weights", ParamDoubleArray([]float64{0.5}), WithFloatingPointRange(0, 1, 0))
	require.NoError(t, err)
	assert.NoError(t, ps.Set("weights", ParamDoubleArray([]float64{0.1, 0.99})))
	assert.ErrorIs(t, ps.Set("weights", ParamDoubleArray([]float64{0.1, 1.5})), ErrParameterRejected)

	_, err = ps.Declare("bad_default", ParamInt(3), WithIntegerRange(5, 10, 0))
	assert.ErrorIs(t, err, ErrParameterRejected)
}

func TestParameterSetAtomically(t *testing.T) {
	ps := newParameterServer(t)
	_, err := ps.Declare("a", ParamInt(1))
	require.NoError(t, err)
	_, err = ps.Declare("b", ParamInt(2), WithReadOnly())
	require.NoError(t, err)

	err = ps.SetAtomically([]Parameter{
		{Name: "a", Value: ParamInt(10)},
		{Name: "b", Value: ParamInt(20)},
	})
	require.ErrorIs(t, err, ErrParameterRejected)
	v, _ := ps.Get("a")
	assert.Equal(t, int64(1), v.IntegerValue, "no update applied on failure")

	require.NoError(t, ps.SetAtomically([]Parameter{
		{Name: "a", Value: ParamInt(10)},
		{Name: "c", Value: ParamString("new")},
	}))
	v, _ = ps.Get("a")
	assert.Equal(t, int64(10), v.IntegerValue)
	assert.True(t, ps.Has("c"))
}

func TestParameterList(t *testing.T) {
	ps := newParameterServer(t)
	for _, name := range []string{"use_sim_time", "motor.left.gain", "motor.right.gain", "motor.limit", "camera.fps"} {
		require.NoError(t, ps.Set(name, ParamInt(1)))
	}

	all := ps.List(nil, ListParametersDepthRecursive)
	assert.Equal(t, []string{"camera.fps", "motor.left.gain", "motor.limit", "motor.right.gain", "use_sim_time"}, all.Names)
	assert.ElementsMatch(t, []string{"camera", "motor.left", "motor", "motor.right"}, all.Prefixes)

	top := ps.List(nil, 1)
	assert.Equal(t, []string{"use_sim_time"}, top.Names)

	motor := ps.List([]string{"motor"}, 1)
	assert.Equal(t, []string{"motor.limit"}, motor.Names)

	motorAll := ps.List([]string{"motor"}, 0)
	assert.Equal(t, []string{"motor.left.gain", "motor.limit", "motor.right.gain"}, motorAll.Names)
}

func TestParameterTakeUpdated(t *testing.T) {
	ps := newParameterServer(t)
	assert.Empty(t, ps.TakeUpdated())

	require.NoError(t, ps.Set("my_param", ParamInt(1)))
	assert.Equal(t, []string{"my_param"}, ps.TakeUpdated())
	assert.Empty(t, ps.TakeUpdated())

	require.NoError(t, ps.Set("my_param", ParamInt(2)))
	assert.Equal(t, []string{"my_param"}, ps.TakeUpdated())
}

func TestParameterOverridesFromArgs(t *testing.T) {
	ps := newParameterServer(t,
		"--ros-args",
		"-p", "speed:=2.5",
		"-p", "param_node:mode:=manual",
		"-p", "other_node:mode:=auto",
		"-p", "limit:=7",
	)

	v, ok := ps.Get("speed")
	require.True(t, ok)
	assert.Equal(t, ParamDouble(2.5), v)

	v, _ = ps.Get("mode")
	assert.Equal(t, "manual", v.StringValue)

	got, err := ps.Declare("limit", ParamInt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.IntegerValue, "override wins over the default")

	_, err = ps.Declare("speed", ParamString("x"))
	assert.ErrorIs(t, err, ErrParameterRejected, "override type must match")

	assert.ElementsMatch(t, []string{"limit", "mode", "speed"}, ps.TakeUpdated())
}

func TestParameterServices(t *testing.T) {
	bus := transport.NewMemoryBus()
	ctx := newTestContext(t, bus)
	ps, err := newTestNode(t, ctx, "param_svc_node").CreateParameterServer()
	require.NoError(t, err)
	_, err = ps.Declare("test_param", ParamInt(42), WithIntegerRange(0, 50, 0))
	require.NoError(t, err)

	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ps.Serve(serveCtx) }()
	defer func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	}()

	caller := newTestNode(t, newTestContext(t, bus), "caller")
	callCtx, callCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer callCancel()

	list, err := BuildClient[*ListParametersRequest, *ListParametersResponse](
		caller.CreateClient("/param_svc_node/list_parameters"), ListParametersService)
	require.NoError(t, err)
	listResp, err := list.Call(callCtx, &ListParametersRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"test_param"}, listResp.Result.Names)

	set, err := BuildClient[*SetParametersRequest, *SetParametersResponse](
		caller.CreateClient("/param_svc_node/set_parameters"), SetParametersService)
	require.NoError(t, err)
	setResp, err := set.Call(callCtx, &SetParametersRequest{Parameters: []Parameter{
		{Name: "test_param", Value: ParamInt(7)},
		{Name: "test_param", Value: ParamString("seven")},
		{Name: "test_param", Value: ParamInt(70)},
	}})
	require.NoError(t, err)
	require.Len(t, setResp.Results, 3)
	assert.True(t, setResp.Results[0].Successful)
	assert.False(t, setResp.Results[1].Successful)
	assert.Equal(t, "Type mismatch for test_param", setResp.Results[1].Reason)
	assert.False(t, setResp.Results[2].Successful)

	get, err := BuildClient[*GetParametersRequest, *GetParametersResponse](
		caller.CreateClient("/param_svc_node/get_parameters"), GetParametersService)
	require.NoError(t, err)
	getResp, err := get.Call(callCtx, &GetParametersRequest{Names: []string{"test_param", "missing"}})
	require.NoError(t, err)
	require.Len(t, getResp.Values, 2)
	assert.Equal(t, ParameterInteger, getResp.Values[0].Type)
	assert.Equal(t, int64(7), getResp.Values[0].IntegerValue)
	assert.False(t, getResp.Values[1].IsSet())

	types, err := BuildClient[*GetParameterTypesRequest, *GetParameterTypesResponse](
		caller.CreateClient("/param_svc_node/get_parameter_types"), GetParameterTypesService)
	require.NoError(t, err)
	typesResp, err := types.Call(callCtx, &GetParameterTypesRequest{Names: []string{"test_param", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, []ParameterType{ParameterInteger, ParameterNotSet}, typesResp.Types)

	describe, err := BuildClient[*DescribeParametersRequest, *DescribeParametersResponse](
		caller.CreateClient("/param_svc_node/describe_parameters"), DescribeParametersService)
	require.NoError(t, err)
	descResp, err := describe.Call(callCtx, &DescribeParametersRequest{Names: []string{"test_param"}})
	require.NoError(t, err)
	require.Len(t, descResp.Descriptors, 1)
	assert.Equal(t, []IntegerRange{{FromValue: 0, ToValue: 50}}, descResp.Descriptors[0].IntegerRange)

	atomic, err := BuildClient[*SetParametersAtomicallyRequest, *SetParametersAtomicallyResponse](
		caller.CreateClient("/param_svc_node/set_parameters_atomically"), SetParametersAtomicallyService)
	require.NoError(t, err)
	atomicResp, err := atomic.Call(callCtx, &SetParametersAtomicallyRequest{Parameters: []Parameter{
		{Name: "test_param", Value: ParamInt(8)},
		{Name: "extra", Value: ParamBool(true)},
	}})
	require.NoError(t, err)
	assert.True(t, atomicResp.Result.Successful)
	v, _ := ps.Get("test_param")
	assert.Equal(t, int64(8), v.IntegerValue)
}

func TestParameterServiceGraph(t *testing.T) {
	ctx := newTestContext(t, transport.NewMemoryBus())
	node, err := ctx.CreateNode("talker").WithNamespace("/robot").Build()
	require.NoError(t, err)
	ps, err := node.CreateParameterServer()
	require.NoError(t, err)

	services, err := ctx.GetServiceNamesAndTypes()
	require.NoError(t, err)
	var names []string
	for _, s := range services {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "/robot/talker/get_parameters")
	assert.Contains(t, names, "/robot/talker/set_parameters_atomically")

	require.NoError(t, ps.Close())
	services, err = ctx.GetServiceNamesAndTypes()
	require.NoError(t, err)
	assert.Empty(t, services)
}
