package model

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"strconv"
	"sync"

	"gonum.org/v1/gonum/mat"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lendingclub-trainer/internal/config"
)

// Model service methods. Requests and replies are google.protobuf.Struct.
const (
	MethodFit     = "/modelserver.v1.ModelService/Fit"
	MethodPredict = "/modelserver.v1.ModelService/Predict"
)

// invoker is the part of *grpc.ClientConn the remote family calls.
type invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// #region remote-struct
// Remote trains and predicts through an external model service. The fitted
// model lives on the service; the artifact only keeps its handle.
type Remote struct {
	Params config.RemoteParams
	Handle string

	mu   sync.Mutex
	conn *grpc.ClientConn
	inv  invoker
}

// #endregion remote-struct

// #region constructor
// NewRemote returns a remote classifier. The connection is opened on first use.
func NewRemote(p config.RemoteParams) *Remote {
	return &Remote{Params: p}
}

// NewRemoteWithInvoker creates a Remote with an injected transport.
// Used for testing without a real gRPC connection.
func NewRemoteWithInvoker(p config.RemoteParams, inv invoker) *Remote {
	return &Remote{Params: p, inv: inv}
}

func (r *Remote) client() (invoker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inv != nil {
		return r.inv, nil
	}
	conn, err := grpc.NewClient(r.Params.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", r.Params.Addr, err)
	}
	r.conn = conn
	r.inv = conn
	return conn, nil
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection, if one was opened.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn, r.inv = nil, nil
	return err
}

// #endregion close

// IncrementEstimators raises the estimator count sent with the next fit.
func (r *Remote) IncrementEstimators() { r.Params.NEstimators++ }

// #region fit
// Fit uploads the training data and stores the handle the service returns.
// A previous handle is sent along so the service can warm start.
func (r *Remote) Fit(X mat.Matrix, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	inv, err := r.client()
	if err != nil {
		return err
	}

	params := make(map[string]any, len(r.Params.Extra))
	for k, v := range r.Params.Extra {
		params[k] = v
	}
	labels := make([]any, len(y))
	for i, v := range y {
		labels[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"algorithm":    r.Params.Algorithm,
		"n_estimators": float64(r.Params.NEstimators),
		"params":       params,
		"handle":       r.Handle,
		"features":     matrixValues(X),
		"labels":       labels,
	})
	if err != nil {
		return fmt.Errorf("build fit request: %w", err)
	}

	ctx, cancel := r.callContext()
	defer cancel()
	reply := &structpb.Struct{}
	if err := inv.Invoke(ctx, MethodFit, req, reply); err != nil {
		return fmt.Errorf("fit rpc: %w", err)
	}
	handle := reply.GetFields()["handle"].GetStringValue()
	if handle == "" {
		return fmt.Errorf("fit rpc: reply carries no handle")
	}
	r.Handle = handle
	return nil
}

// #endregion fit

// #region predict
// Predict asks the service for one label per row.
func (r *Remote) Predict(X mat.Matrix) ([]float64, error) {
	if r.Handle == "" {
		return nil, ErrNotFitted
	}
	if X == nil {
		return nil, fmt.Errorf("%w: nil feature matrix", ErrShape)
	}
	inv, err := r.client()
	if err != nil {
		return nil, err
	}
	req, err := structpb.NewStruct(map[string]any{
		"handle":   r.Handle,
		"features": matrixValues(X),
	})
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}

	ctx, cancel := r.callContext()
	defer cancel()
	reply := &structpb.Struct{}
	if err := inv.Invoke(ctx, MethodPredict, req, reply); err != nil {
		return nil, fmt.Errorf("predict rpc: %w", err)
	}

	values := reply.GetFields()["predictions"].GetListValue().GetValues()
	rows, _ := X.Dims()
	if len(values) != rows {
		return nil, fmt.Errorf("%w: sent %d rows, got %d predictions", ErrShape, rows, len(values))
	}
	out := make([]float64, len(values))
	for i, v := range values {
		switch k := v.GetKind().(type) {
		case *structpb.Value_NumberValue:
			out[i] = k.NumberValue
		case *structpb.Value_StringValue:
			f, err := strconv.ParseFloat(k.StringValue, 64)
			if err != nil {
				return nil, fmt.Errorf("prediction %d: %w", i, err)
			}
			out[i] = f
		default:
			return nil, fmt.Errorf("prediction %d is not a number", i)
		}
	}
	return out, nil
}

// #endregion predict

func (r *Remote) callContext() (context.Context, context.CancelFunc) {
	if r.Params.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), r.Params.Timeout)
}

func matrixValues(X mat.Matrix) []any {
	rows := denseRows(X)
	out := make([]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}

// #region remote-codec
type remoteState struct {
	Params config.RemoteParams
	Handle string
}

func (r *Remote) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(remoteState{Params: r.Params, Handle: r.Handle}); err != nil {
		return nil, fmt.Errorf("encode remote: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Remote) UnmarshalBinary(data []byte) error {
	var s remoteState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("decode remote: %w", err)
	}
	r.Params = s.Params
	r.Handle = s.Handle
	return nil
}

// #endregion remote-codec
