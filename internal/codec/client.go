// Package codec talks to the Python retrieval/inference service over gRPC.
//
// The service owns the sentence-transformer models, the Chroma node index and
// any locally hosted chat model. Messages are google.protobuf.Struct values so
// no generated stubs are needed on the Go side:
//
//	/kgrag.v1.CodecService/Embed    {model, texts[]}                          -> {embeddings[][]}
//	/kgrag.v1.CodecService/Search   {query_text, top_k}                       -> {results[{id, text, distance}]}
//	/kgrag.v1.CodecService/Generate {model, prompt, system_prompt, temperature} -> {text}
package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	methodEmbed    = "/kgrag.v1.CodecService/Embed"
	methodSearch   = "/kgrag.v1.CodecService/Search"
	methodGenerate = "/kgrag.v1.CodecService/Generate"
)

// #region types
// SearchResult holds a single node hit from a Search RPC call.
type SearchResult struct {
	ID       string // node name
	Text     string
	Distance float64
}

// #endregion types

// #region client-struct
// CodecClient wraps the gRPC connection to the Python service.
type CodecClient struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewCodecClient connects to the Python gRPC server. The connection is lazy;
// an unreachable address surfaces on the first call.
func NewCodecClient(addr string) (*CodecClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &CodecClient{conn: conn, cc: conn}, nil
}

// NewCodecClientWithConn creates a CodecClient over an injected connection.
// Used for testing without a real gRPC server.
func NewCodecClientWithConn(cc grpc.ClientConnInterface) *CodecClient {
	return &CodecClient{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *CodecClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region embed
// Embed returns one vector per input text, in input order.
func (c *CodecClient) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	items := make([]any, len(texts))
	for i, t := range texts {
		items[i] = t
	}
	resp, err := c.call(ctx, methodEmbed, map[string]any{
		"model": model,
		"texts": items,
	})
	if err != nil {
		return nil, fmt.Errorf("embed rpc: %w", err)
	}

	rows := resp.GetFields()["embeddings"].GetListValue().GetValues()
	if len(rows) != len(texts) {
		return nil, fmt.Errorf("embed rpc: got %d embeddings for %d texts", len(rows), len(texts))
	}
	out := make([][]float32, len(rows))
	for i, row := range rows {
		vals := row.GetListValue().GetValues()
		vec := make([]float32, len(vals))
		for j, v := range vals {
			vec[j] = float32(v.GetNumberValue())
		}
		out[i] = vec
	}
	return out, nil
}

// #endregion embed

// #region search
// Search queries the node index and returns up to topK nearest nodes.
func (c *CodecClient) Search(ctx context.Context, queryText string, topK int) ([]SearchResult, error) {
	resp, err := c.call(ctx, methodSearch, map[string]any{
		"query_text": queryText,
		"top_k":      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("search rpc: %w", err)
	}

	hits := resp.GetFields()["results"].GetListValue().GetValues()
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		f := h.GetStructValue().GetFields()
		results = append(results, SearchResult{
			ID:       f["id"].GetStringValue(),
			Text:     f["text"].GetStringValue(),
			Distance: f["distance"].GetNumberValue(),
		})
	}
	return results, nil
}

// #endregion search

// #region generate
// Generate runs a chat completion on a model hosted by the Python service.
func (c *CodecClient) Generate(ctx context.Context, model, prompt, systemPrompt string, temperature float64) (string, error) {
	resp, err := c.call(ctx, methodGenerate, map[string]any{
		"model":         model,
		"prompt":        prompt,
		"system_prompt": systemPrompt,
		"temperature":   temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate rpc: %w", err)
	}
	return resp.GetFields()["text"].GetStringValue(), nil
}

// #endregion generate

// #region helpers
func (c *CodecClient) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion helpers
