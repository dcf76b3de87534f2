package rpc

import (
	"testing"

	"github.com/gate4ai/a2a"
)

// FuzzDecodeRequest drives arbitrary bytes through decodeRequest,
// checking the property spec.md §8 requires of envelope parsing:
// malformed input is always rejected with ParseError or InvalidRequest,
// never a panic, and anything accepted really does carry jsonrpc="2.0"
// and a non-empty method.
func FuzzDecodeRequest(f *testing.F) {
	f.Add([]byte(`{"jsonrpc":"2.0","id":1,"method":"tasks/get","params":{"id":"t1"}}`))
	f.Add([]byte(`{"jsonrpc":"2.0","id":"abc","method":"message/send"}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`not json at all`))
	f.Add([]byte(`{"jsonrpc":"1.0","method":"tasks/get"}`))
	f.Add([]byte(`{"jsonrpc":"2.0","method":""}`))
	f.Add([]byte(`null`))
	f.Add([]byte(``))

	f.Fuzz(func(t *testing.T, body []byte) {
		req, rpcErr := decodeRequest(body)
		if rpcErr != nil {
			if rpcErr.Code != a2a.ErrorCodeParseError && rpcErr.Code != a2a.ErrorCodeInvalidRequest {
				t.Fatalf("decodeRequest(%q) returned unexpected error code %d", body, rpcErr.Code)
			}
			return
		}
		if req.JSONRPC != a2a.Version || req.Method == "" {
			t.Fatalf("decodeRequest(%q) accepted an envelope missing jsonrpc/method: %+v", body, req)
		}
	})
}
