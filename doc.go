// Package cats implements CATS (Cifrazia Action Transport System): a
// bidirectional, framed request/response protocol over a single TCP
// connection, with recursive nested input exchanges, out-of-band control
// frames (download-speed throttling, input cancellation, ping/pong), and
// streamed payloads of unbounded length.
//
// A minimal server:
//
//	router := cats.NewRouter()
//	router.Register(0, 0, -1, func(ctx context.Context, req *cats.Request) (*cats.Response, error) {
//		v, err := req.Value()
//		if err != nil {
//			return nil, err
//		}
//		return cats.NewResponse(map[string]any{"echo": v}), nil
//	})
//	router.Build()
//
//	server := cats.NewServer(cats.WithRouter(router))
//	ln, _ := net.Listen("tcp", ":9000")
//	server.Serve(context.Background(), ln)
//
// See codec for the BINARY/JSON/FILES payload codecs, handshake for the
// pluggable pre-exchange challenge, and router for the version-range
// handler registry.
package cats
