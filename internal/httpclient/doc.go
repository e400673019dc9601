// Package httpclient builds the requests ratebench sends and the client that sends them.
//
// # Request Building
//
// [NewRequestBuilder] validates the target and the static header set once. Every call to
// Build returns a fresh GET request with a copy of those headers:
//
//	builder, err := httpclient.NewRequestBuilder(cfg.TargetURL, cfg.Headers)
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx)
//
// # HTTP Client
//
// [NewClient] creates a single shared client with a large idle pool so that keep-alive
// connections are reused across dispatches:
//
//	client := httpclient.NewClient(cfg.Timeout)
//	resp, err := client.Do(req)
package httpclient
